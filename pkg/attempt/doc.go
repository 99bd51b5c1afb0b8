// Package attempt persists the per-user verification state that drives the
// email lock and the OTP resend cooldown.
//
// # Overview
//
// Each user owns at most one Record, keyed by an opaque user identifier. The
// record carries the email currently claimed for verification, the instant
// until which that claim is frozen, the start of the current resend cooldown
// window, and an informational attempt counter.
//
// All state transitions go through Repository.Update, which runs a
// read-modify-write for a single user as one serialized unit:
//
//	rec, err := repo.Update(ctx, userID, func(current *attempt.Record) (*attempt.Record, error) {
//		if current != nil && current.Email == email {
//			return nil, nil // leave the record untouched
//		}
//		return &attempt.Record{Email: email, LastAttempt: now}, nil
//	})
//
// The update function may be invoked more than once when an implementation
// retries on a write conflict, so it must not have side effects.
//
// # Implementations
//
//	// In-process map, striped per-user locks
//	repo := attempt.NewMemoryRepository()
//
//	// JSON file, atomic rename on every write
//	repo, err := attempt.NewFileRepository("./data")
//
//	// PostgreSQL, advisory lock + upsert per user
//	repo := attempt.NewPostgresRepository(pool)
//
//	// Redis, WATCH/MULTI optimistic retry
//	repo := attempt.NewRedisRepository(client, "otp:attempt:")
//
// Or pick one by name:
//
//	repo, err := attempt.NewAttemptRepository("postgres", attempt.RepositoryConfig{Pool: pool})
package attempt
