package attempt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores records in the email_attempts table
// (see migrations/otp_db.sql).
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL attempt repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const selectAttemptSQL = `
	SELECT user_id, email, last_attempt, attempt_count, email_lock_until, otp_cooldown_until
	FROM email_attempts
	WHERE user_id = $1
`

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*Record, error) {
	return getRecord(ctx, r.db, selectAttemptSQL, userID)
}

// Update serializes writers for one user with a transaction-scoped advisory
// lock. The advisory lock also covers the first insert, where FOR UPDATE has
// no row to lock yet.
func (r *PostgresRepository) Update(ctx context.Context, userID string, fn UpdateFunc) (*Record, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return nil, fmt.Errorf("failed to acquire user lock: %w", err)
	}

	current, err := getRecord(ctx, tx, selectAttemptSQL+" FOR UPDATE", userID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}

	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}

	next = next.Clone()
	next.UserID = userID

	query := `
		INSERT INTO email_attempts (user_id, email, last_attempt, attempt_count, email_lock_until, otp_cooldown_until)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET email = excluded.email,
		    last_attempt = excluded.last_attempt,
		    attempt_count = excluded.attempt_count,
		    email_lock_until = excluded.email_lock_until,
		    otp_cooldown_until = excluded.otp_cooldown_until
	`
	_, err = tx.Exec(ctx, query,
		next.UserID,
		nullString(next.Email),
		next.LastAttempt,
		next.AttemptCount,
		nullTime(next.EmailLockUntil),
		nullTime(next.OtpCooldownUntil),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert attempt record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return next, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM email_attempts WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete attempt record: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM email_attempts
		WHERE last_attempt <= $1
		AND (email_lock_until IS NULL OR email_lock_until <= $1)
		AND (otp_cooldown_until IS NULL OR otp_cooldown_until <= $1)
	`
	tag, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale attempt records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func getRecord(ctx context.Context, q rowQuerier, query, userID string) (*Record, error) {
	var (
		rec           Record
		email         *string
		lockUntil     *time.Time
		cooldownUntil *time.Time
	)
	err := q.QueryRow(ctx, query, userID).Scan(
		&rec.UserID,
		&email,
		&rec.LastAttempt,
		&rec.AttemptCount,
		&lockUntil,
		&cooldownUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to read attempt record: %w", err)
	}

	if email != nil {
		rec.Email = *email
	}
	if lockUntil != nil {
		rec.EmailLockUntil = lockUntil.UTC()
	}
	if cooldownUntil != nil {
		rec.OtpCooldownUntil = cooldownUntil.UTC()
	}
	rec.LastAttempt = rec.LastAttempt.UTC()

	return &rec, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
