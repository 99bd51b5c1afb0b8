package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-otp/pkg/attempt"
	"github.com/tendant/simple-otp/pkg/clock"
	"github.com/tendant/simple-otp/pkg/emaillock"
	"github.com/tendant/simple-otp/pkg/otpcode"
	"github.com/tendant/simple-otp/pkg/ratelimit"
)

// VerificationService composes the email lock, the resend cooldown and the
// code generator into a single decision per request.
type VerificationService struct {
	repo   attempt.Repository
	codes  *otpcode.Generator
	mailer Mailer
	clock  clock.Clock

	lockDuration          time.Duration
	cooldown              time.Duration
	rollbackOnSendFailure bool
	metrics               *Metrics
}

// NewVerificationService creates a service with a 10 minute email lock and a
// 3 minute resend cooldown unless overridden by opts.
func NewVerificationService(repo attempt.Repository, codes *otpcode.Generator, mailer Mailer, opts ...Option) *VerificationService {
	s := &VerificationService{
		repo:         repo,
		codes:        codes,
		mailer:       mailer,
		clock:        clock.New(),
		lockDuration: emaillock.DefaultDuration,
		cooldown:     ratelimit.DefaultCooldown,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// decide computes the next record and the decision for a request at now.
// A nil record means no state change.
func (s *VerificationService) decide(rec *attempt.Record, email string, now time.Time) (*attempt.Record, Decision) {
	lock := emaillock.Evaluate(rec, now)

	if !lock.Allowed {
		if rec.Email != email {
			return nil, rejected(RejectedEmailLock, lock.RetryAfter)
		}
		next, res := ratelimit.Consume(rec, email, now, s.cooldown)
		if !res.Allowed {
			return nil, rejected(RejectedCooldown, res.RetryAfter)
		}
		return next, Decision{Kind: OtpResent}
	}

	// New claim: always accepted. Open a fresh cooldown window, then lock the email.
	next := ratelimit.StartWindow(rec, email, now)
	return emaillock.Apply(next, email, now, s.lockDuration), Decision{Kind: NewOtpIssued}
}

// RequestVerification handles a request to send a code for email to userID.
// email is expected to be validated and normalized by the caller. A returned
// error wraps ErrStoreFailure; delivery failures are reported as SendFailed.
func (s *VerificationService) RequestVerification(ctx context.Context, userID, email string) (Decision, error) {
	var (
		d    Decision
		prev *attempt.Record
	)
	committed, err := s.repo.Update(ctx, userID, func(current *attempt.Record) (*attempt.Record, error) {
		prev = current.Clone()
		var next *attempt.Record
		next, d = s.decide(current, email, s.clock.Now())
		return next, nil
	})
	if err != nil {
		return Decision{}, s.storeFailure(userID, "update attempt record", err)
	}

	if d.Rejected() {
		slog.Info("Verification request rejected", "user_id", userID, "kind", d.Kind, "retry_after_seconds", d.RetryAfterSeconds)
		s.metrics.observe(d.Kind)
		return d, nil
	}

	entry, err := s.codes.Generate(ctx, userID)
	if err != nil {
		// Without a code the committed lock and cooldown would strand the user.
		s.rollback(ctx, userID, prev, committed)
		return Decision{}, s.storeFailure(userID, "generate otp code", err)
	}
	d.EntryID = entry.ID
	d.ExpiresAt = entry.ExpiresAt

	if err := s.mailer.SendOtp(ctx, email, entry); err != nil {
		slog.Error("Failed to send otp email", "user_id", userID, "entry_id", entry.ID, "error", err)
		d.Kind = SendFailed
		d.Err = err
		if s.rollbackOnSendFailure {
			s.rollback(ctx, userID, prev, committed)
			if err := s.codes.Revoke(ctx, entry); err != nil {
				slog.Error("Failed to revoke undelivered otp code", "user_id", userID, "entry_id", entry.ID, "error", err)
			}
		}
		s.metrics.observe(d.Kind)
		return d, nil
	}

	slog.Info("Verification code sent", "user_id", userID, "kind", d.Kind, "entry_id", entry.ID)
	s.metrics.observe(d.Kind)
	return d, nil
}

// rollback puts prev back if the record still holds what this request
// committed. A user with no previous record gets an unclaimed record.
func (s *VerificationService) rollback(ctx context.Context, userID string, prev, committed *attempt.Record) {
	_, err := s.repo.Update(ctx, userID, func(current *attempt.Record) (*attempt.Record, error) {
		if !current.Equal(committed) {
			return nil, nil
		}
		if prev == nil {
			return &attempt.Record{UserID: userID}, nil
		}
		return prev.Clone(), nil
	})
	if err != nil {
		slog.Error("Failed to roll back attempt record", "user_id", userID, "error", err)
		return
	}
	slog.Info("Attempt record rolled back", "user_id", userID)
}

func (s *VerificationService) storeFailure(userID, op string, err error) error {
	slog.Error("Verification store failure", "user_id", userID, "op", op, "error", err)
	s.metrics.storeFailure()
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}

// ResetUser clears the user's record and live code.
func (s *VerificationService) ResetUser(ctx context.Context, userID string) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return s.storeFailure(userID, "delete attempt record", err)
	}
	if err := s.codes.Invalidate(ctx, userID); err != nil {
		return s.storeFailure(userID, "invalidate otp code", err)
	}
	slog.Info("Verification state reset", "user_id", userID)
	return nil
}

// GetActiveCode returns the user's live code, if any.
func (s *VerificationService) GetActiveCode(ctx context.Context, userID string) (otpcode.Entry, bool, error) {
	entry, ok, err := s.codes.Active(ctx, userID)
	if err != nil {
		return otpcode.Entry{}, false, s.storeFailure(userID, "read otp code", err)
	}
	return entry, ok, nil
}

// VerifyCode checks code against the live code and consumes it on a match.
// The attempt record is left as is.
func (s *VerificationService) VerifyCode(ctx context.Context, userID, code string) (bool, error) {
	ok, err := s.codes.Verify(ctx, userID, code)
	if err != nil {
		return false, s.storeFailure(userID, "verify otp code", err)
	}
	return ok, nil
}

// Status is a read-only view of a user's verification state.
type Status struct {
	Record *attempt.Record
	// Lock is the email lock state; RetryAfter is how long until another email
	// may be claimed.
	Lock emaillock.Status
	// CooldownRemaining is how long until a code may be resent to Record.Email.
	CooldownRemaining time.Duration
	ActiveCode        bool
	CodeExpiresAt     time.Time
}

// GetStatus returns the user's state. Record is nil for unknown users.
func (s *VerificationService) GetStatus(ctx context.Context, userID string) (Status, error) {
	now := s.clock.Now()

	rec, err := s.repo.Get(ctx, userID)
	if err != nil && !errors.Is(err, attempt.ErrRecordNotFound) {
		return Status{}, s.storeFailure(userID, "read attempt record", err)
	}

	st := Status{Record: rec, Lock: emaillock.Evaluate(rec, now)}
	if rec.Claimed() {
		if _, res := ratelimit.Consume(rec, rec.Email, now, s.cooldown); !res.Allowed {
			st.CooldownRemaining = res.RetryAfter
		}
	}

	entry, ok, err := s.GetActiveCode(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	st.ActiveCode = ok
	st.CodeExpiresAt = entry.ExpiresAt
	return st, nil
}

// PurgeStale deletes records whose timers all ended more than olderThan ago.
func (s *VerificationService) PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	before := s.clock.Now().Add(-olderThan)
	n, err := s.repo.DeleteStale(ctx, before)
	if err != nil {
		return 0, s.storeFailure("", "purge stale records", err)
	}
	slog.Info("Purged stale attempt records", "count", n, "before", before)
	return n, nil
}
