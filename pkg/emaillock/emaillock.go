// Package emaillock freezes the email a user is verifying so it cannot be
// switched to another address until the lock runs out.
//
// Evaluate and Apply are the pure rules the verification service composes
// inside its own transaction. EmailLock runs them directly against a
// repository for callers that act on the lock alone, such as otpctl lock.
package emaillock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-otp/pkg/attempt"
	"github.com/tendant/simple-otp/pkg/clock"
)

// DefaultDuration is how long a newly claimed email stays locked.
const DefaultDuration = 10 * time.Minute

// Status reports whether the user may claim a new email.
type Status struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Evaluate reports the lock state of rec at now. It ignores which email is
// being requested. A nil or unclaimed record is never locked.
func Evaluate(rec *attempt.Record, now time.Time) Status {
	if !rec.Claimed() || !rec.EmailLockUntil.After(now) {
		return Status{Allowed: true}
	}
	return Status{Allowed: false, RetryAfter: rec.EmailLockUntil.Sub(now)}
}

// Apply returns a copy of rec claiming email and locked until now+d.
// rec may be nil.
func Apply(rec *attempt.Record, email string, now time.Time, d time.Duration) *attempt.Record {
	next := rec.Clone()
	if next == nil {
		next = &attempt.Record{}
	}
	next.Email = email
	next.EmailLockUntil = now.Add(d)
	next.LastAttempt = now
	return next
}

// EmailLock reads and writes lock state through an attempt repository.
type EmailLock struct {
	repo     attempt.Repository
	clock    clock.Clock
	duration time.Duration
}

type Option func(*EmailLock)

func WithDuration(d time.Duration) Option {
	return func(l *EmailLock) {
		if d > 0 {
			l.duration = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(l *EmailLock) {
		l.clock = c
	}
}

func New(repo attempt.Repository, opts ...Option) *EmailLock {
	l := &EmailLock{
		repo:     repo,
		clock:    clock.New(),
		duration: DefaultDuration,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Duration returns the configured lock length.
func (l *EmailLock) Duration() time.Duration {
	return l.duration
}

// Check reports whether the user is currently locked to an email.
func (l *EmailLock) Check(ctx context.Context, userID string) (Status, error) {
	rec, err := l.repo.Get(ctx, userID)
	if errors.Is(err, attempt.ErrRecordNotFound) {
		return Status{Allowed: true}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("failed to read email lock: %w", err)
	}
	return Evaluate(rec, l.clock.Now()), nil
}

// Lock claims email for the user and (re)starts the lock window.
func (l *EmailLock) Lock(ctx context.Context, userID, email string) error {
	var until time.Time
	_, err := l.repo.Update(ctx, userID, func(current *attempt.Record) (*attempt.Record, error) {
		next := Apply(current, email, l.clock.Now(), l.duration)
		until = next.EmailLockUntil
		return next, nil
	})
	if err != nil {
		return fmt.Errorf("failed to lock email: %w", err)
	}

	slog.Info("Email locked for verification", "user_id", userID, "until", until)
	return nil
}
