package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/tendant/simple-otp/pkg/attempt"
	"github.com/tendant/simple-otp/pkg/clock"
)

// DefaultCooldown is the minimum gap between two codes sent to the same email.
const DefaultCooldown = 3 * time.Minute

// Result is the outcome of a cooldown check.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Consume applies the resend cooldown for (rec.UserID, email) at now.
// It returns the record to store, or nil when the request is refused and
// nothing changes. rec may be nil.
//
// A different email, or no claimed email at all, starts a new window with
// AttemptCount reset to 1. The same email is refused while
// now-OtpCooldownUntil < cooldown.
func Consume(rec *attempt.Record, email string, now time.Time, cooldown time.Duration) (*attempt.Record, Result) {
	if !rec.Claimed() || rec.Email != email {
		return StartWindow(rec, email, now), Result{Allowed: true}
	}

	elapsed := now.Sub(rec.OtpCooldownUntil)
	if elapsed < cooldown {
		return nil, Result{Allowed: false, RetryAfter: cooldown - elapsed}
	}

	next := rec.Clone()
	next.OtpCooldownUntil = now
	next.AttemptCount++
	next.LastAttempt = now
	return next, Result{Allowed: true}
}

// StartWindow returns a copy of rec whose cooldown window for email opens at
// now, with AttemptCount reset to 1. rec may be nil.
func StartWindow(rec *attempt.Record, email string, now time.Time) *attempt.Record {
	next := rec.Clone()
	if next == nil {
		next = &attempt.Record{}
	}
	next.Email = email
	next.OtpCooldownUntil = now
	next.AttemptCount = 1
	next.LastAttempt = now
	return next
}

// CooldownLimiter enforces the resend cooldown against an attempt repository.
// otpctl cooldown uses it to charge codes delivered outside the service.
type CooldownLimiter struct {
	repo     attempt.Repository
	clock    clock.Clock
	cooldown time.Duration
}

type CooldownOption func(*CooldownLimiter)

func WithCooldown(d time.Duration) CooldownOption {
	return func(l *CooldownLimiter) {
		if d > 0 {
			l.cooldown = d
		}
	}
}

func WithCooldownClock(c clock.Clock) CooldownOption {
	return func(l *CooldownLimiter) {
		l.clock = c
	}
}

func NewCooldownLimiter(repo attempt.Repository, opts ...CooldownOption) *CooldownLimiter {
	l := &CooldownLimiter{
		repo:     repo,
		clock:    clock.New(),
		cooldown: DefaultCooldown,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cooldown returns the configured window.
func (l *CooldownLimiter) Cooldown() time.Duration {
	return l.cooldown
}

// CheckAndConsume checks the cooldown and, when allowed, starts a new window.
// Check and commit run in one repository transaction.
func (l *CooldownLimiter) CheckAndConsume(ctx context.Context, userID, email string) (Result, error) {
	var res Result
	_, err := l.repo.Update(ctx, userID, func(current *attempt.Record) (*attempt.Record, error) {
		var next *attempt.Record
		next, res = Consume(current, email, l.clock.Now(), l.cooldown)
		return next, nil
	})
	if err != nil {
		return Result{}, err
	}

	if !res.Allowed {
		slog.Info("Otp resend refused by cooldown", "user_id", userID, "retry_after", res.RetryAfter)
	}
	return res, nil
}
