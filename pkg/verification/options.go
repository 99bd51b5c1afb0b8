package verification

import (
	"time"

	"github.com/tendant/simple-otp/pkg/clock"
)

// Option configures a VerificationService
type Option func(*VerificationService)

// WithLockDuration sets how long a claimed email stays locked.
func WithLockDuration(d time.Duration) Option {
	return func(s *VerificationService) {
		if d > 0 {
			s.lockDuration = d
		}
	}
}

// WithCooldown sets the minimum gap between codes for the same email.
func WithCooldown(d time.Duration) Option {
	return func(s *VerificationService) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *VerificationService) {
		s.clock = c
	}
}

// WithRollbackOnSendFailure restores the previous state and revokes the code
// when delivery fails. Off by default: the claim stays committed.
func WithRollbackOnSendFailure(enabled bool) Option {
	return func(s *VerificationService) {
		s.rollbackOnSendFailure = enabled
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *VerificationService) {
		s.metrics = m
	}
}
