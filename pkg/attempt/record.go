package attempt

import "time"

// Record is the verification state of one user.
type Record struct {
	UserID           string    `json:"user_id"`
	Email            string    `json:"email"`
	LastAttempt      time.Time `json:"last_attempt"`
	AttemptCount     int       `json:"attempt_count"`
	EmailLockUntil   time.Time `json:"email_lock_until"`
	OtpCooldownUntil time.Time `json:"otp_cooldown_until"`
}

// Clone returns a copy of r. Clone of a nil record is nil.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Claimed reports whether the record holds an email claim.
func (r *Record) Claimed() bool {
	return r != nil && r.Email != ""
}

// Stale reports whether every timer on the record ended at or before the cutoff.
func (r *Record) Stale(before time.Time) bool {
	return !r.LastAttempt.After(before) &&
		!r.EmailLockUntil.After(before) &&
		!r.OtpCooldownUntil.After(before)
}

// Equal reports whether r and o hold the same state.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.UserID == o.UserID &&
		r.Email == o.Email &&
		r.AttemptCount == o.AttemptCount &&
		r.LastAttempt.Equal(o.LastAttempt) &&
		r.EmailLockUntil.Equal(o.EmailLockUntil) &&
		r.OtpCooldownUntil.Equal(o.OtpCooldownUntil)
}
