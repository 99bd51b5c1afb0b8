package api

import "time"

type RequestVerificationRequest struct {
	Email string `json:"email"`
}

type RequestVerificationResponse struct {
	Decision  string    `json:"decision"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyCodeRequest struct {
	Code string `json:"code"`
}

type VerifyCodeResponse struct {
	Verified bool `json:"verified"`
}

type StatusResponse struct {
	Email                      string     `json:"email,omitempty"`
	EmailLocked                bool       `json:"email_locked"`
	EmailLockRetryAfterSeconds int64      `json:"email_lock_retry_after_seconds"`
	CooldownRetryAfterSeconds  int64      `json:"cooldown_retry_after_seconds"`
	ActiveCode                 bool       `json:"active_code"`
	CodeExpiresAt              *time.Time `json:"code_expires_at,omitempty"`
}

// AttemptRecordResponse is the admin view of a stored attempt record.
type AttemptRecordResponse struct {
	UserID           string    `json:"user_id"`
	Email            string    `json:"email"`
	LastAttempt      time.Time `json:"last_attempt"`
	AttemptCount     int       `json:"attempt_count"`
	EmailLockUntil   time.Time `json:"email_lock_until"`
	OtpCooldownUntil time.Time `json:"otp_cooldown_until"`
}
