package verification

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Kind is the outcome of a verification request.
type Kind string

const (
	NewOtpIssued      Kind = "NEW_OTP_ISSUED"
	OtpResent         Kind = "OTP_RESENT"
	RejectedEmailLock Kind = "REJECTED_EMAIL_LOCK"
	RejectedCooldown  Kind = "REJECTED_COOLDOWN"
	SendFailed        Kind = "SEND_FAILED"
)

// Decision describes what RequestVerification did.
type Decision struct {
	Kind Kind
	// RetryAfter is set for rejections.
	RetryAfter        time.Duration
	RetryAfterSeconds int64
	// EntryID and ExpiresAt identify the issued code when one was generated.
	EntryID   uuid.UUID
	ExpiresAt time.Time
	// Err is the delivery error for SendFailed.
	Err error
}

// Rejected reports whether the request was refused without any state change.
func (d Decision) Rejected() bool {
	return d.Kind == RejectedEmailLock || d.Kind == RejectedCooldown
}

// Issued reports whether a code was delivered.
func (d Decision) Issued() bool {
	return d.Kind == NewOtpIssued || d.Kind == OtpResent
}

func rejected(kind Kind, wait time.Duration) Decision {
	return Decision{Kind: kind, RetryAfter: wait, RetryAfterSeconds: RetrySeconds(wait)}
}

// RetrySeconds rounds a wait up to whole seconds.
func RetrySeconds(wait time.Duration) int64 {
	if wait <= 0 {
		return 0
	}
	return int64(math.Ceil(wait.Seconds()))
}
