package otpcode

import (
	"time"

	"github.com/google/uuid"
)

// Entry is the single live code for a user.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is no longer usable at now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// ValidFor returns the validity window of the code.
func (e Entry) ValidFor() time.Duration {
	return e.ExpiresAt.Sub(e.IssuedAt)
}
