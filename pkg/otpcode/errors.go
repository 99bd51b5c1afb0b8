package otpcode

import "errors"

var (
	// ErrCodeNotFound is returned when the user has no live code.
	ErrCodeNotFound = errors.New("otp code not found")
)
