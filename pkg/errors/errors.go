// Package errors provides structured errors with stable machine-readable
// codes and their HTTP status mapping.
//
//	err := errors.New(errors.ErrCodeEmailLocked, "email is locked").
//	    WithDetail("retry_after_seconds", 540)
//	status := err.HTTPStatusCode() // 423
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Generic errors
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden           ErrorCode = "FORBIDDEN"
	ErrCodeTimeout             ErrorCode = "TIMEOUT"
	ErrCodeRateLimitExceeded   ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeResourceUnavailable ErrorCode = "RESOURCE_UNAVAILABLE"

	// Email validation
	ErrCodeEmailInvalidFormat ErrorCode = "EMAIL_INVALID_FORMAT"
	ErrCodeEmailDomain        ErrorCode = "EMAIL_DOMAIN_NOT_ALLOWED"

	// Verification flow
	ErrCodeEmailLocked   ErrorCode = "EMAIL_LOCKED"
	ErrCodeOtpCooldown   ErrorCode = "OTP_COOLDOWN"
	ErrCodeOtpSendFailed ErrorCode = "OTP_SEND_FAILED"
	ErrCodeOtpInvalid    ErrorCode = "OTP_INVALID"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// Response is the JSON body written for an Error. The wrapped error is
// never exposed.
type Response struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToResponse converts any error into a response body and status. Errors that
// are not structured become an opaque internal error.
func ToResponse(err error) (int, Response) {
	var e *Error
	if !errors.As(err, &e) {
		e = Internal("internal error")
	}
	return e.HTTPStatusCode(), Response{Code: e.Code, Message: e.Message, Details: e.Details}
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
// Returns ErrCodeInternal if the error is not a structured Error
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidInput, ErrCodeEmailInvalidFormat:
		return http.StatusBadRequest

	case ErrCodeUnauthorized, ErrCodeOtpInvalid:
		return http.StatusUnauthorized

	case ErrCodeForbidden:
		return http.StatusForbidden

	case ErrCodeNotFound:
		return http.StatusNotFound

	case ErrCodeEmailLocked:
		return http.StatusLocked

	case ErrCodeEmailDomain:
		return http.StatusUnprocessableEntity

	case ErrCodeRateLimitExceeded, ErrCodeOtpCooldown:
		return http.StatusTooManyRequests

	case ErrCodeOtpSendFailed:
		return http.StatusBadGateway

	case ErrCodeResourceUnavailable, ErrCodeTimeout:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// NotFound creates a "not found" error
func NotFound(resourceType, identifier string) *Error {
	return Newf(ErrCodeNotFound, "%s not found: %s", resourceType, identifier)
}

// InvalidInput creates an "invalid input" error
func InvalidInput(field, reason string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason))
}

// Unauthorized creates an "unauthorized" error
func Unauthorized(message string) *Error {
	return New(ErrCodeUnauthorized, message)
}

// Internal creates an "internal error"
func Internal(message string) *Error {
	return New(ErrCodeInternal, message)
}

// InternalWrap wraps an internal error
func InternalWrap(err error, message string) *Error {
	return Wrap(err, ErrCodeInternal, message)
}

// RetryLater creates a code-specific error carrying the wait in seconds.
func RetryLater(code ErrorCode, message string, retryAfterSeconds int64) *Error {
	return New(code, message).WithDetail("retry_after_seconds", retryAfterSeconds)
}
