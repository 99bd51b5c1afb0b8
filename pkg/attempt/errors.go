package attempt

import "errors"

var (
	// ErrRecordNotFound is returned when no record exists for a user
	ErrRecordNotFound = errors.New("attempt record not found")

	// ErrConcurrentUpdate is returned when an optimistic update kept losing the race
	ErrConcurrentUpdate = errors.New("attempt record changed concurrently, retries exhausted")
)
