package verification

import "errors"

var (
	// ErrStoreFailure wraps any failure to read or write verification state.
	ErrStoreFailure = errors.New("verification store failure")
)
