package attempt

import (
	"context"
	"time"
)

// UpdateFunc receives a copy of the stored record, or nil when the user has
// none, and returns the record to store. Returning a nil record leaves the
// stored state untouched. A non-nil error aborts the update.
type UpdateFunc func(current *Record) (*Record, error)

// Repository defines the storage operations for attempt records.
type Repository interface {
	// Get returns the user's record or ErrRecordNotFound.
	Get(ctx context.Context, userID string) (*Record, error)

	// Update atomically applies fn to the user's record and returns the
	// record as stored afterwards (nil if the user still has none).
	// Concurrent updates for the same user are serialized.
	Update(ctx context.Context, userID string, fn UpdateFunc) (*Record, error)

	// Delete removes the user's record. Deleting a missing record is not an error.
	Delete(ctx context.Context, userID string) error

	// DeleteStale removes records whose timers all ended at or before the cutoff.
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}
