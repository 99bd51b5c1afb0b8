package otpcode

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store holds at most one Entry per user.
type Store interface {
	// Save replaces any entry held for entry.UserID.
	Save(ctx context.Context, entry Entry, ttl time.Duration) error
	// Get returns ErrCodeNotFound when nothing is stored.
	Get(ctx context.Context, userID string) (Entry, error)
	// Delete removes the user's entry, if any.
	Delete(ctx context.Context, userID string) error
	// DeleteIf removes the user's entry only when its ID matches id.
	DeleteIf(ctx context.Context, userID string, id uuid.UUID) (bool, error)
}

// NewStore creates a code store for the given backend ("memory" or "redis").
func NewStore(storeType string, rdb RedisClient, keyPrefix string) (Store, error) {
	switch storeType {
	case "memory", "":
		return NewMemoryStore(), nil
	case "redis":
		if rdb == nil {
			return nil, errRedisClientRequired
		}
		return NewRedisStore(rdb, keyPrefix), nil
	default:
		return nil, unsupportedStoreError(storeType)
	}
}
