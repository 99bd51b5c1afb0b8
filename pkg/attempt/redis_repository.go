package attempt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisKeyPrefix = "otp:attempt:"
	redisMaxRetries       = 50
	redisRetryBackoff     = 2 * time.Millisecond
)

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisRepository stores each record as a JSON value under prefix+userID.
// Update uses WATCH/MULTI and retries when another writer got in first.
type RedisRepository struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisRepository creates a new Redis attempt repository
func NewRedisRepository(rdb *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return &RedisRepository{rdb: rdb, prefix: prefix}
}

func (r *RedisRepository) key(userID string) string {
	return r.prefix + userID
}

func (r *RedisRepository) Get(ctx context.Context, userID string) (*Record, error) {
	return r.read(ctx, r.rdb, r.key(userID))
}

func (r *RedisRepository) Update(ctx context.Context, userID string, fn UpdateFunc) (*Record, error) {
	key := r.key(userID)
	var stored *Record

	txf := func(tx *redis.Tx) error {
		current, err := r.read(ctx, tx, key)
		if err != nil && !errors.Is(err, ErrRecordNotFound) {
			return err
		}

		next, err := fn(current.Clone())
		if err != nil {
			return err
		}
		if next == nil {
			stored = current
			return nil
		}

		next = next.Clone()
		next.UserID = userID
		b, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal attempt record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			return nil
		})
		if err != nil {
			return err
		}
		stored = next
		return nil
	}

	for i := 0; i < redisMaxRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * redisRetryBackoff):
		}
	}

	return nil, ErrConcurrentUpdate
}

func (r *RedisRepository) Delete(ctx context.Context, userID string) error {
	if err := r.rdb.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete attempt record: %w", err)
	}
	return nil
}

func (r *RedisRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		rec, err := r.read(ctx, r.rdb, key)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				continue
			}
			return n, err
		}
		if !rec.Stale(before) {
			continue
		}
		if err := r.rdb.Del(ctx, key).Err(); err != nil {
			return n, fmt.Errorf("failed to delete stale attempt record: %w", err)
		}
		n++
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("failed to scan attempt records: %w", err)
	}
	return n, nil
}

func (r *RedisRepository) read(ctx context.Context, c redisGetter, key string) (*Record, error) {
	b, err := c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read attempt record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attempt record: %w", err)
	}
	return &rec, nil
}
