package otpcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "otp:code:"

var errRedisClientRequired = errors.New("redis client required for redis code store")

func unsupportedStoreError(storeType string) error {
	return fmt.Errorf("unsupported code store type: %s (supported: memory, redis)", storeType)
}

// RedisClient is the subset of go-redis used by RedisStore.
type RedisClient interface {
	redis.Cmdable
	redis.Scripter
}

// deleteIfScript removes KEYS[1] only when the stored entry id equals ARGV[1].
var deleteIfScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
  return 0
end
if cjson.decode(v)['id'] == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStore keeps entries as JSON values that expire with the code.
type RedisStore struct {
	rdb    RedisClient
	prefix string
}

func NewRedisStore(rdb RedisClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisStore) Save(ctx context.Context, entry Entry, ttl time.Duration) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal otp entry: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(entry.UserID), b, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save otp entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, userID string) (Entry, error) {
	b, err := s.rdb.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrCodeNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get otp entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(b, &entry); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal otp entry: %w", err)
	}
	return entry, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete otp entry: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteIf(ctx context.Context, userID string, id uuid.UUID) (bool, error) {
	n, err := deleteIfScript.Run(ctx, s.rdb, []string{s.key(userID)}, id.String()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to delete otp entry: %w", err)
	}
	return n == 1, nil
}
