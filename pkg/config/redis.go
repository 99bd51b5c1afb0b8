package config

import "github.com/redis/go-redis/v9"

// RedisConfig holds the Redis connection used by the redis attempt
// repository and code store.
type RedisConfig struct {
	Addr      string `env:"OTP_REDIS_ADDR" env-default:"localhost:6379"`
	Password  string `env:"OTP_REDIS_PASSWORD" env-default:""`
	DB        int    `env:"OTP_REDIS_DB" env-default:"0"`
	KeyPrefix string `env:"OTP_REDIS_KEY_PREFIX" env-default:"otp:"`
}

// NewClient creates a go-redis client for the config.
func (r RedisConfig) NewClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
	})
}

// AttemptPrefix is the key prefix of attempt records.
func (r RedisConfig) AttemptPrefix() string {
	return r.KeyPrefix + "attempt:"
}

// CodePrefix is the key prefix of live codes.
func (r RedisConfig) CodePrefix() string {
	return r.KeyPrefix + "code:"
}
