package attempt

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// RepositoryConfig contains configuration for creating an attempt repository
type RepositoryConfig struct {
	// Pool is required for PostgreSQL repositories
	Pool *pgxpool.Pool
	// Redis is required for Redis repositories
	Redis *redis.Client
	// RedisKeyPrefix is optional, defaults to "otp:attempt:"
	RedisKeyPrefix string
	// DataDir is required for file-based repositories
	DataDir string
}

// NewAttemptRepository creates a new attempt repository based on the persistence type
func NewAttemptRepository(persistenceType string, config RepositoryConfig) (Repository, error) {
	switch persistenceType {
	case "memory", "":
		return NewMemoryRepository(), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file repository")
		}
		return NewFileRepository(config.DataDir)
	case "postgres", "postgresql":
		if config.Pool == nil {
			return nil, fmt.Errorf("pool required for postgres repository")
		}
		return NewPostgresRepository(config.Pool), nil
	case "redis":
		if config.Redis == nil {
			return nil, fmt.Errorf("redis client required for redis repository")
		}
		return NewRedisRepository(config.Redis, config.RedisKeyPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: memory, file, postgres, redis)", persistenceType)
	}
}
