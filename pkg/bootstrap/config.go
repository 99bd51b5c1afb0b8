// Package bootstrap assembles the verification service and its backends from
// environment configuration. The server and the admin CLI share it.
package bootstrap

import (
	"github.com/tendant/simple-otp/pkg/config"
)

// Config is the full environment configuration of the service.
type Config struct {
	Otp       config.OtpConfig
	Database  config.DatabaseConfig
	Redis     config.RedisConfig
	Email     config.EmailConfig
	JWT       config.JWTConfig
	RateLimit config.RateLimitConfig
}

// LoadConfig loads .env files and reads Config from the environment.
func LoadConfig(envFiles ...string) (Config, error) {
	config.LoadDotEnv(envFiles...)
	var cfg Config
	if err := config.Read(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) needsPostgres() bool {
	return c.Otp.PersistenceType == "postgres" || c.Otp.PersistenceType == "postgresql"
}

func (c Config) needsRedis() bool {
	return c.Otp.PersistenceType == "redis" || c.Otp.CodeStore == "redis"
}
