package config

import (
	"time"

	"github.com/tendant/simple-otp/pkg/ratelimit"
)

// RateLimitConfig contains HTTP throttling settings. Capacities are burst
// sizes and refill rates are tokens per second.
type RateLimitConfig struct {
	GlobalEnabled    bool    `env:"RATELIMIT_GLOBAL_ENABLED" env-default:"true"`
	GlobalCapacity   int     `env:"RATELIMIT_GLOBAL_CAPACITY" env-default:"1000"`
	GlobalRefillRate float64 `env:"RATELIMIT_GLOBAL_REFILL_RATE" env-default:"16.67"`

	PerIPEnabled    bool    `env:"RATELIMIT_PER_IP_ENABLED" env-default:"true"`
	PerIPCapacity   int     `env:"RATELIMIT_PER_IP_CAPACITY" env-default:"30"`
	PerIPRefillRate float64 `env:"RATELIMIT_PER_IP_REFILL_RATE" env-default:"0.5"`

	PerUserEnabled    bool    `env:"RATELIMIT_PER_USER_ENABLED" env-default:"true"`
	PerUserCapacity   int     `env:"RATELIMIT_PER_USER_CAPACITY" env-default:"20"`
	PerUserRefillRate float64 `env:"RATELIMIT_PER_USER_REFILL_RATE" env-default:"0.333"`

	// Extra per-IP budget for the code request endpoint.
	RequestEnabled    bool    `env:"RATELIMIT_REQUEST_ENABLED" env-default:"true"`
	RequestCapacity   int     `env:"RATELIMIT_REQUEST_CAPACITY" env-default:"5"`
	RequestRefillRate float64 `env:"RATELIMIT_REQUEST_REFILL_RATE" env-default:"0.083"`

	BucketTTL      time.Duration `env:"RATELIMIT_BUCKET_TTL" env-default:"1h"`
	IncludeHeaders bool          `env:"RATELIMIT_INCLUDE_HEADERS" env-default:"true"`
}

// ToMiddlewareConfig converts the config for ratelimit.NewMiddleware.
// requestPath is the full route of the code request endpoint.
func (c RateLimitConfig) ToMiddlewareConfig(requestPath string) *ratelimit.Config {
	cfg := &ratelimit.Config{
		GlobalEnabled:     c.GlobalEnabled,
		GlobalCapacity:    c.GlobalCapacity,
		GlobalRefillRate:  c.GlobalRefillRate,
		PerIPEnabled:      c.PerIPEnabled,
		PerIPCapacity:     c.PerIPCapacity,
		PerIPRefillRate:   c.PerIPRefillRate,
		PerUserEnabled:    c.PerUserEnabled,
		PerUserCapacity:   c.PerUserCapacity,
		PerUserRefillRate: c.PerUserRefillRate,
		EndpointLimits:    make(map[string]ratelimit.EndpointLimit),
		BucketTTL:         c.BucketTTL,
		IncludeHeaders:    c.IncludeHeaders,
	}
	if c.RequestEnabled && requestPath != "" {
		cfg.EndpointLimits["POST "+requestPath] = ratelimit.EndpointLimit{
			Capacity:   c.RequestCapacity,
			RefillRate: c.RequestRefillRate,
		}
	}
	return cfg
}
