package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-otp/pkg/clock"
)

// Config holds HTTP throttling configuration. Capacities are burst sizes,
// refill rates are requests per second.
type Config struct {
	GlobalEnabled    bool
	GlobalCapacity   int
	GlobalRefillRate float64

	PerIPEnabled    bool
	PerIPCapacity   int
	PerIPRefillRate float64

	// Keyed by the "sub" claim of the request's JWT.
	PerUserEnabled    bool
	PerUserCapacity   int
	PerUserRefillRate float64

	// Keyed by "METHOD /path", counted per client IP.
	EndpointLimits map[string]EndpointLimit

	// How long an idle bucket is kept before Prune drops it.
	BucketTTL time.Duration

	IncludeHeaders bool
}

// EndpointLimit defines throttling for a specific route
type EndpointLimit struct {
	Capacity   int
	RefillRate float64
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		GlobalEnabled:    true,
		GlobalCapacity:   1000,
		GlobalRefillRate: 1000.0 / 60.0,

		PerIPEnabled:    true,
		PerIPCapacity:   30,
		PerIPRefillRate: 30.0 / 60.0,

		PerUserEnabled:    true,
		PerUserCapacity:   20,
		PerUserRefillRate: 20.0 / 60.0,

		BucketTTL:      time.Hour,
		IncludeHeaders: true,
		EndpointLimits: make(map[string]EndpointLimit),
	}
}

// Middleware throttles HTTP requests before they reach the verification API.
type Middleware struct {
	config           *Config
	globalLimiter    *KeyedLimiter
	ipLimiter        *KeyedLimiter
	userLimiter      *KeyedLimiter
	endpointLimiters map[string]*KeyedLimiter
}

type rateLimitResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	Type              string `json:"type"`
	RetryAfterSeconds int64  `json:"retry_after_seconds"`
}

// NewMiddleware creates the throttling middleware. A nil config uses
// DefaultConfig and a nil clock uses the system clock.
func NewMiddleware(config *Config, c clock.Clock) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}
	if c == nil {
		c = clock.New()
	}

	m := &Middleware{
		config:           config,
		endpointLimiters: make(map[string]*KeyedLimiter),
	}
	if config.GlobalEnabled {
		m.globalLimiter = NewKeyedLimiter(config.GlobalCapacity, config.GlobalRefillRate, config.BucketTTL, c)
	}
	if config.PerIPEnabled {
		m.ipLimiter = NewKeyedLimiter(config.PerIPCapacity, config.PerIPRefillRate, config.BucketTTL, c)
	}
	if config.PerUserEnabled {
		m.userLimiter = NewKeyedLimiter(config.PerUserCapacity, config.PerUserRefillRate, config.BucketTTL, c)
	}
	for endpoint, limit := range config.EndpointLimits {
		m.endpointLimiters[endpoint] = NewKeyedLimiter(limit.Capacity, limit.RefillRate, config.BucketTTL, c)
	}
	return m
}

// Handler returns the throttling middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.globalLimiter != nil {
			if ok, wait := m.globalLimiter.Take("global"); !ok {
				m.rateLimitExceeded(w, r, "global", wait)
				return
			}
		}

		ip := getClientIP(r)
		if m.ipLimiter != nil && ip != "" {
			if ok, wait := m.ipLimiter.Take(ip); !ok {
				m.rateLimitExceeded(w, r, "ip", wait)
				return
			}
		}

		userID := getUserID(r)
		if m.userLimiter != nil && userID != "" {
			if ok, wait := m.userLimiter.Take(userID); !ok {
				m.rateLimitExceeded(w, r, "user", wait)
				return
			}
		}

		endpointKey := r.Method + " " + r.URL.Path
		if limiter, exists := m.endpointLimiters[endpointKey]; exists {
			if ok, wait := limiter.Take(ip + ":" + endpointKey); !ok {
				m.rateLimitExceeded(w, r, "endpoint", wait)
				return
			}
		}

		if m.config.IncludeHeaders {
			m.addRateLimitHeaders(w, ip, userID)
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, limitType string, wait time.Duration) {
	retryAfter := int64(math.Ceil(wait.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}

	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"ip", getClientIP(r),
		"user_id", getUserID(r),
		"path", r.URL.Path,
		"method", r.Method,
		"retry_after", retryAfter,
	)

	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	render.Status(r, http.StatusTooManyRequests)
	render.JSON(w, r, rateLimitResponse{
		Error:             "rate_limit_exceeded",
		Message:           "Too many requests. Please try again later.",
		Type:              limitType,
		RetryAfterSeconds: retryAfter,
	})
}

func (m *Middleware) addRateLimitHeaders(w http.ResponseWriter, ip, userID string) {
	if m.ipLimiter != nil && ip != "" {
		w.Header().Set("X-RateLimit-Limit-IP", strconv.Itoa(m.config.PerIPCapacity))
	}
	if m.userLimiter != nil && userID != "" {
		w.Header().Set("X-RateLimit-Limit-User", strconv.Itoa(m.config.PerUserCapacity))
	}
}

// Prune drops idle buckets from every limiter. Call it periodically.
func (m *Middleware) Prune() int {
	removed := 0
	for _, l := range m.limiters() {
		removed += l.Prune()
	}
	if removed > 0 {
		slog.Debug("Pruned idle rate limit buckets", "count", removed)
	}
	return removed
}

// Stats returns the number of tracked keys per limiter.
func (m *Middleware) Stats() map[string]int {
	stats := make(map[string]int)
	if m.globalLimiter != nil {
		stats["global"] = m.globalLimiter.Len()
	}
	if m.ipLimiter != nil {
		stats["ip"] = m.ipLimiter.Len()
	}
	if m.userLimiter != nil {
		stats["user"] = m.userLimiter.Len()
	}
	for endpoint, limiter := range m.endpointLimiters {
		stats["endpoint:"+endpoint] = limiter.Len()
	}
	return stats
}

func (m *Middleware) limiters() []*KeyedLimiter {
	var ls []*KeyedLimiter
	for _, l := range []*KeyedLimiter{m.globalLimiter, m.ipLimiter, m.userLimiter} {
		if l != nil {
			ls = append(ls, l)
		}
	}
	for _, l := range m.endpointLimiters {
		ls = append(ls, l)
	}
	return ls
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(ip)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "IP:port"
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// getUserID returns the "sub" claim of a verified JWT, if any.
func getUserID(r *http.Request) string {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || claims == nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
