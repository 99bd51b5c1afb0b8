// Package router mounts the verification HTTP surface on a chi router.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-otp/pkg/ratelimit"
	"github.com/tendant/simple-otp/pkg/verification/api"
)

// DefaultPrefix is where the verification API is mounted when Config.Prefix
// is empty.
const DefaultPrefix = "/api/otp"

// Config holds the handlers and middleware needed to setup routes
type Config struct {
	Prefix string

	VerificationHandle *api.Handle

	// JWT authentication for everything under Prefix
	TokenAuth *jwtauth.JWTAuth

	// Optional: nil disables throttling
	RateLimiter *ratelimit.Middleware

	// Optional: nil skips the /metrics endpoint
	MetricsHandler http.Handler
}

// RequestPath is the full path of the code request endpoint, the key used
// for its endpoint-specific rate limit.
func (c Config) RequestPath() string {
	return c.prefix() + "/request"
}

func (c Config) prefix() string {
	if c.Prefix == "" {
		return DefaultPrefix
	}
	return c.Prefix
}

// SetupRoutes mounts the public and authenticated routes on router.
func SetupRoutes(router chi.Router, cfg Config) {
	if cfg.MetricsHandler != nil {
		router.Handle("/metrics", cfg.MetricsHandler)
	}

	router.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(cfg.TokenAuth))
		r.Use(api.Authenticator(cfg.TokenAuth))
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Handler)
		}

		r.Route(cfg.prefix(), func(r chi.Router) {
			r.Get("/me", getMe)
			cfg.VerificationHandle.Routes(r)
		})
	})
}

type meResponse struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
}

// getMe echoes the caller identity the verification endpoints act on.
func getMe(w http.ResponseWriter, r *http.Request) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	resp := meResponse{}
	resp.UserID, _ = claims["sub"].(string)
	if roles, ok := claims["roles"].([]interface{}); ok {
		for _, role := range roles {
			if s, ok := role.(string); ok {
				resp.Roles = append(resp.Roles, s)
			}
		}
	}
	render.JSON(w, r, resp)
}
