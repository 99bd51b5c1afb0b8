package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	apperrors "github.com/tendant/simple-otp/pkg/errors"
)

// Authenticator rejects requests that jwtauth.Verifier could not attach a
// valid token to, answering with the same JSON error body as the handlers.
func Authenticator(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, _, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil {
				slog.Debug("Rejected request without valid token", "path", r.URL.Path, "error", err)
				renderError(w, r, apperrors.Unauthorized("missing or invalid token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminRoleMiddleware allows only tokens whose "roles" claim holds admin or
// superadmin.
func AdminRoleMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			renderError(w, r, apperrors.Unauthorized("missing or invalid token"))
			return
		}

		roles, _ := claims["roles"].([]interface{})
		for _, role := range roles {
			if role == "admin" || role == "superadmin" {
				next.ServeHTTP(w, r)
				return
			}
		}

		slog.Warn("User attempted to access admin-only resource without admin role",
			"user_id", claims["sub"],
			"roles", roles)
		renderError(w, r, apperrors.New(apperrors.ErrCodeForbidden, "admin role required"))
	})
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := apperrors.ToResponse(err)
	render.Status(r, status)
	render.JSON(w, r, body)
}
