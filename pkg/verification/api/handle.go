package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-otp/pkg/emailvalidation"
	apperrors "github.com/tendant/simple-otp/pkg/errors"
	"github.com/tendant/simple-otp/pkg/verification"
)

// Handle serves the verification HTTP API. User endpoints act on the "sub"
// claim of the request's JWT.
type Handle struct {
	service   *verification.VerificationService
	validator *emailvalidation.Validator
}

func NewHandle(service *verification.VerificationService, validator *emailvalidation.Validator) *Handle {
	return &Handle{service: service, validator: validator}
}

// Routes mounts the user endpoints and, behind AdminRoleMiddleware, the admin
// endpoints. A jwtauth verifier and authenticator must run before it.
func (h *Handle) Routes(r chi.Router) {
	r.Post("/request", h.RequestVerification)
	r.Post("/verify", h.VerifyCode)
	r.Get("/status", h.GetStatus)

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Use(AdminRoleMiddleware)
		r.Get("/", h.GetUserRecord)
		r.Delete("/", h.ResetUser)
	})
}

// RequestVerification handles POST /request
func (h *Handle) RequestVerification(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}

	var req RequestVerificationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, apperrors.InvalidInput("body", "malformed json"))
		return
	}

	res := h.validator.Validate(req.Email)
	if !res.Valid {
		code := apperrors.ErrCodeEmailInvalidFormat
		message := "email address is not valid"
		if res.Reason == emailvalidation.ReasonDomain {
			code = apperrors.ErrCodeEmailDomain
			message = "email domain is not accepted"
		}
		renderError(w, r, apperrors.New(code, message).WithDetail("reason", string(res.Reason)))
		return
	}

	d, err := h.service.RequestVerification(r.Context(), userID, res.Email)
	if err != nil {
		renderError(w, r, apperrors.Wrap(err, apperrors.ErrCodeResourceUnavailable, "verification state unavailable"))
		return
	}

	switch d.Kind {
	case verification.RejectedEmailLock:
		w.Header().Set("Retry-After", strconv.FormatInt(d.RetryAfterSeconds, 10))
		renderError(w, r, apperrors.RetryLater(apperrors.ErrCodeEmailLocked,
			"another email is being verified, please verify the code sent to it", d.RetryAfterSeconds))
		return
	case verification.RejectedCooldown:
		w.Header().Set("Retry-After", strconv.FormatInt(d.RetryAfterSeconds, 10))
		renderError(w, r, apperrors.RetryLater(apperrors.ErrCodeOtpCooldown,
			"a code was sent recently, please wait before requesting another", d.RetryAfterSeconds))
		return
	case verification.SendFailed:
		renderError(w, r, apperrors.Wrap(d.Err, apperrors.ErrCodeOtpSendFailed, "failed to send verification email"))
		return
	}

	status := http.StatusCreated
	if d.Kind == verification.OtpResent {
		status = http.StatusOK
	}
	render.Status(r, status)
	render.JSON(w, r, RequestVerificationResponse{
		Decision:  string(d.Kind),
		Email:     res.Email,
		ExpiresAt: d.ExpiresAt,
	})
}

// VerifyCode handles POST /verify
func (h *Handle) VerifyCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}

	var req VerifyCodeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil || req.Code == "" {
		renderError(w, r, apperrors.InvalidInput("code", "code is required"))
		return
	}

	verified, err := h.service.VerifyCode(r.Context(), userID, req.Code)
	if err != nil {
		renderError(w, r, apperrors.Wrap(err, apperrors.ErrCodeResourceUnavailable, "verification state unavailable"))
		return
	}
	if !verified {
		renderError(w, r, apperrors.New(apperrors.ErrCodeOtpInvalid, "code is invalid or expired"))
		return
	}

	render.JSON(w, r, VerifyCodeResponse{Verified: true})
}

// GetStatus handles GET /status
func (h *Handle) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := subject(w, r)
	if !ok {
		return
	}

	st, err := h.service.GetStatus(r.Context(), userID)
	if err != nil {
		renderError(w, r, apperrors.Wrap(err, apperrors.ErrCodeResourceUnavailable, "verification state unavailable"))
		return
	}

	resp := StatusResponse{
		EmailLocked:                !st.Lock.Allowed,
		EmailLockRetryAfterSeconds: verification.RetrySeconds(st.Lock.RetryAfter),
		CooldownRetryAfterSeconds:  verification.RetrySeconds(st.CooldownRemaining),
		ActiveCode:                 st.ActiveCode,
	}
	if st.Record != nil {
		resp.Email = st.Record.Email
	}
	if st.ActiveCode {
		resp.CodeExpiresAt = &st.CodeExpiresAt
	}
	render.JSON(w, r, resp)
}

// GetUserRecord handles GET /users/{userID}
func (h *Handle) GetUserRecord(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	st, err := h.service.GetStatus(r.Context(), userID)
	if err != nil {
		renderError(w, r, apperrors.Wrap(err, apperrors.ErrCodeResourceUnavailable, "verification state unavailable"))
		return
	}
	if st.Record == nil {
		renderError(w, r, apperrors.NotFound("attempt record", userID))
		return
	}

	var resp AttemptRecordResponse
	if err := copier.Copy(&resp, st.Record); err != nil {
		slog.Error("Failed to copy attempt record", "user_id", userID, "error", err)
		renderError(w, r, apperrors.InternalWrap(err, "failed to build response"))
		return
	}
	render.JSON(w, r, resp)
}

// ResetUser handles DELETE /users/{userID}
func (h *Handle) ResetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.service.ResetUser(r.Context(), userID); err != nil {
		renderError(w, r, apperrors.Wrap(err, apperrors.ErrCodeResourceUnavailable, "verification state unavailable"))
		return
	}

	slog.Info("Verification state reset by admin", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

func subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		renderError(w, r, apperrors.Unauthorized("missing or invalid token"))
		return "", false
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		renderError(w, r, apperrors.Unauthorized("token has no subject"))
		return "", false
	}
	return sub, true
}
