package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-otp/pkg/attempt"
	"github.com/tendant/simple-otp/pkg/clock"
	"github.com/tendant/simple-otp/pkg/emailvalidation"
	apperrors "github.com/tendant/simple-otp/pkg/errors"
	"github.com/tendant/simple-otp/pkg/otpcode"
	"github.com/tendant/simple-otp/pkg/verification"
)

type captureMailer struct {
	mu    sync.Mutex
	err   error
	codes map[string]string
}

func (m *captureMailer) SendOtp(_ context.Context, email string, entry otpcode.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.codes == nil {
		m.codes = map[string]string{}
	}
	m.codes[email] = entry.Code
	return nil
}

type apiEnv struct {
	server *httptest.Server
	ta     *jwtauth.JWTAuth
	clock  *clock.Mock
	mailer *captureMailer
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()
	mock := clock.NewMock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	mailer := &captureMailer{}
	codes := otpcode.NewGenerator(otpcode.NewMemoryStore(), otpcode.WithClock(mock))
	svc := verification.NewVerificationService(attempt.NewMemoryRepository(), codes, mailer, verification.WithClock(mock))

	ta := jwtauth.New("HS256", []byte("test-secret"), nil)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(ta))
		r.Use(Authenticator(ta))
		NewHandle(svc, emailvalidation.New()).Routes(r)
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &apiEnv{server: server, ta: ta, clock: mock, mailer: mailer}
}

func (e *apiEnv) token(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	_, token, err := e.ta.Encode(claims)
	require.NoError(t, err)
	return token
}

func (e *apiEnv) do(t *testing.T, method, path, token, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestRequestVerification(t *testing.T) {
	env := setupAPI(t)
	user := env.token(t, map[string]interface{}{"sub": "u1"})

	resp, body := env.do(t, http.MethodPost, "/request", user, `{"email":" Alice@Gmail.com "}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "NEW_OTP_ISSUED", body["decision"])
	assert.Equal(t, "alice@gmail.com", body["email"])
	assert.NotContains(t, body, "code")

	resp, body = env.do(t, http.MethodPost, "/request", user, `{"email":"alice@gmail.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "180", resp.Header.Get("Retry-After"))
	assert.Equal(t, string(apperrors.ErrCodeOtpCooldown), body["code"])

	env.clock.Advance(time.Minute)
	resp, body = env.do(t, http.MethodPost, "/request", user, `{"email":"bob@gmail.com"}`)
	assert.Equal(t, http.StatusLocked, resp.StatusCode)
	assert.Equal(t, string(apperrors.ErrCodeEmailLocked), body["code"])
	details := body["details"].(map[string]interface{})
	assert.Equal(t, 540.0, details["retry_after_seconds"])

	env.clock.Advance(2 * time.Minute)
	resp, body = env.do(t, http.MethodPost, "/request", user, `{"email":"alice@gmail.com"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OTP_RESENT", body["decision"])
}

func TestRequestVerification_InvalidEmail(t *testing.T) {
	env := setupAPI(t)
	user := env.token(t, map[string]interface{}{"sub": "u1"})

	resp, body := env.do(t, http.MethodPost, "/request", user, `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(apperrors.ErrCodeEmailInvalidFormat), body["code"])

	resp, body = env.do(t, http.MethodPost, "/request", user, `{"email":"a@example.com"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, string(apperrors.ErrCodeEmailDomain), body["code"])

	resp, _ = env.do(t, http.MethodPost, "/request", user, `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRequestVerification_SendFailed(t *testing.T) {
	env := setupAPI(t)
	env.mailer.err = errors.New("smtp down")
	user := env.token(t, map[string]interface{}{"sub": "u1"})

	resp, body := env.do(t, http.MethodPost, "/request", user, `{"email":"alice@gmail.com"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, string(apperrors.ErrCodeOtpSendFailed), body["code"])
	assert.NotContains(t, body["message"], "smtp down")
}

func TestRequiresToken(t *testing.T) {
	env := setupAPI(t)
	resp, body := env.do(t, http.MethodGet, "/status", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, string(apperrors.ErrCodeUnauthorized), body["code"])

	resp, body = env.do(t, http.MethodPost, "/request", "not-a-jwt", `{"email":"alice@gmail.com"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, string(apperrors.ErrCodeUnauthorized), body["code"])

	other := jwtauth.New("HS256", []byte("other-secret"), nil)
	_, forged, err := other.Encode(map[string]interface{}{"sub": "u1"})
	require.NoError(t, err)
	resp, body = env.do(t, http.MethodGet, "/status", forged, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, string(apperrors.ErrCodeUnauthorized), body["code"])
	assert.Empty(t, env.mailer.codes)
}

func TestVerifyAndStatus(t *testing.T) {
	env := setupAPI(t)
	user := env.token(t, map[string]interface{}{"sub": "u1"})

	resp, body := env.do(t, http.MethodGet, "/status", user, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["email_locked"])
	assert.Equal(t, false, body["active_code"])

	env.do(t, http.MethodPost, "/request", user, `{"email":"alice@gmail.com"}`)
	code := env.mailer.codes["alice@gmail.com"]
	require.NotEmpty(t, code)

	resp, body = env.do(t, http.MethodGet, "/status", user, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice@gmail.com", body["email"])
	assert.Equal(t, true, body["email_locked"])
	assert.Equal(t, 600.0, body["email_lock_retry_after_seconds"])
	assert.Equal(t, 180.0, body["cooldown_retry_after_seconds"])
	assert.Equal(t, true, body["active_code"])

	resp, body = env.do(t, http.MethodPost, "/verify", user, `{"code":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, string(apperrors.ErrCodeOtpInvalid), body["code"])

	resp, body = env.do(t, http.MethodPost, "/verify", user, `{"code":"`+code+`"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["verified"])

	resp, _ = env.do(t, http.MethodPost, "/verify", user, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminEndpoints(t *testing.T) {
	env := setupAPI(t)
	user := env.token(t, map[string]interface{}{"sub": "u1"})
	admin := env.token(t, map[string]interface{}{"sub": "ops", "roles": []string{"admin"}})

	env.do(t, http.MethodPost, "/request", user, `{"email":"alice@gmail.com"}`)

	resp, _ := env.do(t, http.MethodGet, "/users/u1", user, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/users/u1", admin, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u1", body["user_id"])
	assert.Equal(t, "alice@gmail.com", body["email"])
	assert.Equal(t, 1.0, body["attempt_count"])

	resp, _ = env.do(t, http.MethodDelete, "/users/u1", admin, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/users/u1", admin, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(apperrors.ErrCodeNotFound), body["code"])

	// After reset a different email is accepted
	resp, body = env.do(t, http.MethodPost, "/request", user, `{"email":"bob@gmail.com"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "NEW_OTP_ISSUED", body["decision"])
}
