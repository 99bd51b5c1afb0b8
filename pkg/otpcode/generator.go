package otpcode

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/tendant/simple-otp/pkg/clock"
	"github.com/xlzd/gotp"
)

const (
	DefaultTTL    = 2 * time.Minute
	DefaultDigits = 6

	secretLength = 16
)

// Generator issues numeric codes and keeps one live code per user.
type Generator struct {
	store  Store
	clock  clock.Clock
	ttl    time.Duration
	digits otp.Digits
}

type Option func(*Generator)

func WithClock(c clock.Clock) Option {
	return func(g *Generator) {
		g.clock = c
	}
}

// WithTTL sets how long an issued code stays valid. Values under one second
// are ignored since the code period is counted in whole seconds.
func WithTTL(ttl time.Duration) Option {
	return func(g *Generator) {
		if ttl >= time.Second {
			g.ttl = ttl
		}
	}
}

// WithDigits sets the code length. Only 6 and 8 are supported.
func WithDigits(digits int) Option {
	return func(g *Generator) {
		if digits == 6 || digits == 8 {
			g.digits = otp.Digits(digits)
		}
	}
}

func NewGenerator(store Store, opts ...Option) *Generator {
	g := &Generator{
		store:  store,
		clock:  clock.New(),
		ttl:    DefaultTTL,
		digits: otp.DigitsSix,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TTL returns the validity window of issued codes.
func (g *Generator) TTL() time.Duration {
	return g.ttl
}

// Generate issues a fresh code for the user, replacing any previous one.
func (g *Generator) Generate(ctx context.Context, userID string) (Entry, error) {
	now := g.clock.Now()

	// Each issuance derives its code from a throwaway secret.
	code, err := totp.GenerateCodeCustom(gotp.RandomSecret(secretLength), now, totp.ValidateOpts{
		Period:    uint(g.ttl / time.Second),
		Digits:    g.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return Entry{}, fmt.Errorf("failed to generate otp code: %w", err)
	}

	entry := Entry{
		ID:        uuid.New(),
		UserID:    userID,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.ttl),
	}
	if err := g.store.Save(ctx, entry, g.ttl); err != nil {
		return Entry{}, err
	}

	slog.Info("Issued otp code", "user_id", userID, "entry_id", entry.ID, "expires_at", entry.ExpiresAt)
	return entry, nil
}

// Active returns the user's live code. The bool is false when there is none
// or it has expired.
func (g *Generator) Active(ctx context.Context, userID string) (Entry, bool, error) {
	entry, err := g.store.Get(ctx, userID)
	if errors.Is(err, ErrCodeNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if entry.Expired(g.clock.Now()) {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Verify checks code against the user's live code and consumes it on a match.
func (g *Generator) Verify(ctx context.Context, userID, code string) (bool, error) {
	entry, ok, err := g.Active(ctx, userID)
	if err != nil || !ok {
		return false, err
	}
	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) != 1 {
		slog.Info("Otp code mismatch", "user_id", userID)
		return false, nil
	}

	// Only one concurrent verifier may consume the entry.
	consumed, err := g.store.DeleteIf(ctx, userID, entry.ID)
	if err != nil {
		return false, err
	}
	if consumed {
		slog.Info("Otp code verified", "user_id", userID, "entry_id", entry.ID)
	}
	return consumed, nil
}

// Invalidate drops the user's live code.
func (g *Generator) Invalidate(ctx context.Context, userID string) error {
	return g.store.Delete(ctx, userID)
}

// Revoke drops entry if it is still the user's live code.
func (g *Generator) Revoke(ctx context.Context, entry Entry) error {
	_, err := g.store.DeleteIf(ctx, entry.UserID, entry.ID)
	return err
}
