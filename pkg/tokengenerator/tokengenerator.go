// Package tokengenerator signs and parses the HS256 tokens the verification
// API authenticates callers with. Tokens carry the caller in "sub" and an
// optional "roles" list for the admin endpoints.
package tokengenerator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims struct for JWT claims
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	Email string   `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JwtTokenGenerator signs tokens with a shared secret.
type JwtTokenGenerator struct {
	Secret   string
	Issuer   string
	Audience string

	now func() time.Time
}

// NewJwtTokenGenerator creates a new JwtTokenGenerator
func NewJwtTokenGenerator(secret, issuer, audience string) *JwtTokenGenerator {
	return &JwtTokenGenerator{
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GenerateToken creates a token for subject valid for expiry.
func (g *JwtTokenGenerator) GenerateToken(subject string, expiry time.Duration, roles []string, email string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("%w: subject is required", ErrInvalidToken)
	}
	now := g.now()
	claims := Claims{
		Roles: roles,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    g.Issuer,
			Subject:   subject,
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{g.Audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(g.Secret))
	if err != nil {
		slog.Error("Failed sign JWT Claim string!", "err", err)
		return "", time.Time{}, err
	}
	return ss, claims.ExpiresAt.Time, nil
}

// ParseToken parses and validates a token string, returning its claims.
func (g *JwtTokenGenerator) ParseToken(tokenStr string) (*jwt.Token, *Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(g.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.Issuer),
		jwt.WithAudience(g.Audience),
	)
	if err != nil {
		slog.Error("Failed parse JWT string!", "err", err)
		return token, nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return token, nil, ErrInvalidToken
	}
	return token, claims, nil
}
