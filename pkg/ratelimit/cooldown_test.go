package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-otp/pkg/attempt"
	"github.com/tendant/simple-otp/pkg/clock"
)

func TestConsume(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	cooldown := 3 * time.Minute

	t.Run("NoRecord", func(t *testing.T) {
		next, res := Consume(nil, "a@gmail.com", now, cooldown)
		assert.True(t, res.Allowed)
		require.NotNil(t, next)
		assert.Equal(t, "a@gmail.com", next.Email)
		assert.Equal(t, now, next.OtpCooldownUntil)
		assert.Equal(t, 1, next.AttemptCount)
	})

	t.Run("DifferentEmailResets", func(t *testing.T) {
		rec := &attempt.Record{UserID: "u1", Email: "a@gmail.com", OtpCooldownUntil: now.Add(-time.Second), AttemptCount: 4}
		next, res := Consume(rec, "b@gmail.com", now, cooldown)
		assert.True(t, res.Allowed)
		assert.Equal(t, "b@gmail.com", next.Email)
		assert.Equal(t, 1, next.AttemptCount)
		assert.Equal(t, "u1", next.UserID)
		// Input is not mutated
		assert.Equal(t, "a@gmail.com", rec.Email)
	})

	t.Run("SameEmailInsideWindow", func(t *testing.T) {
		rec := &attempt.Record{Email: "a@gmail.com", OtpCooldownUntil: now.Add(-time.Minute), AttemptCount: 1}
		next, res := Consume(rec, "a@gmail.com", now, cooldown)
		assert.Nil(t, next)
		assert.False(t, res.Allowed)
		assert.Equal(t, 2*time.Minute, res.RetryAfter)
	})

	t.Run("SameEmailAtBoundary", func(t *testing.T) {
		rec := &attempt.Record{Email: "a@gmail.com", OtpCooldownUntil: now.Add(-cooldown), AttemptCount: 1}
		next, res := Consume(rec, "a@gmail.com", now, cooldown)
		assert.True(t, res.Allowed)
		assert.Equal(t, now, next.OtpCooldownUntil)
		assert.Equal(t, 2, next.AttemptCount)
	})
}

func TestStartWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	// Opens a window even when the same email is still inside its cooldown
	rec := &attempt.Record{
		UserID:           "u1",
		Email:            "a@gmail.com",
		OtpCooldownUntil: now.Add(-time.Second),
		EmailLockUntil:   now.Add(-time.Minute),
		AttemptCount:     3,
	}
	next := StartWindow(rec, "a@gmail.com", now)
	assert.Equal(t, "u1", next.UserID)
	assert.Equal(t, now, next.OtpCooldownUntil)
	assert.Equal(t, now, next.LastAttempt)
	assert.Equal(t, 1, next.AttemptCount)
	assert.Equal(t, now.Add(-time.Minute), next.EmailLockUntil)
	assert.Equal(t, 3, rec.AttemptCount)

	fresh := StartWindow(nil, "b@gmail.com", now)
	assert.Equal(t, "b@gmail.com", fresh.Email)
	assert.Equal(t, 1, fresh.AttemptCount)
}

func TestCooldownLimiter_CheckAndConsume(t *testing.T) {
	ctx := context.Background()
	repo := attempt.NewMemoryRepository()
	mock := clock.NewMock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	limiter := NewCooldownLimiter(repo, WithCooldownClock(mock))
	assert.Equal(t, DefaultCooldown, limiter.Cooldown())

	res, err := limiter.CheckAndConsume(ctx, "u1", "a@gmail.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	mock.Advance(30 * time.Second)
	res, err = limiter.CheckAndConsume(ctx, "u1", "a@gmail.com")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 150*time.Second, res.RetryAfter)

	// Refused attempts leave the record alone
	rec, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.AttemptCount)

	mock.Advance(150 * time.Second)
	res, err = limiter.CheckAndConsume(ctx, "u1", "a@gmail.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	rec, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.AttemptCount)
	assert.Equal(t, mock.Now(), rec.OtpCooldownUntil)
}

func TestCooldownLimiter_CustomCooldown(t *testing.T) {
	limiter := NewCooldownLimiter(attempt.NewMemoryRepository(), WithCooldown(30*time.Second))
	assert.Equal(t, 30*time.Second, limiter.Cooldown())
}
