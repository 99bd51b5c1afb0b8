package emaillock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-otp/pkg/attempt"
	"github.com/tendant/simple-otp/pkg/clock"
)

func setupLock(t *testing.T) (*EmailLock, *attempt.MemoryRepository, *clock.Mock) {
	t.Helper()
	repo := attempt.NewMemoryRepository()
	mock := clock.NewMock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	return New(repo, WithClock(mock)), repo, mock
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		rec     *attempt.Record
		allowed bool
		retry   time.Duration
	}{
		{name: "NoRecord", rec: nil, allowed: true},
		{name: "EmptyEmail", rec: &attempt.Record{EmailLockUntil: now.Add(time.Minute)}, allowed: true},
		{name: "Locked", rec: &attempt.Record{Email: "a@gmail.com", EmailLockUntil: now.Add(7 * time.Minute)}, allowed: false, retry: 7 * time.Minute},
		{name: "ExpiresExactlyNow", rec: &attempt.Record{Email: "a@gmail.com", EmailLockUntil: now}, allowed: true},
		{name: "Expired", rec: &attempt.Record{Email: "a@gmail.com", EmailLockUntil: now.Add(-time.Second)}, allowed: true},
		{name: "ZeroLock", rec: &attempt.Record{Email: "a@gmail.com"}, allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Evaluate(tt.rec, now)
			assert.Equal(t, tt.allowed, st.Allowed)
			assert.Equal(t, tt.retry, st.RetryAfter)
		})
	}
}

func TestEmailLock_CheckAndLock(t *testing.T) {
	ctx := context.Background()

	t.Run("AbsentRecordAllowed", func(t *testing.T) {
		lock, _, _ := setupLock(t)
		st, err := lock.Check(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, st.Allowed)
		assert.Zero(t, st.RetryAfter)
	})

	t.Run("LockBlocksUntilExpiry", func(t *testing.T) {
		lock, repo, mock := setupLock(t)
		require.NoError(t, lock.Lock(ctx, "u1", "a@gmail.com"))

		rec, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "a@gmail.com", rec.Email)
		assert.Equal(t, mock.Now().Add(DefaultDuration), rec.EmailLockUntil)
		assert.Equal(t, mock.Now(), rec.LastAttempt)

		mock.Advance(4 * time.Minute)
		st, err := lock.Check(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, st.Allowed)
		assert.Equal(t, 6*time.Minute, st.RetryAfter)

		mock.Advance(6 * time.Minute)
		st, err = lock.Check(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, st.Allowed)
	})

	t.Run("LockKeepsCooldownFields", func(t *testing.T) {
		lock, repo, mock := setupLock(t)
		start := mock.Now()
		_, err := repo.Update(ctx, "u1", func(current *attempt.Record) (*attempt.Record, error) {
			return &attempt.Record{Email: "a@gmail.com", OtpCooldownUntil: start, AttemptCount: 3, LastAttempt: start}, nil
		})
		require.NoError(t, err)

		mock.Advance(time.Minute)
		require.NoError(t, lock.Lock(ctx, "u1", "a@gmail.com"))

		rec, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, start, rec.OtpCooldownUntil)
		assert.Equal(t, 3, rec.AttemptCount)
	})

	t.Run("CustomDuration", func(t *testing.T) {
		repo := attempt.NewMemoryRepository()
		mock := clock.NewMock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
		lock := New(repo, WithClock(mock), WithDuration(time.Minute))
		assert.Equal(t, time.Minute, lock.Duration())

		require.NoError(t, lock.Lock(ctx, "u1", "a@gmail.com"))
		rec, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, mock.Now().Add(time.Minute), rec.EmailLockUntil)
	})
}
