package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRepositoryTests exercises the Repository contract against one implementation.
func runRepositoryTests(t *testing.T, newRepo func(t *testing.T) Repository) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("GetMissing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("UpdateCreatesRecord", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		var seen *Record
		stored, err := repo.Update(ctx, "u1", func(current *Record) (*Record, error) {
			seen = current
			return &Record{
				Email:            "a@gmail.com",
				LastAttempt:      now,
				AttemptCount:     1,
				EmailLockUntil:   now.Add(10 * time.Minute),
				OtpCooldownUntil: now,
			}, nil
		})
		require.NoError(t, err)
		assert.Nil(t, seen)
		assert.Equal(t, "u1", stored.UserID)

		got, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "a@gmail.com", got.Email)
		assert.Equal(t, 1, got.AttemptCount)
		assert.True(t, got.EmailLockUntil.Equal(now.Add(10*time.Minute)))
		assert.True(t, got.OtpCooldownUntil.Equal(now))
	})

	t.Run("UpdateNilLeavesRecord", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Update(ctx, "u1", func(current *Record) (*Record, error) {
			return &Record{Email: "a@gmail.com", LastAttempt: now}, nil
		})
		require.NoError(t, err)

		stored, err := repo.Update(ctx, "u1", func(current *Record) (*Record, error) {
			require.NotNil(t, current)
			current.Email = "mutated@gmail.com"
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "a@gmail.com", stored.Email)

		got, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "a@gmail.com", got.Email)
	})

	t.Run("UpdateErrorAborts", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		boom := errors.New("boom")

		_, err := repo.Update(ctx, "u1", func(current *Record) (*Record, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = repo.Get(ctx, "u1")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Update(ctx, "u1", func(current *Record) (*Record, error) {
			return &Record{Email: "a@gmail.com", LastAttempt: now}, nil
		})
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, "u1"))
		_, err = repo.Get(ctx, "u1")
		assert.ErrorIs(t, err, ErrRecordNotFound)

		// Deleting again is not an error
		assert.NoError(t, repo.Delete(ctx, "u1"))
	})

	t.Run("DeleteStale", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Update(ctx, "old", func(current *Record) (*Record, error) {
			return &Record{
				Email:            "old@gmail.com",
				LastAttempt:      now.Add(-2 * time.Hour),
				EmailLockUntil:   now.Add(-110 * time.Minute),
				OtpCooldownUntil: now.Add(-2 * time.Hour),
			}, nil
		})
		require.NoError(t, err)
		_, err = repo.Update(ctx, "fresh", func(current *Record) (*Record, error) {
			return &Record{
				Email:            "fresh@gmail.com",
				LastAttempt:      now,
				EmailLockUntil:   now.Add(10 * time.Minute),
				OtpCooldownUntil: now,
			}, nil
		})
		require.NoError(t, err)

		n, err := repo.DeleteStale(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = repo.Get(ctx, "old")
		assert.ErrorIs(t, err, ErrRecordNotFound)
		_, err = repo.Get(ctx, "fresh")
		assert.NoError(t, err)
	})

	t.Run("ConcurrentUpdatesSerialized", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		const workers = 20
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Update(ctx, "counter", func(current *Record) (*Record, error) {
					if current == nil {
						current = &Record{Email: "c@gmail.com", LastAttempt: now}
					}
					current.AttemptCount++
					return current, nil
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := repo.Get(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, workers, got.AttemptCount)
	})

	t.Run("UsersAreIndependent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			userID := fmt.Sprintf("user-%d", i)
			_, err := repo.Update(ctx, userID, func(current *Record) (*Record, error) {
				return &Record{Email: userID + "@gmail.com", LastAttempt: now}, nil
			})
			require.NoError(t, err)
		}

		got, err := repo.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1@gmail.com", got.Email)
	})
}

func TestMemoryRepository(t *testing.T) {
	runRepositoryTests(t, func(t *testing.T) Repository {
		return NewMemoryRepository()
	})
	t.Run("DeleteStaleWaitsForUpdate", func(t *testing.T) {
		testDeleteStaleWaitsForUpdate(t, NewMemoryRepository())
	})
}

// testDeleteStaleWaitsForUpdate checks that a purge does not remove a record
// while an Update on the same user is in flight, and rechecks staleness after.
func testDeleteStaleWaitsForUpdate(t *testing.T, repo Repository) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	cutoff := now.Add(-time.Hour)

	_, err := repo.Update(ctx, "u1", func(*Record) (*Record, error) {
		return &Record{Email: "old@gmail.com", LastAttempt: now.Add(-2 * time.Hour)}, nil
	})
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	updated := make(chan error, 1)
	go func() {
		_, err := repo.Update(ctx, "u1", func(current *Record) (*Record, error) {
			close(entered)
			<-release
			return &Record{
				Email:            "old@gmail.com",
				LastAttempt:      now,
				EmailLockUntil:   now.Add(10 * time.Minute),
				OtpCooldownUntil: now,
			}, nil
		})
		updated <- err
	}()
	<-entered

	type purgeResult struct {
		n   int64
		err error
	}
	purged := make(chan purgeResult, 1)
	go func() {
		n, err := repo.DeleteStale(ctx, cutoff)
		purged <- purgeResult{n: n, err: err}
	}()

	select {
	case <-purged:
		t.Fatal("DeleteStale finished while an update held the record")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-updated)

	select {
	case res := <-purged:
		require.NoError(t, res.err)
		assert.Zero(t, res.n)
	case <-time.After(time.Second):
		t.Fatal("DeleteStale did not finish after the update")
	}

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.LastAttempt.Equal(now))
}

func TestRecord_Stale(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := &Record{LastAttempt: now, EmailLockUntil: now.Add(10 * time.Minute), OtpCooldownUntil: now}
	assert.False(t, rec.Stale(now))
	assert.True(t, rec.Stale(now.Add(10*time.Minute)))
}

func TestRecord_Clone(t *testing.T) {
	var nilRec *Record
	assert.Nil(t, nilRec.Clone())
	assert.False(t, nilRec.Claimed())

	rec := &Record{UserID: "u1", Email: "a@gmail.com"}
	c := rec.Clone()
	c.Email = "b@gmail.com"
	assert.Equal(t, "a@gmail.com", rec.Email)
	assert.True(t, rec.Claimed())
}

func TestKeyedMutex(t *testing.T) {
	var km KeyedMutex
	unlock := km.Lock("a")

	acquired := make(chan struct{})
	go func() {
		u := km.Lock("a")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same key acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock not acquired after unlock")
	}
}

func TestNewAttemptRepository(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		repo, err := NewAttemptRepository("memory", RepositoryConfig{})
		require.NoError(t, err)
		assert.IsType(t, &MemoryRepository{}, repo)
	})

	t.Run("FileRequiresDataDir", func(t *testing.T) {
		_, err := NewAttemptRepository("file", RepositoryConfig{})
		assert.Error(t, err)
	})

	t.Run("File", func(t *testing.T) {
		repo, err := NewAttemptRepository("file", RepositoryConfig{DataDir: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &FileRepository{}, repo)
	})

	t.Run("PostgresRequiresPool", func(t *testing.T) {
		_, err := NewAttemptRepository("postgres", RepositoryConfig{})
		assert.Error(t, err)
	})

	t.Run("RedisRequiresClient", func(t *testing.T) {
		_, err := NewAttemptRepository("redis", RepositoryConfig{})
		assert.Error(t, err)
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := NewAttemptRepository("sqlite", RepositoryConfig{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported persistence type")
	})
}

func TestRecord_Equal(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	a := &Record{UserID: "u1", Email: "a@gmail.com", LastAttempt: now, EmailLockUntil: now.Add(time.Minute)}
	b := a.Clone()
	b.LastAttempt = now.In(time.FixedZone("X", 3600))

	assert.True(t, a.Equal(b))
	assert.True(t, (*Record)(nil).Equal(nil))
	assert.False(t, a.Equal(nil))

	b.AttemptCount = 2
	assert.False(t, a.Equal(b))
}
