package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuard(t *testing.T) {
	repo := NewMemoryGuard()
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("Locks", func(t *testing.T) {
		ok, err := repo.AcquireLock(ctx, "confirm:r1", "a", 30*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, _ = repo.AcquireLock(ctx, "confirm:r1", "b", 30*time.Second)
		assert.False(t, ok)

		require.NoError(t, repo.ReleaseLock(ctx, "confirm:r1", "b"))
		ok, _ = repo.AcquireLock(ctx, "confirm:r1", "b", 30*time.Second)
		assert.False(t, ok, "release by a non-owner must keep the lock")

		now = now.Add(31 * time.Second)
		ok, _ = repo.AcquireLock(ctx, "confirm:r1", "b", 30*time.Second)
		assert.True(t, ok, "expired lock can be taken")
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "reserve:ben@example.com"
		allowed, _ := repo.CheckRateLimit(ctx, key, 2, time.Minute)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, time.Minute)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, time.Minute)
		assert.False(t, allowed)

		now = now.Add(time.Minute + time.Second)
		allowed, _ = repo.CheckRateLimit(ctx, key, 2, time.Minute)
		assert.True(t, allowed)
	})
}

func TestMemoryGuardPrunesExpired(t *testing.T) {
	repo := NewMemoryGuard()
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := repo.CheckRateLimit(ctx, "reserve:"+email, 5, time.Minute)
		require.NoError(t, err)
	}
	ok, err := repo.AcquireLock(ctx, "confirm:r1", "a", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	ok, _ = repo.AcquireLock(ctx, "confirm:r2", "a", 10*time.Minute)
	require.True(t, ok)
	assert.Len(t, repo.rateLimits, 3)
	assert.Len(t, repo.locks, 2)

	now = now.Add(2 * time.Minute)
	_, err = repo.CheckRateLimit(ctx, "reserve:d@example.com", 5, time.Minute)
	require.NoError(t, err)

	assert.Len(t, repo.rateLimits, 1)
	assert.Contains(t, repo.rateLimits, "reserve:d@example.com")
	assert.Len(t, repo.locks, 1)
	assert.Contains(t, repo.locks, "confirm:r2")

	ok, _ = repo.AcquireLock(ctx, "confirm:r2", "b", 30*time.Second)
	assert.False(t, ok, "live lock survives the sweep")
}
