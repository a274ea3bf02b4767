package repository

import (
	"context"
	"testing"
	"time"

	"fishcharter/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisGuard(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	repo := NewRedisGuard(client)
	ctx := context.Background()

	t.Run("LockIsExclusive", func(t *testing.T) {
		ok, err := repo.AcquireLock(ctx, "confirm:r1", "owner-a", 30*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.AcquireLock(ctx, "confirm:r1", "owner-b", 30*time.Second)
		require.NoError(t, err)
		assert.False(t, ok)

		// a non-owner release is a no-op
		require.NoError(t, repo.ReleaseLock(ctx, "confirm:r1", "owner-b"))
		assert.True(t, s.Exists("fishcharter:lock:confirm:r1"))

		require.NoError(t, repo.ReleaseLock(ctx, "confirm:r1", "owner-a"))
		assert.False(t, s.Exists("fishcharter:lock:confirm:r1"))

		ok, err = repo.AcquireLock(ctx, "confirm:r1", "owner-b", 30*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("LockExpires", func(t *testing.T) {
		ok, err := repo.AcquireLock(ctx, "confirm:r2", "owner-a", 10*time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		s.FastForward(11 * time.Second)

		ok, err = repo.AcquireLock(ctx, "confirm:r2", "owner-b", 10*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "reserve:ana@example.com"
		limit := 2
		window := time.Minute

		allowed, err := repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Second)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		nilRepo := NewRedisGuard(nil)
		_, err := nilRepo.AcquireLock(ctx, "k", "o", time.Second)
		assert.Error(t, err)
		assert.Error(t, nilRepo.ReleaseLock(ctx, "k", "o"))
		_, err = nilRepo.CheckRateLimit(ctx, "k", 1, time.Second)
		assert.Error(t, err)
	})
}

func TestRedisHelpers(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr(), PoolSize: 2})
	assert.NoError(t, Ping(context.Background(), client))
	assert.NoError(t, Close(client))
	assert.NoError(t, Close(nil))

	dead := NewRedisClient(config.RedisConfig{Address: "127.0.0.1:1"})
	defer dead.Close()
	assert.Error(t, Ping(context.Background(), dead))
}
