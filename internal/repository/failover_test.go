package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockGuard struct {
	mock.Mock
}

func (m *mockGuard) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, owner, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockGuard) ReleaseLock(ctx context.Context, key, owner string) error {
	args := m.Called(ctx, key, owner)
	return args.Error(0)
}

func (m *mockGuard) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverGuard(t *testing.T) {
	primary := new(mockGuard)
	fallback := new(mockGuard)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverGuard(primary, fallback, &logger)
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()
	ttl := 30 * time.Second

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("AcquireLock", ctx, "k1", "o", ttl).Return(true, nil).Once()

		ok, err := repo.AcquireLock(ctx, "k1", "o", ttl)
		assert.NoError(t, err)
		assert.True(t, ok)
		primary.AssertExpectations(t)
		fallback.AssertNotCalled(t, "AcquireLock", ctx, "k1", "o", ttl)
	})

	t.Run("PrimaryFailureFallsBack", func(t *testing.T) {
		primary.On("AcquireLock", ctx, "k2", "o", ttl).Return(false, errors.New("connection refused")).Once()
		fallback.On("AcquireLock", ctx, "k2", "o", ttl).Return(true, nil).Once()

		ok, err := repo.AcquireLock(ctx, "k2", "o", ttl)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, repo.isDown.Load())
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("CheckRateLimit", ctx, "r", 3, time.Minute).Return(true, nil).Once()
		fallback.On("ReleaseLock", ctx, "k2", "o").Return(nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "r", 3, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.NoError(t, repo.ReleaseLock(ctx, "k2", "o"))

		primary.AssertNotCalled(t, "CheckRateLimit", ctx, "r", 3, time.Minute)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoversAfterInterval", func(t *testing.T) {
		now = now.Add(recoveryInterval + time.Second)
		primary.On("CheckRateLimit", ctx, "r", 3, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "r", 3, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("ReleaseGoesToBothSides", func(t *testing.T) {
		primary.On("ReleaseLock", ctx, "k3", "o").Return(nil).Once()
		fallback.On("ReleaseLock", ctx, "k3", "o").Return(nil).Once()

		assert.NoError(t, repo.ReleaseLock(ctx, "k3", "o"))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
