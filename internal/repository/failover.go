package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fishcharter/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverGuard prefers the primary guard and switches to the fallback when the
// primary errors, retrying the primary once per recovery interval.
type FailoverGuard struct {
	primary  domain.GuardRepository
	fallback domain.GuardRepository
	logger   *zerolog.Logger
	isDown   atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
	now       func() time.Time
}

var _ domain.GuardRepository = (*FailoverGuard)(nil)

func NewFailoverGuard(primary, fallback domain.GuardRepository, logger *zerolog.Logger) *FailoverGuard {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverGuard{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary reports whether the primary should be tried for this call.
func (r *FailoverGuard) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.now().Sub(r.lastCheck) > recoveryInterval {
		r.lastCheck = r.now()
		return true
	}
	return false
}

func (r *FailoverGuard) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary guard repository failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = r.now()
	r.mu.Unlock()
}

func (r *FailoverGuard) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary guard repository recovered")
	}
}

func (r *FailoverGuard) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if r.usePrimary() {
		ok, err := r.primary.AcquireLock(ctx, key, owner, ttl)
		if err == nil {
			r.markUp()
			return ok, nil
		}
		r.markDown(err)
	}
	return r.fallback.AcquireLock(ctx, key, owner, ttl)
}

// ReleaseLock releases on both sides since the lock may have been taken on either.
func (r *FailoverGuard) ReleaseLock(ctx context.Context, key, owner string) error {
	if !r.isDown.Load() {
		if err := r.primary.ReleaseLock(ctx, key, owner); err != nil {
			r.markDown(err)
		}
	}
	return r.fallback.ReleaseLock(ctx, key, owner)
}

func (r *FailoverGuard) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
