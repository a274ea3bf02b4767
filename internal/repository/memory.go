package repository

import (
	"context"
	"sync"
	"time"
)

// pruneInterval bounds how often a call sweeps stale locks and windows.
const pruneInterval = time.Minute

// MemoryGuard is the single-process GuardRepository used when Redis is absent.
// Expired entries are swept on access, at most once per pruneInterval.
type MemoryGuard struct {
	mu         sync.Mutex
	locks      map[string]lockEntry
	rateLimits map[string]*rateLimitEntry
	lastPrune  time.Time
	now        func() time.Time
}

type lockEntry struct {
	owner     string
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		locks:      make(map[string]lockEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		now:        time.Now,
	}
}

func (r *MemoryGuard) AcquireLock(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.pruneLocked(now)
	if l, ok := r.locks[key]; ok && now.Before(l.expiresAt) {
		return false, nil
	}
	r.locks[key] = lockEntry{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

func (r *MemoryGuard) ReleaseLock(_ context.Context, key, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.locks[key]; ok && l.owner == owner {
		delete(r.locks, key)
	}
	return nil
}

func (r *MemoryGuard) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.pruneLocked(now)
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 0, expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}

// pruneLocked drops lapsed locks and rate windows. r.mu must be held.
func (r *MemoryGuard) pruneLocked(now time.Time) {
	if now.Sub(r.lastPrune) < pruneInterval {
		return
	}
	r.lastPrune = now
	for key, l := range r.locks {
		if !now.Before(l.expiresAt) {
			delete(r.locks, key)
		}
	}
	for key, e := range r.rateLimits {
		if now.After(e.expiresAt) {
			delete(r.rateLimits, key)
		}
	}
}
