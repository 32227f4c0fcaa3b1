package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/Tuvshee555/Auto-reception/internal/keylock"
)

type bucket struct {
	hits    int
	resetAt time.Time
}

// MemoryLimiter keeps buckets in process memory. Losing them on restart
// only resets the windows.
type MemoryLimiter struct {
	locks *keylock.Locker
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		locks:   keylock.New(),
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// WithClock replaces the time source. Tests only.
func (m *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	m.now = now
	return m
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	unlock := m.locks.Lock(key)
	defer unlock()

	now := m.now()

	m.mu.Lock()
	b, ok := m.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{hits: 1, resetAt: now.Add(window)}
		m.buckets[key] = b
		m.mu.Unlock()
		return Result{Allowed: true, Remaining: limit - 1, ResetAt: b.resetAt}, nil
	}
	m.mu.Unlock()

	// b is only mutated under the key lock held above.
	if b.hits >= limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: b.resetAt}, nil
	}
	b.hits++
	return Result{Allowed: true, Remaining: limit - b.hits, ResetAt: b.resetAt}, nil
}

// Sweep drops buckets whose window has passed and returns how many went.
func (m *MemoryLimiter) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, b := range m.buckets {
		if !now.Before(b.resetAt) {
			delete(m.buckets, k)
			n++
		}
	}
	return n
}

// RunJanitor sweeps every interval until ctx is done.
func (m *MemoryLimiter) RunJanitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}
