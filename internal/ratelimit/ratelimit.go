// Package ratelimit throttles repeated login attempts per identity using a
// fixed time window. The counter store is an interface so multi-process
// deployments can swap in an external cache; the in-memory implementation
// is intentionally transient and resets on restart.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// AttemptStore tracks attempt counts per key within a window.
type AttemptStore interface {
	// Incr records an attempt for key and returns the attempt count within
	// the current window plus the window's expiry.
	Incr(key string, window time.Duration, now time.Time) (count int, resetAt time.Time)
	// Sweep drops expired windows.
	Sweep(now time.Time)
}

// Limiter wraps an AttemptStore with a max-attempts policy.
type Limiter struct {
	store       AttemptStore
	window      time.Duration
	maxAttempts int
}

// Result reports whether the attempt is allowed, with an operator-facing
// message when it is not.
type Result struct {
	Allowed bool
	Message string
}

func New(store AttemptStore, window time.Duration, maxAttempts int) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Limiter{store: store, window: window, maxAttempts: maxAttempts}
}

// NewDefault returns a limiter with the stock policy: 5 attempts per 15
// minutes, in-memory counters.
func NewDefault() *Limiter {
	return New(NewMemoryStore(), 15*time.Minute, 5)
}

// Check records an attempt for identifier and reports whether it is within
// the allowed budget.
func (l *Limiter) Check(identifier string) Result {
	return l.checkAt(identifier, time.Now())
}

func (l *Limiter) checkAt(identifier string, now time.Time) Result {
	count, resetAt := l.store.Incr(identifier, l.window, now)
	if count > l.maxAttempts {
		minutes := int(resetAt.Sub(now).Minutes()) + 1
		return Result{
			Allowed: false,
			Message: fmt.Sprintf("too many login attempts, try again in %d minutes", minutes),
		}
	}
	return Result{Allowed: true}
}

type memoryEntry struct {
	count   int
	resetAt time.Time
}

// MemoryStore is a mutex-guarded map suitable for single-process use.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (m *MemoryStore) Incr(key string, window time.Duration, now time.Time) (int, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || now.After(e.resetAt) {
		e = &memoryEntry{count: 0, resetAt: now.Add(window)}
		m.entries[key] = e
	}
	e.count++
	return e.count, e.resetAt
}

func (m *MemoryStore) Sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if now.After(e.resetAt) {
			delete(m.entries, key)
		}
	}
}

// StartSweeper sweeps the store on the given interval until stop is closed.
func StartSweeper(store AttemptStore, interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				store.Sweep(time.Now())
			case <-stop:
				return
			}
		}
	}()
}
