package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterAllowsWithinBudget(t *testing.T) {
	l := New(NewMemoryStore(), 15*time.Minute, 5)
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		res := l.checkAt("alice", now)
		assert.True(t, res.Allowed, "attempt %d should be allowed", i+1)
	}
	res := l.checkAt("alice", now)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Message, "too many login attempts")
}

func TestLimiterResetsAfterWindow(t *testing.T) {
	l := New(NewMemoryStore(), 15*time.Minute, 2)
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

	l.checkAt("bob", now)
	l.checkAt("bob", now)
	assert.False(t, l.checkAt("bob", now).Allowed)

	later := now.Add(16 * time.Minute)
	assert.True(t, l.checkAt("bob", later).Allowed)
}

func TestLimiterIsPerIdentifier(t *testing.T) {
	l := New(NewMemoryStore(), 15*time.Minute, 1)
	now := time.Now()

	assert.True(t, l.checkAt("carol", now).Allowed)
	assert.False(t, l.checkAt("carol", now).Allowed)
	assert.True(t, l.checkAt("dave", now).Allowed)
}

func TestMemoryStoreSweep(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.Incr("stale", time.Minute, now.Add(-2*time.Minute))
	s.Incr("fresh", time.Minute, now)

	s.Sweep(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.NotContains(t, s.entries, "stale")
	assert.Contains(t, s.entries, "fresh")
}
