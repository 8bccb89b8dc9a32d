package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps counters in process. It suits single-instance
// deployments and tests.
type MemoryLimiter struct {
	mu     sync.Mutex
	now    func() time.Time
	states map[string]*state
}

// NewMemoryLimiter constructs a MemoryLimiter. A nil now uses time.Now.
func NewMemoryLimiter(now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{now: now, states: make(map[string]*state)}
}

// Allow implements Limiter.
func (m *MemoryLimiter) Allow(_ context.Context, key string, rule Rule) (*Decision, error) {
	if !rule.valid() {
		return nil, errInvalidRule
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[key]
	if !ok {
		st = &state{}
		m.states[key] = st
	}
	decision := st.apply(m.now(), rule)
	return &decision, nil
}

// Prune drops expired keys and returns how many were removed.
func (m *MemoryLimiter) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for key, st := range m.states {
		if !st.windowEndsAt.After(now) && !st.blockedUntil.After(now) {
			delete(m.states, key)
			removed++
		}
	}
	return removed
}
