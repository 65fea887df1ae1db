package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryLimiter keeps sliding windows in process. It backs the adaptive
// limiter while Redis is unreachable.
type MemoryLimiter struct {
	mu   sync.Mutex
	hits map[Key][]time.Time
	now  func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter returns an empty in-memory limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		hits: make(map[Key][]time.Time),
		now:  time.Now,
	}
}

// Check records a hit for key unless its window is already full.
func (m *MemoryLimiter) Check(_ context.Context, key Key, rule Rule) (*Result, error) {
	if rule.Limit <= 0 {
		return rejected(rule), nil
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	hits := since(m.hits[key], now.Add(-rule.Window))
	if len(hits) >= rule.Limit {
		m.hits[key] = hits
		return &Result{RetryAfter: hits[0].Add(rule.Window).Sub(now)}, nil
	}

	hits = append(hits, now)
	m.hits[key] = hits

	return &Result{Allowed: true, Remaining: rule.Limit - len(hits)}, nil
}

// Cleanup drops counters idle for longer than maxAge and reports how many went.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, hits := range m.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(m.hits, key)
			removed++
		}
	}
	return removed
}

// since drops the hits at or before start. hits is ordered oldest first.
func since(hits []time.Time, start time.Time) []time.Time {
	i := sort.Search(len(hits), func(i int) bool { return hits[i].After(start) })
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}
