package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCounterStore keeps hit timestamps per key in memory. Suitable for
// a single-instance deployment and for tests; multi-instance deployments
// need the database-backed store so all instances share one window.
type MemoryCounterStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewMemoryCounterStore creates an empty in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		hits: make(map[string][]time.Time),
	}
}

// Take implements CounterStore. Expired hits are pruned on every call, so
// memory stays bounded by limit per active key.
func (s *MemoryCounterStore) Take(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	var recent []time.Time
	for _, t := range s.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= limit {
		s.hits[key] = recent
		return false, recent[0], nil
	}

	s.hits[key] = append(recent, now)
	return true, time.Time{}, nil
}

var _ CounterStore = (*MemoryCounterStore)(nil)
