package kv

import (
	"context"
	"sync"
)

// MemoryStore implements Store with an in-process map. Used in tests
// and in sessions that run without a data directory.
type MemoryStore struct {
	mu       sync.RWMutex
	counters map[string]float64
	closed   bool
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]float64),
	}
}

// Get returns the counter value for key.
func (s *MemoryStore) Get(ctx context.Context, key string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrUnavailable
	}
	v, ok := s.counters[key]
	if !ok {
		return 0, ErrNotFound
	}
	return v, nil
}

// IncrBy atomically adds delta to the counter for key.
func (s *MemoryStore) IncrBy(ctx context.Context, key string, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrUnavailable
	}
	s.counters[key] += delta
	return s.counters[key], nil
}

// Close marks the store unavailable; later calls fail with ErrUnavailable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
