// Package inflight tracks item identifiers with a fetch currently in
// flight, enforcing the single-flight guarantee.
package inflight

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/swipedine/prefetch/pkg/metrics"
)

// Set records in-flight item ids. An id enters on dispatch and leaves
// on completion or failure; while present the item must never be scored
// or re-selected.
type Set interface {
	// Begin atomically checks whether id is already in flight and
	// records it if not. Returns false if the id was already present.
	// This is the ONLY admission point for dispatch - thread-safe and
	// atomic.
	Begin(ctx context.Context, id string) bool

	// End removes id from the set. Must be called exactly once per
	// successful Begin, on success and on failure alike.
	End(ctx context.Context, id string)

	// Contains reports whether id is currently in flight.
	Contains(ctx context.Context, id string) bool

	Size() int64
}

// memorySet implements Set with a mutex-guarded map. Membership is
// short-lived and bounded by the lookahead window, so no eviction is
// needed.
type memorySet struct {
	mu   sync.RWMutex
	ids  map[string]struct{}
	size atomic.Int64
}

// NewSet creates an empty in-memory single-flight set.
func NewSet() Set {
	return &memorySet{
		ids: make(map[string]struct{}),
	}
}

// Begin atomically checks and records id.
func (s *memorySet) Begin(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[id]; exists {
		return false
	}
	s.ids[id] = struct{}{}
	s.size.Add(1)
	metrics.UpdateInflightSize(int(s.size.Load()))
	return true
}

// End removes id from the set.
func (s *memorySet) End(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[id]; !exists {
		return
	}
	delete(s.ids, id)
	s.size.Add(-1)
	metrics.UpdateInflightSize(int(s.size.Load()))
}

// Contains reports whether id is currently in flight.
func (s *memorySet) Contains(ctx context.Context, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.ids[id]
	return exists
}

// Size returns the current number of in-flight ids.
func (s *memorySet) Size() int64 {
	return s.size.Load()
}
