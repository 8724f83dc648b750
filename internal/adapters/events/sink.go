// Package events defines the lifecycle event sink and an in-memory
// recorder that derives hit/waste statistics.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swipedine/prefetch/internal/domain/model"
	"github.com/swipedine/prefetch/pkg/metrics"
)

// Default recorder configuration constants.
const (
	defaultCapacity = 1000
)

// Sink receives lifecycle events. Emit is fire-and-forget: the
// orchestrator isolates itself from sink panics, and implementations
// must not block for long.
type Sink interface {
	Emit(ctx context.Context, e model.Event)
}

// Stats summarizes recorded event outcomes.
type Stats struct {
	Started   int64   `json:"started"`
	Succeeded int64   `json:"succeeded"`
	Failed    int64   `json:"failed"`
	Used      int64   `json:"used"`
	Wasted    int64   `json:"wasted"`
	HitRate   float64 `json:"hit_rate"` // used / (used + wasted)
}

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithCapacity bounds the number of retained events.
func WithCapacity(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// Recorder implements Sink with a bounded in-memory buffer. Events are
// append-only and ordered by emission time; the oldest are dropped once
// the capacity is reached.
type Recorder struct {
	mu       sync.RWMutex
	buf      []model.Event
	capacity int
	stats    Stats
}

// NewRecorder creates an in-memory event recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		capacity: defaultCapacity,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.buf = make([]model.Event, 0, r.capacity)
	return r
}

// Emit records the event, assigning an id and timestamp if absent.
func (r *Recorder) Emit(ctx context.Context, e model.Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buf) >= r.capacity {
		// Drop the oldest; the buffer is a bounded window, not an archive.
		r.buf = r.buf[1:]
	}
	r.buf = append(r.buf, e)

	switch e.Stage {
	case model.StageStarted:
		r.stats.Started++
	case model.StageCompleted:
		if e.Success {
			r.stats.Succeeded++
		} else {
			r.stats.Failed++
		}
	case model.StageUsed:
		r.stats.Used++
	case model.StageWasted:
		r.stats.Wasted++
	}

	metrics.RecordEventStage(string(e.Stage))
}

// Recent returns up to n most recent events, newest first.
func (r *Recorder) Recent(n int) []model.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > len(r.buf) {
		n = len(r.buf)
	}
	out := make([]model.Event, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[len(r.buf)-1-i]
	}
	return out
}

// Stats returns a copy of the derived outcome counters.
func (r *Recorder) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.stats
	if total := s.Used + s.Wasted; total > 0 {
		s.HitRate = float64(s.Used) / float64(total)
	}
	return s
}

// Len returns the number of retained events.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buf)
}
