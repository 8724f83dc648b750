package app

import (
	"time"

	"github.com/swipedine/prefetch/internal/adapters/events"
	"github.com/swipedine/prefetch/internal/domain/budget"
	"github.com/swipedine/prefetch/internal/domain/inflight"
	"github.com/swipedine/prefetch/internal/domain/model"
	"github.com/swipedine/prefetch/internal/domain/optimizer"
	"github.com/swipedine/prefetch/internal/domain/scoring"
	"github.com/swipedine/prefetch/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithFetcher sets the transport collaborator. Required before Start.
func WithFetcher(f Fetcher) Option {
	return func(e *Engine) {
		e.fetcher = f
	}
}

// WithCache sets the warm-cache collaborator.
func WithCache(c Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithObserver sets the behavior observer collaborator.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithScorer replaces the default card scorer.
func WithScorer(s scoring.Engine) Option {
	return func(e *Engine) {
		if s != nil {
			e.scorer = s
		}
	}
}

// WithTracker replaces the default budget tracker.
func WithTracker(t *budget.Tracker) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracker = t
		}
	}
}

// WithOptimizer replaces the default cost optimizer.
func WithOptimizer(o *optimizer.Optimizer) Option {
	return func(e *Engine) {
		if o != nil {
			e.opt = o
		}
	}
}

// WithInflight replaces the default single-flight set.
func WithInflight(s inflight.Set) Option {
	return func(e *Engine) {
		if s != nil {
			e.inflight = s
		}
	}
}

// WithSink sets the lifecycle event sink.
func WithSink(s events.Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithThresholds sets the base admission thresholds, including the
// lookahead window.
func WithThresholds(th model.Thresholds) Option {
	return func(e *Engine) {
		if th.MaxLookahead > 0 {
			e.base = th
		}
	}
}

// WithMaxConcurrent bounds parallel speculative fetches.
func WithMaxConcurrent(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrent = n
		}
	}
}

// WithEnabled toggles the whole engine; a disabled engine accepts
// calls and does nothing.
func WithEnabled(enabled bool) Option {
	return func(e *Engine) {
		e.enabled = enabled
	}
}

// WithDebug enables per-pass debug logging.
func WithDebug(debug bool) Option {
	return func(e *Engine) {
		e.debug = debug
	}
}

// WithClock injects the wall clock used for decisions and events.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
