package sim

import (
	"context"
	"time"

	"github.com/swipedine/prefetch/internal/adapters/events"
	"github.com/swipedine/prefetch/internal/app"
	"github.com/swipedine/prefetch/internal/domain/model"
	"github.com/swipedine/prefetch/pkg/logger"
)

// Default session pacing.
const (
	defaultSwipeEvery = 250 * time.Millisecond
	immediateEvery    = 7
)

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithSwipeInterval sets the simulated time between swipes.
func WithSwipeInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.swipeEvery = d
		}
	}
}

// WithStopAfter ends the session after n swipes even if cards remain,
// leaving late prefetches to be accounted as wasted.
func WithStopAfter(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.stopAfter = n
		}
	}
}

// WithLogger sets a custom logger for the runner.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// Runner walks a synthetic user through a card queue, exercising the
// full pass, immediate-request, and session-end paths of the engine.
type Runner struct {
	engine     *app.Engine
	observer   *StubObserver
	queue      []model.Item
	prefs      model.Preferences
	swipeEvery time.Duration
	stopAfter  int
	logger     logger.Logger
}

// NewRunner creates a session runner over queue.
func NewRunner(engine *app.Engine, observer *StubObserver, queue []model.Item, prefs model.Preferences, opts ...Option) *Runner {
	r := &Runner{
		engine:     engine,
		observer:   observer,
		queue:      queue,
		prefs:      prefs,
		swipeEvery: defaultSwipeEvery,
		// Real users rarely exhaust the deck; quitting early leaves
		// some prefetches unviewed.
		stopAfter: len(queue) * 4 / 5,
		logger:    logger.Get().Named("sim"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run swipes through the queue until the user gives up, running one
// prefetch pass per swipe and opening every few cards explicitly.
// Returns the sink stats at session end.
func (r *Runner) Run(ctx context.Context) (events.Stats, error) {
	for pos, item := range r.queue {
		if r.stopAfter > 0 && pos >= r.stopAfter {
			break
		}
		select {
		case <-ctx.Done():
			r.engine.EndSession(ctx)
			return r.engine.Stats(), ctx.Err()
		default:
		}

		r.observer.NoteSwipe(item.ID)
		r.engine.NoteView(ctx, item.ID)

		dispatched, err := r.engine.RunPass(ctx, r.queue, pos, r.prefs)
		if err != nil {
			return r.engine.Stats(), err
		}

		// Every few cards the user opens one, exercising the
		// immediate path.
		if pos > 0 && pos%immediateEvery == 0 {
			if err := r.engine.RequestImmediate(ctx, item, model.FetchRequest{Detail: true, Media: true}); err != nil {
				r.logger.Warn(ctx, "immediate fetch failed",
					logger.String("itemID", item.ID),
					logger.Error(err),
				)
			}
		}

		if dispatched > 0 {
			r.logger.Debug(ctx, "swipe",
				logger.Int("position", pos),
				logger.Int("dispatched", dispatched),
			)
		}

		select {
		case <-ctx.Done():
		case <-time.After(r.swipeEvery):
		}
	}

	// Let in-flight fetches settle before closing the books.
	select {
	case <-ctx.Done():
	case <-time.After(2 * r.swipeEvery):
	}
	r.engine.EndSession(ctx)

	return r.engine.Stats(), nil
}
