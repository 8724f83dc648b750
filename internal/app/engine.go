// Package app provides the prefetch orchestrator that ties scoring,
// budgeting, cost optimization, and dispatch into one decision
// pipeline.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/swipedine/prefetch/internal/adapters/dispatch"
	"github.com/swipedine/prefetch/internal/adapters/events"
	"github.com/swipedine/prefetch/internal/domain/budget"
	"github.com/swipedine/prefetch/internal/domain/inflight"
	"github.com/swipedine/prefetch/internal/domain/model"
	"github.com/swipedine/prefetch/internal/domain/optimizer"
	"github.com/swipedine/prefetch/internal/domain/scoring"
	"github.com/swipedine/prefetch/pkg/logger"
	"github.com/swipedine/prefetch/pkg/metrics"
)

// Fetcher performs the actual network transport. The engine does no
// retries; retry policy, if any, lives behind this interface.
type Fetcher interface {
	FetchDetail(ctx context.Context, itemID string) (model.Detail, error)
	FetchMedia(ctx context.Context, item model.Item) (string, error)
}

// Cache reports whether an asset is already warmed, so the engine can
// skip re-scoring items whose fetches would be free.
type Cache interface {
	Has(ctx context.Context, key string) bool
}

// Observer exposes the behavior tracker's point-in-time signals and
// view history.
type Observer interface {
	Signals(ctx context.Context) model.Signals
	Viewed(ctx context.Context, itemID string) bool
}

// ledgerEntry tracks a completed prefetch until it is used or the
// session ends.
type ledgerEntry struct {
	cost     float64
	score    model.Score
	decision model.Decision
	used     bool
}

// Engine is the prefetch orchestrator. One instance per client
// session; no process-wide globals, so tests run isolated instances.
type Engine struct {
	mu sync.Mutex

	// Core components
	scorer   scoring.Engine
	tracker  *budget.Tracker
	opt      *optimizer.Optimizer
	inflight inflight.Set
	sink     events.Sink
	pool     *dispatch.Pool

	// Collaborators
	fetcher  Fetcher
	cache    Cache
	observer Observer

	// Configuration
	base          model.Thresholds
	maxConcurrent int
	enabled       bool
	debug         bool
	now           func() time.Time

	// State
	started bool
	paused  atomic.Bool

	// Completed-prefetch ledger for used/wasted accounting
	ledgerMu sync.Mutex
	ledger   map[string]*ledgerEntry

	logger logger.Logger
}

// New constructs an Engine with default configuration.
func New(opts ...Option) *Engine {
	e := &Engine{
		base: model.Thresholds{
			MinConfidence: 0.5,
			MinScore:      55,
			MediaMinScore: 70,
			MaxLookahead:  5,
		},
		maxConcurrent: 2,
		enabled:       true,
		now:           time.Now,
		ledger:        make(map[string]*ledgerEntry),
		logger:        logger.Get().Named("prefetch"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start initializes missing components and launches the fetch pool.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}
	if e.fetcher == nil {
		return ErrNoFetcher
	}

	if e.scorer == nil {
		e.scorer = scoring.NewCardScorer(
			scoring.WithLookahead(e.base.MaxLookahead),
			scoring.WithClock(e.now),
		)
	}
	if e.tracker == nil {
		e.tracker = budget.New(budget.WithClock(e.now))
	}
	if e.opt == nil {
		e.opt = optimizer.New()
	}
	if e.inflight == nil {
		e.inflight = inflight.NewSet()
	}
	if e.sink == nil {
		e.sink = events.NewRecorder()
	}
	e.pool = dispatch.NewPool(e,
		dispatch.WithWorkers(e.maxConcurrent),
		dispatch.WithLogger(e.logger),
	)
	e.pool.Start(ctx)

	e.started = true
	e.logger.Info(ctx, "prefetch engine started",
		logger.Int("maxConcurrent", e.maxConcurrent),
		logger.Int("lookahead", e.base.MaxLookahead),
		logger.Bool("enabled", e.enabled),
	)
	return nil
}

// Stop drains pending work and shuts down the pool. In-flight fetches
// are allowed to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return
	}

	ctx := context.Background()
	for _, job := range e.pool.Drain(ctx) {
		e.inflight.End(ctx, job.Candidate.Item.ID)
	}
	if err := e.pool.Stop(); err != nil {
		e.logger.Warn(ctx, "fetch pool stop", logger.Error(err))
	}

	e.started = false
	e.logger.Info(ctx, "prefetch engine stopped")
}

// RunPass evaluates the lookahead window ahead of currentPosition and
// dispatches the affordable, highest-value candidates. Returns the
// number of candidates dispatched. Never fails on transport or budget
// grounds; the worst outcome is that nothing is prefetched this pass.
func (e *Engine) RunPass(ctx context.Context, queue []model.Item, currentPosition int, prefs model.Preferences) (int, error) {
	if !e.isStarted() {
		return 0, ErrNotStarted
	}
	if !e.enabled || e.paused.Load() {
		return 0, nil
	}

	metrics.RecordPass()

	st := e.tracker.Status(ctx)
	if st.BudgetExceeded {
		e.logger.Debug(ctx, "budget exceeded, skipping pass")
		return 0, nil
	}

	sig := e.signals(ctx)
	th := e.opt.AdjustThresholds(e.base, st)

	candidates := e.scoreWindow(ctx, queue, currentPosition, th, st, sig, prefs)
	selected := e.opt.SelectCandidates(candidates, st, sig.Metrics.EngagementRate)

	dispatched := 0
	for _, c := range selected {
		if !e.inflight.Begin(ctx, c.Item.ID) {
			continue
		}
		dec := model.Decision{
			FetchDetail:   true,
			FetchMedia:    c.EstimatedCost.Media > 0,
			Priority:      c.ValuePerDollar,
			Reason:        "predicted",
			EstimatedCost: c.EstimatedCost,
			ExpectedValue: c.ExpectedValue,
			Confidence:    c.Score.Confidence,
			DecidedAt:     e.now(),
		}
		metrics.RecordCandidateAdmitted()
		if !e.pool.Submit(ctx, dispatch.Job{Candidate: c, Decision: dec}) {
			e.inflight.End(ctx, c.Item.ID)
			metrics.RecordCandidateRejected("saturated")
			continue
		}
		dispatched++
	}

	if e.debug {
		e.logger.Debug(ctx, "pass complete",
			logger.Int("scored", len(candidates)),
			logger.Int("selected", len(selected)),
			logger.Int("dispatched", dispatched),
			logger.Float64("safelySpendable", st.SafelySpendable),
		)
	}
	return dispatched, nil
}

// scoreWindow scores every eligible item in the lookahead window and
// applies the budget-adjusted admission thresholds.
func (e *Engine) scoreWindow(ctx context.Context, queue []model.Item, current int, th model.Thresholds, st model.BudgetStatus, sig model.Signals, prefs model.Preferences) []model.Candidate {
	var candidates []model.Candidate
	for pos := current + 1; pos < len(queue) && pos <= current+th.MaxLookahead; pos++ {
		item := queue[pos]
		if item.ID == "" {
			continue
		}
		// Already-warmed and in-flight items never re-enter the pipeline.
		if e.cacheHas(ctx, detailKey(item.ID)) {
			continue
		}
		if e.inflight.Contains(ctx, item.ID) {
			continue
		}

		sc := e.scorer.Score(scoring.Input{
			Item:     item,
			Position: pos,
			Current:  current,
			Metrics:  sig.Metrics,
			Session:  sig.Session,
			Prefs:    prefs,
		})
		metrics.RecordCandidateScored()

		if sc.Confidence < th.MinConfidence {
			metrics.RecordCandidateRejected("confidence")
			continue
		}
		if sc.Final < th.MinScore {
			metrics.RecordCandidateRejected("score")
			continue
		}

		includeMedia := e.opt.IncludeMedia(st, sc.Final, th)
		cost := e.opt.EstimateCost(item, includeMedia)
		ev := e.opt.ExpectedValue(sc)
		vpd := 0.0
		if cost.Total > 0 {
			vpd = ev / cost.Total
		}

		candidates = append(candidates, model.Candidate{
			Item:           item,
			Score:          sc,
			QueuePosition:  pos,
			Distance:       pos - current,
			EstimatedCost:  cost,
			ExpectedValue:  ev,
			ValuePerDollar: vpd,
		})
	}
	return candidates
}

// Process executes one admitted job. Implements dispatch.Processor.
// Failures abort this candidate only and charge nothing.
func (e *Engine) Process(ctx context.Context, job dispatch.Job) {
	itemID := job.Candidate.Item.ID
	defer e.inflight.End(ctx, itemID)

	e.safeEmit(ctx, model.Event{
		Stage:    model.StageStarted,
		ItemID:   itemID,
		Cost:     job.Decision.EstimatedCost.Total,
		Score:    job.Candidate.Score,
		Decision: job.Decision,
	})

	start := e.now()
	if err := e.executeFetches(ctx, job.Candidate.Item, job.Decision.FetchDetail, job.Decision.FetchMedia); err != nil {
		metrics.RecordFetchFailure()
		e.safeEmit(ctx, model.Event{
			Stage:    model.StageCompleted,
			ItemID:   itemID,
			Success:  false,
			Error:    err.Error(),
			Score:    job.Candidate.Score,
			Decision: job.Decision,
		})
		e.logger.Debug(ctx, "prefetch failed",
			logger.String("itemID", itemID),
			logger.Error(err),
		)
		return
	}
	metrics.RecordFetchLatency(float64(time.Since(start).Milliseconds()))
	metrics.RecordFetchSuccess()

	// Charge only what was actually incurred, and only on success.
	actual := job.Decision.EstimatedCost.Detail
	if job.Decision.FetchMedia {
		actual += job.Decision.EstimatedCost.Media
	}
	e.tracker.RecordSpend(ctx, actual)

	e.recordCompleted(itemID, actual, job.Candidate.Score, job.Decision)
	e.safeEmit(ctx, model.Event{
		Stage:    model.StageCompleted,
		ItemID:   itemID,
		Success:  true,
		Cost:     actual,
		Score:    job.Candidate.Score,
		Decision: job.Decision,
	})
}

// executeFetches issues the detail and media fetches for one item.
func (e *Engine) executeFetches(ctx context.Context, item model.Item, wantDetail, wantMedia bool) error {
	if wantDetail {
		if _, err := e.fetcher.FetchDetail(ctx, item.ID); err != nil {
			return fmt.Errorf("detail fetch: %w", err)
		}
	}
	if wantMedia {
		if _, err := e.fetcher.FetchMedia(ctx, item); err != nil {
			return fmt.Errorf("media fetch: %w", err)
		}
	}
	return nil
}

// RequestImmediate fetches assets for an explicitly opened card. It
// bypasses scoring and admission (the need is certain, not predicted)
// but still honors single-flight and still charges the budget. If the
// item is already in flight no second call is issued and nothing is
// charged twice.
func (e *Engine) RequestImmediate(ctx context.Context, item model.Item, req model.FetchRequest) error {
	if !e.isStarted() {
		return ErrNotStarted
	}
	if !req.Detail && !req.Media {
		return nil
	}

	metrics.RecordImmediate()

	if !e.inflight.Begin(ctx, item.ID) {
		// The in-flight fetch will warm the cache; reuse its result.
		e.logger.Debug(ctx, "immediate request joins in-flight fetch",
			logger.String("itemID", item.ID),
		)
		return nil
	}
	defer e.inflight.End(ctx, item.ID)

	needDetail := req.Detail && !e.cacheHas(ctx, detailKey(item.ID))
	needMedia := req.Media && !e.cacheHas(ctx, mediaKey(item.ID))
	if !needDetail && !needMedia {
		return nil
	}

	full := e.opt.EstimateCost(item, true)
	cost := model.Cost{}
	if needDetail {
		cost.Detail = full.Detail
	}
	if needMedia {
		cost.Media = full.Media
	}
	cost.Total = cost.Detail + cost.Media

	dec := model.Decision{
		FetchDetail:   needDetail,
		FetchMedia:    needMedia,
		Reason:        "immediate",
		EstimatedCost: cost,
		Confidence:    1,
		DecidedAt:     e.now(),
	}
	e.safeEmit(ctx, model.Event{
		Stage:    model.StageStarted,
		ItemID:   item.ID,
		Cost:     cost.Total,
		Decision: dec,
	})

	if err := e.executeFetches(ctx, item, needDetail, needMedia); err != nil {
		metrics.RecordFetchFailure()
		e.safeEmit(ctx, model.Event{
			Stage:    model.StageCompleted,
			ItemID:   item.ID,
			Success:  false,
			Error:    err.Error(),
			Decision: dec,
		})
		return fmt.Errorf("immediate fetch for %s: %w", item.ID, err)
	}
	metrics.RecordFetchSuccess()

	e.tracker.RecordSpend(ctx, cost.Total)
	e.safeEmit(ctx, model.Event{
		Stage:    model.StageCompleted,
		ItemID:   item.ID,
		Success:  true,
		Cost:     cost.Total,
		Decision: dec,
	})
	return nil
}

// NoteView reports that the user reached a card. The first view of a
// prefetched item emits a used event; anything else is a no-op.
func (e *Engine) NoteView(ctx context.Context, itemID string) {
	e.ledgerMu.Lock()
	entry, ok := e.ledger[itemID]
	if !ok || entry.used {
		e.ledgerMu.Unlock()
		return
	}
	entry.used = true
	e.ledgerMu.Unlock()

	e.safeEmit(ctx, model.Event{
		Stage:    model.StageUsed,
		ItemID:   itemID,
		Cost:     entry.cost,
		Score:    entry.score,
		Decision: entry.decision,
	})
}

// EndSession discards never-dispatched work and emits wasted events for
// completed prefetches the view history says were never reached.
// Considered-but-never-dispatched candidates are discarded silently.
func (e *Engine) EndSession(ctx context.Context) {
	if !e.isStarted() {
		return
	}

	e.ClearQueue()

	e.ledgerMu.Lock()
	entries := e.ledger
	e.ledger = make(map[string]*ledgerEntry)
	e.ledgerMu.Unlock()

	for itemID, entry := range entries {
		if entry.used {
			continue
		}
		if e.observer != nil && e.observer.Viewed(ctx, itemID) {
			continue
		}
		e.safeEmit(ctx, model.Event{
			Stage:    model.StageWasted,
			ItemID:   itemID,
			Cost:     entry.cost,
			Score:    entry.score,
			Decision: entry.decision,
		})
	}
}

// Pause suspends prefetching; in-flight fetches finish normally.
func (e *Engine) Pause() {
	e.paused.Store(true)
}

// Resume re-enables prefetching.
func (e *Engine) Resume() {
	e.paused.Store(false)
}

// ClearQueue drops pending (not yet started) jobs without events; the
// items become eligible for scoring again on the next pass.
func (e *Engine) ClearQueue() {
	if !e.isStarted() {
		return
	}
	ctx := context.Background()
	for _, job := range e.pool.Drain(ctx) {
		e.inflight.End(ctx, job.Candidate.Item.ID)
	}
}

// BudgetStatus returns a read-only snapshot of current spend state.
func (e *Engine) BudgetStatus(ctx context.Context) model.BudgetStatus {
	if e.tracker == nil {
		return model.BudgetStatus{}
	}
	return e.tracker.Status(ctx)
}

// RecentEvents returns up to n most recent lifecycle events, newest
// first, when the configured sink retains them.
func (e *Engine) RecentEvents(n int) []model.Event {
	if recent, ok := e.sink.(interface{ Recent(int) []model.Event }); ok {
		return recent.Recent(n)
	}
	return nil
}

// Stats returns sink-derived hit/waste statistics when available.
func (e *Engine) Stats() events.Stats {
	if st, ok := e.sink.(interface{ Stats() events.Stats }); ok {
		return st.Stats()
	}
	return events.Stats{}
}

// InflightSize returns the number of in-flight fetches.
func (e *Engine) InflightSize() int64 {
	if e.inflight == nil {
		return 0
	}
	return e.inflight.Size()
}

// recordCompleted adds a successful prefetch to the waste ledger.
func (e *Engine) recordCompleted(itemID string, cost float64, sc model.Score, dec model.Decision) {
	e.ledgerMu.Lock()
	defer e.ledgerMu.Unlock()
	e.ledger[itemID] = &ledgerEntry{cost: cost, score: sc, decision: dec}
}

// safeEmit hands an event to the sink; sink panics must never reach
// the pipeline.
func (e *Engine) safeEmit(ctx context.Context, ev model.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(ctx, "event sink panicked",
				logger.String("stage", string(ev.Stage)),
				logger.Any("panic", r),
			)
		}
	}()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	e.sink.Emit(ctx, ev)
}

// signals reads the observer snapshot, defaulting to zero signals when
// no observer is wired.
func (e *Engine) signals(ctx context.Context) model.Signals {
	if e.observer == nil {
		return model.Signals{}
	}
	return e.observer.Signals(ctx)
}

// cacheHas consults the warm cache, treating a missing cache as cold.
func (e *Engine) cacheHas(ctx context.Context, key string) bool {
	if e.cache == nil {
		return false
	}
	return e.cache.Has(ctx, key)
}

func (e *Engine) isStarted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

func detailKey(itemID string) string { return "detail:" + itemID }
func mediaKey(itemID string) string  { return "media:" + itemID }
