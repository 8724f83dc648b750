// Package budget tracks speculative-fetch spend against configured
// ceilings over session, daily, and monthly windows.
//
// Daily and monthly counters persist through a key-value store keyed by
// the calendar window, so rollover is implicit: a new day or month
// simply reads a fresh key. If the store is unavailable the tracker
// degrades to session-only accounting; that is an availability
// degradation, never a hard failure.
package budget

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/swipedine/prefetch/internal/adapters/kv"
	"github.com/swipedine/prefetch/internal/domain/model"
	"github.com/swipedine/prefetch/pkg/logger"
	"github.com/swipedine/prefetch/pkg/metrics"
)

// Default budget configuration constants.
const (
	defaultSessionCeiling    = 5.0
	defaultDailyCeiling      = 25.0
	defaultMonthlyCeiling    = 300.0
	defaultReserveFraction   = 0.10
	defaultEmergencyFraction = 0.05

	lowBudgetFraction = 0.25

	dayKeyFormat   = "2006-01-02"
	monthKeyFormat = "2006-01"
)

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithStore sets the persisted counter store.
func WithStore(store kv.Store) Option {
	return func(t *Tracker) {
		if store != nil {
			t.store = store
		}
	}
}

// WithCeilings sets the per-window spend ceilings in dollars. A zero or
// negative ceiling disables that window.
func WithCeilings(session, daily, monthly float64) Option {
	return func(t *Tracker) {
		t.sessionCeiling = session
		t.dailyCeiling = daily
		t.monthlyCeiling = monthly
	}
}

// WithReserveFraction sets the fraction of each ceiling held back from
// speculative spend.
func WithReserveFraction(f float64) Option {
	return func(t *Tracker) {
		if f >= 0 && f < 1 {
			t.reserveFraction = f
		}
	}
}

// WithEmergencyFraction sets the remaining-budget fraction below which
// emergency mode trips.
func WithEmergencyFraction(f float64) Option {
	return func(t *Tracker) {
		if f >= 0 && f < 1 {
			t.emergencyFraction = f
		}
	}
}

// WithClock injects the wall clock used for window keys; tests pass a
// fixed clock to exercise rollover.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets a custom logger for the tracker.
func WithLogger(l logger.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// Tracker maintains spend counters and derived budget flags. It is the
// only writer of budget state; callers get read-only snapshots.
type Tracker struct {
	mu sync.Mutex

	store kv.Store
	now   func() time.Time

	sessionCeiling    float64
	dailyCeiling      float64
	monthlyCeiling    float64
	reserveFraction   float64
	emergencyFraction float64

	sessionSpent float64

	logger logger.Logger
}

// New constructs a Tracker with default ceilings and an in-memory store.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		store:             kv.NewMemoryStore(),
		now:               time.Now,
		sessionCeiling:    defaultSessionCeiling,
		dailyCeiling:      defaultDailyCeiling,
		monthlyCeiling:    defaultMonthlyCeiling,
		reserveFraction:   defaultReserveFraction,
		emergencyFraction: defaultEmergencyFraction,
		logger:            logger.Get().Named("budget"),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Status returns a snapshot of current spend and derived flags. Calling
// it twice without an intervening RecordSpend yields equal values.
func (t *Tracker) Status(ctx context.Context) model.BudgetStatus {
	t.mu.Lock()
	session := t.sessionSpent
	t.mu.Unlock()

	daily := t.readCounter(ctx, t.dayKey())
	monthly := t.readCounter(ctx, t.monthKey())

	st := model.BudgetStatus{
		SessionCeiling:   t.sessionCeiling,
		DailyCeiling:     t.dailyCeiling,
		MonthlyCeiling:   t.monthlyCeiling,
		SessionSpent:     session,
		DailySpent:       daily,
		MonthlySpent:     monthly,
		SessionRemaining: remaining(t.sessionCeiling, session),
		DailyRemaining:   remaining(t.dailyCeiling, daily),
		MonthlyRemaining: remaining(t.monthlyCeiling, monthly),
		Reserve:          t.reserveFraction * t.sessionCeiling,
		EmergencyReserve: t.emergencyFraction * t.sessionCeiling,
	}

	st.SafelySpendable = t.safelySpendable(st)
	st.IsLowBudget = t.isLow(st)
	st.IsEmergencyMode = t.isEmergency(st)
	st.BudgetExceeded = t.isExceeded(st)

	metrics.UpdateBudgetRemaining("session", st.SessionRemaining)
	metrics.UpdateBudgetRemaining("daily", st.DailyRemaining)
	metrics.UpdateBudgetRemaining("monthly", st.MonthlyRemaining)

	return st
}

// RecordSpend charges amount to all windows. The session counter always
// updates; persisted counters are best-effort per the degradation
// policy. Negative amounts are ignored.
func (t *Tracker) RecordSpend(ctx context.Context, amount float64) {
	if amount <= 0 || math.IsNaN(amount) {
		return
	}

	t.mu.Lock()
	t.sessionSpent += amount
	t.mu.Unlock()

	for _, key := range []string{t.dayKey(), t.monthKey()} {
		if _, err := t.store.IncrBy(ctx, key, amount); err != nil {
			metrics.RecordKVError()
			t.logger.Warn(ctx, "spend counter not persisted; tracking session-only",
				logger.String("key", key),
				logger.Error(err),
			)
		}
	}

	metrics.RecordSpend(amount)
}

// readCounter reads a persisted window counter, degrading to zero when
// the store is unavailable.
func (t *Tracker) readCounter(ctx context.Context, key string) float64 {
	v, err := t.store.Get(ctx, key)
	if err == nil {
		return v
	}
	if errors.Is(err, kv.ErrNotFound) {
		return 0
	}
	metrics.RecordKVError()
	t.logger.Warn(ctx, "counter read failed; degrading to session-only",
		logger.String("key", key),
		logger.Error(err),
	)
	return 0
}

// safelySpendable is the tightest (remaining - reserve) across all
// configured windows, floored at zero.
func (t *Tracker) safelySpendable(st model.BudgetStatus) float64 {
	safe := math.MaxFloat64
	configured := false
	for _, w := range []struct{ ceiling, rem float64 }{
		{st.SessionCeiling, st.SessionRemaining},
		{st.DailyCeiling, st.DailyRemaining},
		{st.MonthlyCeiling, st.MonthlyRemaining},
	} {
		if w.ceiling <= 0 {
			continue
		}
		configured = true
		safe = math.Min(safe, w.rem-t.reserveFraction*w.ceiling)
	}
	if !configured {
		return math.MaxFloat64
	}
	return math.Max(0, safe)
}

// isLow trips when remaining daily or monthly budget falls under 25% of
// its ceiling.
func (t *Tracker) isLow(st model.BudgetStatus) bool {
	return belowFraction(st.DailyCeiling, st.DailyRemaining, lowBudgetFraction) ||
		belowFraction(st.MonthlyCeiling, st.MonthlyRemaining, lowBudgetFraction)
}

// isEmergency trips when any configured window drops under the
// emergency-reserve fraction.
func (t *Tracker) isEmergency(st model.BudgetStatus) bool {
	return belowFraction(st.SessionCeiling, st.SessionRemaining, t.emergencyFraction) ||
		belowFraction(st.DailyCeiling, st.DailyRemaining, t.emergencyFraction) ||
		belowFraction(st.MonthlyCeiling, st.MonthlyRemaining, t.emergencyFraction)
}

// isExceeded trips at zero remaining in the daily or monthly window.
func (t *Tracker) isExceeded(st model.BudgetStatus) bool {
	return (st.DailyCeiling > 0 && st.DailyRemaining <= 0) ||
		(st.MonthlyCeiling > 0 && st.MonthlyRemaining <= 0)
}

func (t *Tracker) dayKey() string {
	return fmt.Sprintf("spend:daily:%s", t.now().Format(dayKeyFormat))
}

func (t *Tracker) monthKey() string {
	return fmt.Sprintf("spend:monthly:%s", t.now().Format(monthKeyFormat))
}

func remaining(ceiling, spent float64) float64 {
	if ceiling <= 0 {
		return 0
	}
	return math.Max(0, ceiling-spent)
}

func belowFraction(ceiling, rem, fraction float64) bool {
	return ceiling > 0 && rem < fraction*ceiling
}
