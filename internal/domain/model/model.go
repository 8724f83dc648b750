// Package model contains domain models passed between layers.
package model

import "time"

// Item represents a restaurant card in the swipe queue.
type Item struct {
	ID          string   // place identifier from the discovery API
	Name        string   // display name
	Categories  []string // cuisine/category tags, e.g., "ramen", "brunch"
	Rating      float64  // 0-5 star rating, 0 when unknown
	RatingCount int      // number of ratings behind Rating
	PriceLevel  int      // 1 (cheap) .. 4 (expensive), 0 when unknown
	DistanceKm  float64  // distance from the user, 0 when unknown
}

// Detail is the full record fetched speculatively for an item.
// The engine never inspects it beyond the identifier; it exists so the
// warmed result has somewhere to land.
type Detail struct {
	ItemID    string
	Name      string
	Address   string
	Phone     string
	Hours     []string
	PhotoRefs []string
	FetchedAt time.Time
}

// Score is the multi-factor scoring result for one candidate.
// Recomputed fresh on every pipeline run, never cached.
type Score struct {
	// Sub-scores, each in [0, 100]. Missing input yields the neutral
	// midpoint rather than zero so new users still get prefetching.
	Proximity  float64 // closeness to the current queue position
	Relevance  float64 // match against stated cuisine preferences
	Quality    float64 // rating signal
	Popularity float64 // rating volume signal
	Pattern    float64 // historical user-pattern affinity
	TimeOfDay  float64 // meal-time context
	SessionFit float64 // fit with the current session's behavior
	Engagement float64 // predicted chance the card is reached

	Base         float64   // fixed-weight combination of sub-scores
	Final        float64   // Base after contextual multipliers
	Confidence   float64   // [0, 1], share of input signal available
	CalculatedAt time.Time // wall clock at computation
}

// Cost is the estimated monetary cost of fetching a candidate.
type Cost struct {
	Detail float64
	Media  float64
	Total  float64
}

// Candidate is a queued item scored for possible speculative fetch.
// Immutable; discarded after the pipeline run that produced it.
type Candidate struct {
	Item           Item
	Score          Score
	QueuePosition  int // absolute index in the queue
	Distance       int // positions ahead of the current card
	EstimatedCost  Cost
	ExpectedValue  float64
	ValuePerDollar float64 // primary ranking key for admission
}

// BudgetStatus is a read-only snapshot of spend state. Value semantics:
// callers receive a copy and can never mutate the tracker's live state.
type BudgetStatus struct {
	SessionCeiling float64
	DailyCeiling   float64
	MonthlyCeiling float64

	SessionSpent float64
	DailySpent   float64
	MonthlySpent float64

	SessionRemaining float64
	DailyRemaining   float64
	MonthlyRemaining float64

	// Reserve and EmergencyReserve are absolute amounts derived from the
	// configured fractions of the session ceiling.
	Reserve          float64
	EmergencyReserve float64

	// SafelySpendable is the tightest (remaining - reserve) across all
	// configured windows, floored at zero.
	SafelySpendable float64

	IsLowBudget     bool
	IsEmergencyMode bool
	BudgetExceeded  bool
}

// Thresholds gate admission of scored candidates.
type Thresholds struct {
	MinConfidence float64 // [0, 1]
	MinScore      float64 // [0, 100]
	MediaMinScore float64 // final score needed before media is included
	MaxLookahead  int     // positions ahead considered at all
}

// FetchRequest states which assets an immediate fetch wants.
type FetchRequest struct {
	Detail bool
	Media  bool
}

// Decision records why and how a candidate was executed.
type Decision struct {
	FetchDetail   bool
	FetchMedia    bool
	Priority      float64 // value-per-dollar at admission time
	Reason        string
	EstimatedCost Cost
	ExpectedValue float64
	Confidence    float64
	DecidedAt     time.Time
}

// Stage tags a lifecycle event.
type Stage string

// Lifecycle stages of a prefetch.
const (
	StageStarted   Stage = "started"
	StageCompleted Stage = "completed"
	StageUsed      Stage = "used"
	StageWasted    Stage = "wasted"
)

// Event is an append-only lifecycle record handed to the event sink.
type Event struct {
	ID        string // assigned by the sink
	Stage     Stage
	ItemID    string
	Timestamp time.Time
	Cost      float64
	Success   bool   // meaningful for StageCompleted
	Error     string // set when Success is false
	Score     Score
	Decision  Decision
	Metadata  map[string]string
}

// BehaviorMetrics is a rolling snapshot of how the user interacts with
// cards, supplied by the behavior observer.
type BehaviorMetrics struct {
	AvgViewSeconds      float64 // mean dwell time per card
	SwipeRate           float64 // cards per minute
	DetailExpansionRate float64 // [0, 1], share of cards expanded
	EngagementRate      float64 // [0, 1], composite engagement
	CardsSeen           int     // cards viewed this session
}

// SessionContext is point-in-time session state.
type SessionContext struct {
	SessionAge  time.Duration
	HourOfDay   int     // local hour, 0-23
	EndingSoonP float64 // [0, 1], probability the session ends soon
}

// Signals bundles the observer's snapshot for one pipeline run.
type Signals struct {
	Metrics BehaviorMetrics
	Session SessionContext
}

// Preferences captures the user's stated and learned tastes.
type Preferences struct {
	Categories  []string           // liked cuisines, possibly empty
	MinRating   float64            // 0 when unset
	PriceLevels []int              // acceptable price levels, empty = any
	History     map[string]float64 // category -> affinity [0, 1]
}
