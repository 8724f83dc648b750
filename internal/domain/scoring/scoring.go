// Package scoring computes multi-factor confidence-weighted scores for
// prefetch candidates.
//
// Scoring is pure: no I/O, no side effects, no error conditions.
// Invalid numeric inputs are clamped into valid ranges rather than
// rejected, and missing preference data yields a neutral mid-range
// sub-score so new users are not starved of prefetching.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/swipedine/prefetch/internal/domain/model"
)

// Score range and neutral-midpoint constants.
const (
	maxScoreValue = 100.0
	neutralScore  = 50.0
	maxRating     = 5.0

	// Confidence floor for a candidate with no behavioral signal at all.
	baseConfidence = 0.3

	// How strongly an imminent session end depresses the final score.
	sessionEndPenalty = 0.6
)

// Meal anchor hours for the time-of-day sub-score.
var mealHours = []float64{8, 12.5, 19}

// Input carries everything a single scoring call needs.
type Input struct {
	Item     model.Item
	Position int // absolute queue index of the item
	Current  int // current queue position
	Metrics  model.BehaviorMetrics
	Session  model.SessionContext
	Prefs    model.Preferences
}

// Engine scores one candidate. Implementations must be deterministic
// given identical inputs, except for the CalculatedAt timestamp.
type Engine interface {
	Score(in Input) model.Score
}

// Option applies a configuration option to the CardScorer.
type Option func(*CardScorer)

// WithWeights overrides the sub-score weights. Non-positive weights are
// ignored so a partial map tweaks only the named factors.
func WithWeights(weights map[string]float64) Option {
	return func(s *CardScorer) {
		for name, w := range weights {
			if w > 0 {
				s.weights[name] = w
			}
		}
	}
}

// WithLookahead sets the window used for proximity decay.
func WithLookahead(n int) Option {
	return func(s *CardScorer) {
		if n > 0 {
			s.lookahead = n
		}
	}
}

// WithClock injects the timestamp source; tests pass a fixed clock.
func WithClock(now func() time.Time) Option {
	return func(s *CardScorer) {
		if now != nil {
			s.now = now
		}
	}
}

// CardScorer implements Engine for restaurant cards.
type CardScorer struct {
	weights   map[string]float64
	lookahead int
	now       func() time.Time
}

// NewCardScorer creates a scorer with default weights.
func NewCardScorer(opts ...Option) *CardScorer {
	s := &CardScorer{
		weights: map[string]float64{
			"proximity":  3.0,
			"relevance":  2.0,
			"quality":    1.5,
			"popularity": 1.0,
			"pattern":    1.5,
			"timeofday":  0.5,
			"sessionfit": 1.0,
			"engagement": 1.5,
		},
		lookahead: 5,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Score computes the full sub-score bundle for one candidate.
func (s *CardScorer) Score(in Input) model.Score {
	sc := model.Score{
		Proximity:    s.proximity(in.Position, in.Current),
		Relevance:    s.relevance(in.Item, in.Prefs),
		Quality:      s.quality(in.Item),
		Popularity:   s.popularity(in.Item),
		Pattern:      s.pattern(in.Item, in.Prefs),
		TimeOfDay:    s.timeOfDay(in.Session),
		SessionFit:   s.sessionFit(in.Metrics),
		Engagement:   s.engagement(in.Metrics),
		CalculatedAt: s.now(),
	}

	sc.Base = s.base(sc)
	sc.Final = s.contextual(sc.Base, in.Session)
	sc.Confidence = s.confidence(in)

	return sc
}

// base combines sub-scores with fixed weights.
func (s *CardScorer) base(sc model.Score) float64 {
	parts := []struct {
		name  string
		value float64
	}{
		{"proximity", sc.Proximity},
		{"relevance", sc.Relevance},
		{"quality", sc.Quality},
		{"popularity", sc.Popularity},
		{"pattern", sc.Pattern},
		{"timeofday", sc.TimeOfDay},
		{"sessionfit", sc.SessionFit},
		{"engagement", sc.Engagement},
	}

	var sum, total float64
	for _, p := range parts {
		w := s.weights[p.name]
		sum += w * p.value
		total += w
	}
	if total == 0 {
		return 0
	}
	return clamp(sum/total, 0, maxScoreValue)
}

// contextual applies session multipliers to the base score. An imminent
// session end depresses the score: prefetching for a session that is
// about to close is mostly wasted spend.
func (s *CardScorer) contextual(base float64, session model.SessionContext) float64 {
	endingP := clamp(session.EndingSoonP, 0, 1)
	return clamp(base*(1-sessionEndPenalty*endingP), 0, maxScoreValue)
}

// confidence reflects how much of the input signal was available.
func (s *CardScorer) confidence(in Input) float64 {
	available, total := 0.0, 5.0
	if len(in.Prefs.Categories) > 0 {
		available++
	}
	if len(in.Prefs.History) > 0 {
		available++
	}
	if in.Metrics.CardsSeen > 0 {
		available++
	}
	if in.Item.Rating > 0 {
		available++
	}
	if in.Item.RatingCount > 0 {
		available++
	}
	return clamp(baseConfidence+(1-baseConfidence)*(available/total), 0, 1)
}

// proximity decays linearly across the lookahead window; the next card
// scores full marks.
func (s *CardScorer) proximity(position, current int) float64 {
	dist := position - current
	if dist < 1 {
		dist = 1
	}
	if dist > s.lookahead {
		return 0
	}
	return maxScoreValue * (1 - float64(dist-1)/float64(s.lookahead))
}

// relevance matches item categories against stated preferences.
func (s *CardScorer) relevance(item model.Item, prefs model.Preferences) float64 {
	if len(prefs.Categories) == 0 || len(item.Categories) == 0 {
		return neutralScore
	}
	liked := make(map[string]struct{}, len(prefs.Categories))
	for _, c := range prefs.Categories {
		liked[strings.ToLower(c)] = struct{}{}
	}
	matches := 0
	for _, c := range item.Categories {
		if _, ok := liked[strings.ToLower(c)]; ok {
			matches++
		}
	}
	if matches == 0 {
		return 20 // known mismatch scores below neutral
	}
	return clamp(60+40*float64(matches)/float64(len(item.Categories)), 0, maxScoreValue)
}

// quality maps the star rating onto the score range.
func (s *CardScorer) quality(item model.Item) float64 {
	rating := clamp(item.Rating, 0, maxRating)
	if rating == 0 {
		return neutralScore
	}
	return rating / maxRating * maxScoreValue
}

// popularity grows logarithmically with rating volume.
func (s *CardScorer) popularity(item model.Item) float64 {
	if item.RatingCount <= 0 {
		return neutralScore
	}
	return clamp(25*math.Log10(1+float64(item.RatingCount)), 0, maxScoreValue)
}

// pattern scores the strongest historical affinity among the item's
// categories.
func (s *CardScorer) pattern(item model.Item, prefs model.Preferences) float64 {
	if len(prefs.History) == 0 || len(item.Categories) == 0 {
		return neutralScore
	}
	best := 0.0
	found := false
	for _, c := range item.Categories {
		if affinity, ok := prefs.History[strings.ToLower(c)]; ok {
			found = true
			best = math.Max(best, clamp(affinity, 0, 1))
		}
	}
	if !found {
		return neutralScore
	}
	return best * maxScoreValue
}

// timeOfDay peaks near meal hours and bottoms out between them.
func (s *CardScorer) timeOfDay(session model.SessionContext) float64 {
	hour := float64(session.HourOfDay)
	if hour < 0 || hour > 23 {
		return neutralScore
	}
	nearest := math.Inf(1)
	for _, m := range mealHours {
		d := math.Abs(hour - m)
		// Wrap around midnight.
		d = math.Min(d, 24-d)
		nearest = math.Min(nearest, d)
	}
	// Full score at a meal hour, floor of 30 at the furthest midpoint.
	return clamp(maxScoreValue-nearest*14, 30, maxScoreValue)
}

// sessionFit blends engagement and detail-expansion behavior.
func (s *CardScorer) sessionFit(m model.BehaviorMetrics) float64 {
	if m.CardsSeen == 0 {
		return neutralScore
	}
	engagement := clamp(m.EngagementRate, 0, 1)
	expansion := clamp(m.DetailExpansionRate, 0, 1)
	return clamp((0.6*engagement+0.4*expansion)*maxScoreValue, 0, maxScoreValue)
}

// engagement predicts whether the user will actually reach the card. A
// moderate swipe pace means upcoming cards get seen; a frantic pace
// means they get skipped.
func (s *CardScorer) engagement(m model.BehaviorMetrics) float64 {
	if m.CardsSeen == 0 {
		return neutralScore
	}
	rate := clamp(m.SwipeRate, 0, 60)
	if rate <= 12 {
		return clamp(60+rate*3, 0, maxScoreValue)
	}
	return clamp(96-(rate-12)*2, 0, maxScoreValue)
}

// clamp bounds v into [lo, hi]; NaN collapses to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
