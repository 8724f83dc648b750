// Package optimizer turns scored candidates into an affordable
// execution set.
//
// It owns the static cost model, tightens admission thresholds as
// remaining budget shrinks, and ranks candidates by value-per-dollar,
// admitting the longest prefix that fits inside the safely spendable
// budget (remaining minus reserve).
package optimizer

import (
	"math"
	"sort"

	"github.com/swipedine/prefetch/internal/domain/model"
)

// Default cost model constants, dollars per call. Mirrors metered
// places-API pricing: detail lookups cost more than photo fetches.
const (
	defaultDetailCost = 0.017
	defaultMediaCost  = 0.007

	// Engagement below this admits at most one candidate per pass.
	lowEngagementRate = 0.2

	// Tightening levels applied on top of the continuous ramp.
	emergencyTightening = 0.5
	lowTightening       = 0.25

	// Score thresholds tighten at 80% of the confidence rate so a
	// near-exhausted budget does not push MinScore past reachable values.
	scoreTighteningRate = 0.8

	maxScoreValue = 100.0
)

// Option applies a configuration option to the Optimizer.
type Option func(*Optimizer)

// WithCosts sets the flat per-call prices for detail and media fetches.
func WithCosts(detail, media float64) Option {
	return func(o *Optimizer) {
		if detail > 0 {
			o.detailCost = detail
		}
		if media >= 0 {
			o.mediaCost = media
		}
	}
}

// Optimizer estimates costs and selects affordable candidates.
type Optimizer struct {
	detailCost float64
	mediaCost  float64
}

// New creates an Optimizer with default pricing.
func New(opts ...Option) *Optimizer {
	o := &Optimizer{
		detailCost: defaultDetailCost,
		mediaCost:  defaultMediaCost,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// EstimateCost prices a fetch for item. The model is flat: a fixed
// price per detail record and per primary image, no dynamic component.
func (o *Optimizer) EstimateCost(_ model.Item, includeMedia bool) model.Cost {
	c := model.Cost{Detail: o.detailCost}
	if includeMedia {
		c.Media = o.mediaCost
	}
	c.Total = c.Detail + c.Media
	return c
}

// ExpectedValue estimates the latency-hiding value of prefetching a
// candidate with the given score, in the same unit as cost ranking.
func (o *Optimizer) ExpectedValue(sc model.Score) float64 {
	return sc.Final / maxScoreValue * sc.Confidence
}

// AdjustThresholds tightens the base thresholds as remaining budget
// shrinks. Monotonic: less remaining budget never yields a more
// permissive result.
func (o *Optimizer) AdjustThresholds(base model.Thresholds, st model.BudgetStatus) model.Thresholds {
	t := tightening(st)

	out := base
	out.MinConfidence = math.Min(1, base.MinConfidence+(1-base.MinConfidence)*t)
	out.MinScore = math.Min(maxScoreValue, base.MinScore+(maxScoreValue-base.MinScore)*scoreTighteningRate*t)
	out.MediaMinScore = math.Min(maxScoreValue, base.MediaMinScore+(maxScoreValue-base.MediaMinScore)*scoreTighteningRate*t)

	switch {
	case st.BudgetExceeded:
		out.MaxLookahead = 0
	case st.IsEmergencyMode && base.MaxLookahead > 1:
		out.MaxLookahead = base.MaxLookahead / 2
	}

	return out
}

// IncludeMedia decides whether the secondary asset rides along with the
// detail fetch. Low-budget passes are detail-only.
func (o *Optimizer) IncludeMedia(st model.BudgetStatus, finalScore float64, th model.Thresholds) bool {
	if st.IsEmergencyMode || st.IsLowBudget {
		return false
	}
	return finalScore >= th.MediaMinScore
}

// SelectCandidates ranks candidates by value-per-dollar descending
// (ties broken by queue distance, closer wins) and admits the prefix
// whose cumulative cost stays within the safely spendable budget.
// Returns an empty slice, never an error, when nothing fits.
func (o *Optimizer) SelectCandidates(cands []model.Candidate, st model.BudgetStatus, engagementRate float64) []model.Candidate {
	if len(cands) == 0 {
		return nil
	}

	ranked := make([]model.Candidate, len(cands))
	copy(ranked, cands)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].ValuePerDollar != ranked[j].ValuePerDollar {
			return ranked[i].ValuePerDollar > ranked[j].ValuePerDollar
		}
		return ranked[i].Distance < ranked[j].Distance
	})

	limit := len(ranked)
	if engagementRate < lowEngagementRate {
		limit = 1
	}

	selected := make([]model.Candidate, 0, limit)
	var cum float64
	for _, c := range ranked {
		if len(selected) >= limit {
			break
		}
		if cum+c.EstimatedCost.Total > st.SafelySpendable {
			break
		}
		cum += c.EstimatedCost.Total
		selected = append(selected, c)
	}

	return selected
}

// tightening maps budget state onto a 0..1 tightening level. The
// continuous ramp starts once less than half the budget remains; flag
// levels act as floors and exhaustion pins the level at 1.
func tightening(st model.BudgetStatus) float64 {
	if st.BudgetExceeded {
		return 1
	}

	t := 0.0
	if frac, ok := remainingFraction(st); ok && frac < 0.5 {
		t = 0.5 - frac
	}
	if st.IsEmergencyMode {
		t = math.Max(t, emergencyTightening)
	} else if st.IsLowBudget {
		t = math.Max(t, lowTightening)
	}
	return math.Min(1, t)
}

// remainingFraction is the tightest remaining/ceiling ratio across
// configured windows.
func remainingFraction(st model.BudgetStatus) (float64, bool) {
	frac := math.Inf(1)
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
		frac = math.Min(frac, w.rem/w.ceiling)
	}
	return frac, configured
}
