package optimizer_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/swipedine/prefetch/internal/domain/model"
	"github.com/swipedine/prefetch/internal/domain/optimizer"
)

func baseThresholds() model.Thresholds {
	return model.Thresholds{
		MinConfidence: 0.8,
		MinScore:      75,
		MediaMinScore: 70,
		MaxLookahead:  5,
	}
}

func healthyBudget() model.BudgetStatus {
	return model.BudgetStatus{
		SessionCeiling:   5,
		SessionRemaining: 5,
		DailyCeiling:     25,
		DailyRemaining:   25,
		MonthlyCeiling:   300,
		MonthlyRemaining: 300,
		SafelySpendable:  4.5,
	}
}

func candidate(id string, vpd, cost float64, distance int) model.Candidate {
	return model.Candidate{
		Item:           model.Item{ID: id},
		Distance:       distance,
		EstimatedCost:  model.Cost{Detail: cost, Total: cost},
		ValuePerDollar: vpd,
	}
}

func TestEstimateCost(t *testing.T) {
	Convey("Given an optimizer with default pricing", t, func() {
		o := optimizer.New()

		Convey("When estimating a detail-only fetch", func() {
			c := o.EstimateCost(model.Item{ID: "a"}, false)

			Convey("Then only the detail price should be charged", func() {
				So(c.Detail, ShouldAlmostEqual, 0.017, 1e-9)
				So(c.Media, ShouldEqual, 0)
				So(c.Total, ShouldAlmostEqual, 0.017, 1e-9)
			})
		})

		Convey("When estimating with the media rider", func() {
			c := o.EstimateCost(model.Item{ID: "a"}, true)

			Convey("Then both flat prices should sum", func() {
				So(c.Total, ShouldAlmostEqual, 0.024, 1e-9)
			})
		})
	})

	Convey("Given custom pricing", t, func() {
		o := optimizer.New(optimizer.WithCosts(0.5, 0.1))

		Convey("When estimating a full fetch", func() {
			c := o.EstimateCost(model.Item{ID: "a"}, true)

			Convey("Then the configured prices should apply", func() {
				So(c.Total, ShouldAlmostEqual, 0.6, 1e-9)
			})
		})
	})
}

func TestExpectedValue(t *testing.T) {
	Convey("Given an optimizer", t, func() {
		o := optimizer.New()

		Convey("When computing expected value", func() {
			v := o.ExpectedValue(model.Score{Final: 80, Confidence: 0.5})

			Convey("Then it should be the confidence-discounted score fraction", func() {
				So(v, ShouldAlmostEqual, 0.4, 1e-9)
			})
		})
	})
}

func TestAdjustThresholds(t *testing.T) {
	Convey("Given an optimizer and base admission thresholds", t, func() {
		o := optimizer.New()
		base := baseThresholds()

		Convey("When the budget is healthy", func() {
			out := o.AdjustThresholds(base, healthyBudget())

			Convey("Then the thresholds should pass through unchanged", func() {
				So(out.MinConfidence, ShouldAlmostEqual, 0.8, 1e-9)
				So(out.MinScore, ShouldAlmostEqual, 75, 1e-9)
				So(out.MaxLookahead, ShouldEqual, 5)
			})
		})

		Convey("When emergency mode is active", func() {
			st := model.BudgetStatus{
				SessionCeiling:   5,
				SessionRemaining: 0.2,
				IsEmergencyMode:  true,
			}
			out := o.AdjustThresholds(base, st)

			Convey("Then confidence and score thresholds should tighten", func() {
				So(out.MinConfidence, ShouldAlmostEqual, 0.9, 1e-9)
				So(out.MinScore, ShouldAlmostEqual, 85, 1e-9)
			})

			Convey("Then the lookahead should shrink", func() {
				So(out.MaxLookahead, ShouldEqual, 2)
			})

			Convey("Then a borderline candidate should now be rejected", func() {
				So(0.82, ShouldBeLessThan, out.MinConfidence)
				So(78.0, ShouldBeLessThan, out.MinScore)
			})
		})

		Convey("When the budget is exceeded", func() {
			st := model.BudgetStatus{
				DailyCeiling:   25,
				BudgetExceeded: true,
			}
			out := o.AdjustThresholds(base, st)

			Convey("Then thresholds should pin at maximum tightening", func() {
				So(out.MinConfidence, ShouldAlmostEqual, 1.0, 1e-9)
				So(out.MinScore, ShouldAlmostEqual, 95, 1e-9)
				So(out.MaxLookahead, ShouldEqual, 0)
			})
		})

		Convey("When remaining budget shrinks step by step", func() {
			prev := o.AdjustThresholds(base, healthyBudget())

			for _, rem := range []float64{4, 3, 2, 1, 0.5, 0.1} {
				st := healthyBudget()
				st.SessionRemaining = rem
				out := o.AdjustThresholds(base, st)

				So(out.MinConfidence, ShouldBeGreaterThanOrEqualTo, prev.MinConfidence)
				So(out.MinScore, ShouldBeGreaterThanOrEqualTo, prev.MinScore)
				prev = out
			}
		})
	})
}

func TestIncludeMedia(t *testing.T) {
	Convey("Given an optimizer and media thresholds", t, func() {
		o := optimizer.New()
		th := baseThresholds()

		Convey("When the budget is healthy", func() {
			Convey("Then high scores should carry the media rider", func() {
				So(o.IncludeMedia(healthyBudget(), 80, th), ShouldBeTrue)
			})

			Convey("Then low scores should go detail-only", func() {
				So(o.IncludeMedia(healthyBudget(), 60, th), ShouldBeFalse)
			})
		})

		Convey("When the budget is low or in emergency", func() {
			low := healthyBudget()
			low.IsLowBudget = true
			emergency := healthyBudget()
			emergency.IsEmergencyMode = true

			Convey("Then media should be excluded regardless of score", func() {
				So(o.IncludeMedia(low, 99, th), ShouldBeFalse)
				So(o.IncludeMedia(emergency, 99, th), ShouldBeFalse)
			})
		})
	})
}

func TestSelectCandidates(t *testing.T) {
	Convey("Given an optimizer and a safely spendable budget", t, func() {
		o := optimizer.New()

		Convey("When five equal-cost candidates compete for a smaller budget", func() {
			st := model.BudgetStatus{SessionCeiling: 5, SafelySpendable: 4.5}
			cands := []model.Candidate{
				candidate("a", 5.0, 1.20, 1),
				candidate("b", 4.0, 1.20, 2),
				candidate("c", 3.0, 1.20, 3),
				candidate("d", 2.0, 1.20, 4),
				candidate("e", 1.0, 1.20, 5),
			}
			selected := o.SelectCandidates(cands, st, 0.7)

			Convey("Then only the prefix that fits should be admitted", func() {
				So(selected, ShouldHaveLength, 3)
				So(selected[0].Item.ID, ShouldEqual, "a")
				So(selected[1].Item.ID, ShouldEqual, "b")
				So(selected[2].Item.ID, ShouldEqual, "c")
			})
		})

		Convey("When the first overflowing candidate is followed by a cheaper one", func() {
			st := model.BudgetStatus{SessionCeiling: 5, SafelySpendable: 3.0}
			cands := []model.Candidate{
				candidate("a", 5.0, 2.0, 1),
				candidate("b", 4.0, 3.0, 2),
				candidate("c", 3.0, 0.5, 3),
			}
			selected := o.SelectCandidates(cands, st, 0.7)

			Convey("Then selection should stop at the overflow, not skip past it", func() {
				So(selected, ShouldHaveLength, 1)
				So(selected[0].Item.ID, ShouldEqual, "a")
			})
		})

		Convey("When candidates tie on value per dollar", func() {
			st := model.BudgetStatus{SessionCeiling: 5, SafelySpendable: 4.5}
			cands := []model.Candidate{
				candidate("far", 2.0, 1.0, 4),
				candidate("near", 2.0, 1.0, 1),
			}
			selected := o.SelectCandidates(cands, st, 0.7)

			Convey("Then the closer candidate should rank first", func() {
				So(selected[0].Item.ID, ShouldEqual, "near")
				So(selected[1].Item.ID, ShouldEqual, "far")
			})
		})

		Convey("When engagement is very low", func() {
			st := model.BudgetStatus{SessionCeiling: 5, SafelySpendable: 4.5}
			cands := []model.Candidate{
				candidate("a", 5.0, 0.1, 1),
				candidate("b", 4.0, 0.1, 2),
			}
			selected := o.SelectCandidates(cands, st, 0.1)

			Convey("Then at most one candidate should be admitted", func() {
				So(selected, ShouldHaveLength, 1)
			})
		})

		Convey("When nothing fits or nothing is offered", func() {
			broke := model.BudgetStatus{SessionCeiling: 5, SafelySpendable: 0}

			Convey("Then selection should be empty, never an error", func() {
				So(o.SelectCandidates(nil, healthyBudget(), 0.7), ShouldBeEmpty)
				So(o.SelectCandidates([]model.Candidate{candidate("a", 1, 1, 1)}, broke, 0.7), ShouldBeEmpty)
			})
		})

		Convey("When selecting from a shared slice", func() {
			st := model.BudgetStatus{SessionCeiling: 5, SafelySpendable: 4.5}
			cands := []model.Candidate{
				candidate("b", 1.0, 1.0, 2),
				candidate("a", 2.0, 1.0, 1),
			}
			_ = o.SelectCandidates(cands, st, 0.7)

			Convey("Then the input order should be untouched", func() {
				So(cands[0].Item.ID, ShouldEqual, "b")
				So(cands[1].Item.ID, ShouldEqual, "a")
			})
		})
	})
}
