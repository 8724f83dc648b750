package budget_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/swipedine/prefetch/internal/adapters/kv"
	"github.com/swipedine/prefetch/internal/domain/budget"
)

func TestTrackerStatus(t *testing.T) {
	Convey("Given a tracker with default ceilings and a fixed clock", t, func() {
		ctx := context.Background()
		now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
		tr := budget.New(budget.WithClock(func() time.Time { return now }))

		Convey("When nothing has been spent", func() {
			st := tr.Status(ctx)

			Convey("Then remaining should equal the ceilings", func() {
				So(st.SessionRemaining, ShouldAlmostEqual, 5.0, 1e-9)
				So(st.DailyRemaining, ShouldAlmostEqual, 25.0, 1e-9)
				So(st.MonthlyRemaining, ShouldAlmostEqual, 300.0, 1e-9)
			})

			Convey("Then safely spendable should be the tightest window minus reserve", func() {
				So(st.SafelySpendable, ShouldAlmostEqual, 4.5, 1e-9)
			})

			Convey("Then no budget flag should be set", func() {
				So(st.IsLowBudget, ShouldBeFalse)
				So(st.IsEmergencyMode, ShouldBeFalse)
				So(st.BudgetExceeded, ShouldBeFalse)
			})
		})

		Convey("When status is read twice without new spend", func() {
			tr.RecordSpend(ctx, 1.25)
			a := tr.Status(ctx)
			b := tr.Status(ctx)

			Convey("Then both snapshots should be equal", func() {
				So(a, ShouldResemble, b)
			})
		})

		Convey("When spend is recorded", func() {
			tr.RecordSpend(ctx, 2.0)
			st := tr.Status(ctx)

			Convey("Then all windows should be charged", func() {
				So(st.SessionSpent, ShouldAlmostEqual, 2.0, 1e-9)
				So(st.DailySpent, ShouldAlmostEqual, 2.0, 1e-9)
				So(st.MonthlySpent, ShouldAlmostEqual, 2.0, 1e-9)
			})
		})

		Convey("When invalid amounts are recorded", func() {
			tr.RecordSpend(ctx, -1)
			tr.RecordSpend(ctx, 0)
			tr.RecordSpend(ctx, math.NaN())
			st := tr.Status(ctx)

			Convey("Then nothing should be charged", func() {
				So(st.SessionSpent, ShouldEqual, 0)
				So(st.DailySpent, ShouldEqual, 0)
			})
		})
	})
}

func TestTrackerRollover(t *testing.T) {
	Convey("Given a tracker on a shared persisted store", t, func() {
		ctx := context.Background()
		now := time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC)
		store := kv.NewMemoryStore()
		tr := budget.New(
			budget.WithStore(store),
			budget.WithClock(func() time.Time { return now }),
		)

		tr.RecordSpend(ctx, 3.0)

		Convey("When the clock crosses midnight into a new month", func() {
			now = time.Date(2025, 7, 1, 0, 5, 0, 0, time.UTC)
			st := tr.Status(ctx)

			Convey("Then the daily and monthly counters should read fresh", func() {
				So(st.DailySpent, ShouldEqual, 0)
				So(st.MonthlySpent, ShouldEqual, 0)
			})

			Convey("Then session spend should carry across, untouched by rollover", func() {
				So(st.SessionSpent, ShouldAlmostEqual, 3.0, 1e-9)
			})
		})

		Convey("When a new day starts inside the same month", func() {
			now = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
			tr2 := budget.New(
				budget.WithStore(store),
				budget.WithClock(func() time.Time { return now }),
			)
			tr2.RecordSpend(ctx, 1.0)
			now = time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)
			st := tr2.Status(ctx)

			Convey("Then the daily counter resets but the monthly one accumulates", func() {
				So(st.DailySpent, ShouldEqual, 0)
				So(st.MonthlySpent, ShouldAlmostEqual, 4.0, 1e-9)
			})
		})
	})
}

func TestTrackerFlags(t *testing.T) {
	Convey("Given a tracker with tight ceilings", t, func() {
		ctx := context.Background()
		now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
		newTracker := func() *budget.Tracker {
			return budget.New(
				budget.WithCeilings(5, 10, 0),
				budget.WithClock(func() time.Time { return now }),
			)
		}

		Convey("When daily remaining drops under a quarter of its ceiling", func() {
			tr := newTracker()
			tr.RecordSpend(ctx, 8.0)
			st := tr.Status(ctx)

			Convey("Then the low-budget flag should trip", func() {
				So(st.IsLowBudget, ShouldBeTrue)
				So(st.BudgetExceeded, ShouldBeFalse)
			})
		})

		Convey("When session remaining drops under the emergency fraction", func() {
			tr := newTracker()
			tr.RecordSpend(ctx, 4.9)
			st := tr.Status(ctx)

			Convey("Then emergency mode should trip", func() {
				So(st.IsEmergencyMode, ShouldBeTrue)
			})
		})

		Convey("When the daily ceiling is fully consumed", func() {
			tr := newTracker()
			tr.RecordSpend(ctx, 10.0)
			st := tr.Status(ctx)

			Convey("Then the budget should read exceeded with nothing spendable", func() {
				So(st.BudgetExceeded, ShouldBeTrue)
				So(st.SafelySpendable, ShouldEqual, 0)
			})
		})

		Convey("When the monthly window is disabled", func() {
			tr := newTracker()
			st := tr.Status(ctx)

			Convey("Then it should not participate in any flag", func() {
				So(st.MonthlyCeiling, ShouldEqual, 0)
				So(st.BudgetExceeded, ShouldBeFalse)
			})
		})
	})
}

func TestTrackerDegradation(t *testing.T) {
	Convey("Given a tracker whose counter store has gone away", t, func() {
		ctx := context.Background()
		store := kv.NewMemoryStore()
		So(store.Close(), ShouldBeNil)
		tr := budget.New(budget.WithStore(store))

		Convey("When spend is recorded", func() {
			tr.RecordSpend(ctx, 1.5)
			st := tr.Status(ctx)

			Convey("Then session accounting should still work", func() {
				So(st.SessionSpent, ShouldAlmostEqual, 1.5, 1e-9)
			})

			Convey("Then persisted windows should degrade to zero, not fail", func() {
				So(st.DailySpent, ShouldEqual, 0)
				So(st.MonthlySpent, ShouldEqual, 0)
			})
		})
	})
}

func TestTrackerConcurrency(t *testing.T) {
	Convey("Given concurrent spend recording", t, func() {
		ctx := context.Background()
		tr := budget.New(budget.WithCeilings(100, 100, 100))

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tr.RecordSpend(ctx, 0.01)
			}()
		}
		wg.Wait()

		Convey("Then no spend should be lost", func() {
			st := tr.Status(ctx)
			So(st.SessionSpent, ShouldAlmostEqual, 0.5, 1e-6)
			So(st.DailySpent, ShouldAlmostEqual, 0.5, 1e-6)
		})
	})
}
