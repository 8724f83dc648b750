package sim_test

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/swipedine/prefetch/internal/adapters/events"
	"github.com/swipedine/prefetch/internal/app"
	"github.com/swipedine/prefetch/internal/domain/budget"
	"github.com/swipedine/prefetch/internal/domain/model"
	"github.com/swipedine/prefetch/internal/sim"
)

func TestGenerator(t *testing.T) {
	Convey("Given two generators with the same seed", t, func() {
		a := sim.NewGenerator(7)
		b := sim.NewGenerator(7)

		Convey("When generating queues and preferences", func() {
			Convey("Then the outputs should be identical", func() {
				So(a.Queue(20), ShouldResemble, b.Queue(20))
				So(a.Preferences(), ShouldResemble, b.Preferences())
			})
		})
	})

	Convey("Given a generated queue", t, func() {
		items := sim.NewGenerator(7).Queue(15)

		Convey("Then every card should be well formed", func() {
			So(items, ShouldHaveLength, 15)
			for _, it := range items {
				So(it.ID, ShouldNotBeEmpty)
				So(it.Rating, ShouldBeGreaterThanOrEqualTo, 3.0)
				So(it.Rating, ShouldBeLessThanOrEqualTo, 5.0)
				So(it.Categories, ShouldHaveLength, 1)
			}
		})
	})
}

func TestStubObserver(t *testing.T) {
	Convey("Given a stub observer", t, func() {
		ctx := context.Background()
		o := sim.NewStubObserver()

		Convey("When the user swipes", func() {
			o.NoteSwipe("place-0001")
			o.NoteSwipe("place-0002")

			Convey("Then the view history should reflect it", func() {
				So(o.Viewed(ctx, "place-0001"), ShouldBeTrue)
				So(o.Viewed(ctx, "place-9999"), ShouldBeFalse)
			})

			Convey("Then the behavior snapshot should track progress", func() {
				So(o.Signals(ctx).Metrics.CardsSeen, ShouldEqual, 2)
			})
		})
	})
}

func TestRunner(t *testing.T) {
	Convey("Given an engine wired to stub collaborators", t, func() {
		ctx := context.Background()
		gen := sim.NewGenerator(7)
		cache := sim.NewMemoryCache()
		fetcher := sim.NewStubFetcher(cache, 0, 0, 7)
		observer := sim.NewStubObserver()
		sink := events.NewRecorder()

		e := app.New(
			app.WithFetcher(fetcher),
			app.WithCache(cache),
			app.WithObserver(observer),
			app.WithSink(sink),
			app.WithTracker(budget.New(budget.WithCeilings(5, 25, 300))),
			app.WithThresholds(model.Thresholds{
				MinConfidence: 0.3,
				MinScore:      40,
				MediaMinScore: 70,
				MaxLookahead:  3,
			}),
		)
		So(e.Start(ctx), ShouldBeNil)
		defer e.Stop()

		runner := sim.NewRunner(e, observer, gen.Queue(12), gen.Preferences(),
			sim.WithSwipeInterval(time.Millisecond),
		)

		Convey("When a session runs to completion", func() {
			stats, err := runner.Run(ctx)

			Convey("Then the engine should have prefetched along the way", func() {
				So(err, ShouldBeNil)
				So(stats.Started, ShouldBeGreaterThan, 0)
				So(stats.Failed, ShouldEqual, 0)
			})

			Convey("Then the session-end books should balance", func() {
				So(stats.Used+stats.Wasted, ShouldBeLessThanOrEqualTo, stats.Started)
				So(e.BudgetStatus(ctx).SessionSpent, ShouldBeGreaterThan, 0)
			})
		})
	})
}
