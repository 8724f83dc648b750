package events_test

import (
	"context"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/swipedine/prefetch/internal/adapters/events"
	"github.com/swipedine/prefetch/internal/domain/model"
)

func TestRecorder(t *testing.T) {
	Convey("Given a fresh event recorder", t, func() {
		ctx := context.Background()
		r := events.NewRecorder()

		Convey("When emitting an event without id or timestamp", func() {
			r.Emit(ctx, model.Event{Stage: model.StageStarted, ItemID: "place-1"})
			got := r.Recent(1)

			Convey("Then both should be filled in", func() {
				So(got, ShouldHaveLength, 1)
				So(got[0].ID, ShouldNotBeEmpty)
				So(got[0].Timestamp.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When emitting a sequence of events", func() {
			for i := 0; i < 5; i++ {
				r.Emit(ctx, model.Event{
					Stage:  model.StageStarted,
					ItemID: fmt.Sprintf("place-%d", i),
				})
			}

			Convey("Then Recent should return newest first", func() {
				got := r.Recent(3)
				So(got, ShouldHaveLength, 3)
				So(got[0].ItemID, ShouldEqual, "place-4")
				So(got[1].ItemID, ShouldEqual, "place-3")
				So(got[2].ItemID, ShouldEqual, "place-2")
			})

			Convey("Then an oversized request should return everything", func() {
				So(r.Recent(100), ShouldHaveLength, 5)
				So(r.Len(), ShouldEqual, 5)
			})
		})

		Convey("When deriving stats from mixed outcomes", func() {
			r.Emit(ctx, model.Event{Stage: model.StageStarted, ItemID: "a"})
			r.Emit(ctx, model.Event{Stage: model.StageCompleted, ItemID: "a", Success: true})
			r.Emit(ctx, model.Event{Stage: model.StageStarted, ItemID: "b"})
			r.Emit(ctx, model.Event{Stage: model.StageCompleted, ItemID: "b", Success: false, Error: "503"})
			r.Emit(ctx, model.Event{Stage: model.StageUsed, ItemID: "a"})
			r.Emit(ctx, model.Event{Stage: model.StageWasted, ItemID: "c"})
			r.Emit(ctx, model.Event{Stage: model.StageUsed, ItemID: "d"})

			st := r.Stats()

			Convey("Then each stage should be counted", func() {
				So(st.Started, ShouldEqual, 2)
				So(st.Succeeded, ShouldEqual, 1)
				So(st.Failed, ShouldEqual, 1)
				So(st.Used, ShouldEqual, 2)
				So(st.Wasted, ShouldEqual, 1)
			})

			Convey("Then the hit rate should be used over used plus wasted", func() {
				So(st.HitRate, ShouldAlmostEqual, 2.0/3.0, 1e-9)
			})
		})

		Convey("When no outcomes have been recorded", func() {
			Convey("Then the hit rate should be zero, not NaN", func() {
				So(r.Stats().HitRate, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a recorder with a small capacity", t, func() {
		ctx := context.Background()
		r := events.NewRecorder(events.WithCapacity(3))

		Convey("When more events arrive than it retains", func() {
			for i := 0; i < 5; i++ {
				r.Emit(ctx, model.Event{
					Stage:  model.StageStarted,
					ItemID: fmt.Sprintf("place-%d", i),
				})
			}

			Convey("Then the oldest should be dropped", func() {
				So(r.Len(), ShouldEqual, 3)
				got := r.Recent(3)
				So(got[2].ItemID, ShouldEqual, "place-2")
			})

			Convey("Then stats should still count every emission", func() {
				So(r.Stats().Started, ShouldEqual, 5)
			})
		})
	})
}
