package kv_test

import (
	"context"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/swipedine/prefetch/internal/adapters/kv"
)

func TestMemoryStore(t *testing.T) {
	Convey("Given a new in-memory counter store", t, func() {
		ctx := context.Background()
		store := kv.NewMemoryStore()

		Convey("When reading a missing key", func() {
			_, err := store.Get(ctx, "spend:daily:2025-06-15")

			Convey("Then it should report not found", func() {
				So(err, ShouldWrap, kv.ErrNotFound)
			})
		})

		Convey("When incrementing a counter", func() {
			v, err := store.IncrBy(ctx, "k", 1.5)
			So(err, ShouldBeNil)
			So(v, ShouldAlmostEqual, 1.5, 1e-9)

			v, err = store.IncrBy(ctx, "k", 0.5)
			So(err, ShouldBeNil)

			Convey("Then the increments should accumulate", func() {
				So(v, ShouldAlmostEqual, 2.0, 1e-9)

				got, err := store.Get(ctx, "k")
				So(err, ShouldBeNil)
				So(got, ShouldAlmostEqual, 2.0, 1e-9)
			})
		})

		Convey("When incrementing concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = store.IncrBy(ctx, "hot", 1)
				}()
			}
			wg.Wait()

			Convey("Then no increment should be lost", func() {
				v, err := store.Get(ctx, "hot")
				So(err, ShouldBeNil)
				So(v, ShouldEqual, 100)
			})
		})

		Convey("When the store is closed", func() {
			So(store.Close(), ShouldBeNil)

			Convey("Then all operations should report unavailable", func() {
				_, err := store.Get(ctx, "k")
				So(err, ShouldWrap, kv.ErrUnavailable)

				_, err = store.IncrBy(ctx, "k", 1)
				So(err, ShouldWrap, kv.ErrUnavailable)
			})
		})
	})
}
