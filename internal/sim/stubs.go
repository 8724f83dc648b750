package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/swipedine/prefetch/internal/domain/model"
)

// MemoryCache is a warm-asset cache stub shared by the fetcher and the
// engine.
type MemoryCache struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{keys: make(map[string]struct{})}
}

// Has reports whether key is warmed.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.keys[key]
	return ok
}

// Add marks key warmed.
func (c *MemoryCache) Add(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = struct{}{}
}

// StubFetcher simulates the places-API transport with configurable
// latency and failure rate, warming the cache on success.
type StubFetcher struct {
	mu          sync.Mutex
	rng         *rand.Rand
	cache       *MemoryCache
	latency     time.Duration
	failureRate float64
}

// NewStubFetcher creates a fetcher stub around cache.
func NewStubFetcher(cache *MemoryCache, latency time.Duration, failureRate float64, seed int64) *StubFetcher {
	if seed == 0 {
		seed = defaultSeed
	}
	return &StubFetcher{
		rng:         rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic seed for reproducible sessions
		cache:       cache,
		latency:     latency,
		failureRate: failureRate,
	}
}

// FetchDetail simulates a detail lookup.
func (f *StubFetcher) FetchDetail(ctx context.Context, itemID string) (model.Detail, error) {
	if err := f.simulate(ctx); err != nil {
		return model.Detail{}, err
	}
	f.cache.Add("detail:" + itemID)
	return model.Detail{
		ItemID:    itemID,
		FetchedAt: time.Now(),
	}, nil
}

// FetchMedia simulates a primary-photo fetch.
func (f *StubFetcher) FetchMedia(ctx context.Context, item model.Item) (string, error) {
	if err := f.simulate(ctx); err != nil {
		return "", err
	}
	f.cache.Add("media:" + item.ID)
	return "https://img.example.com/" + item.ID + ".jpg", nil
}

func (f *StubFetcher) simulate(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.latency):
	}
	f.mu.Lock()
	failed := f.rng.Float64() < f.failureRate
	f.mu.Unlock()
	if failed {
		return fmt.Errorf("upstream returned 503")
	}
	return nil
}

// StubObserver replays scripted behavior signals and tracks which
// cards were viewed.
type StubObserver struct {
	mu      sync.RWMutex
	viewed  map[string]struct{}
	swipes  int
	started time.Time
}

// NewStubObserver creates an observer with an empty view history.
func NewStubObserver() *StubObserver {
	return &StubObserver{
		viewed:  make(map[string]struct{}),
		started: time.Now(),
	}
}

// Signals returns the current synthetic behavior snapshot. Engagement
// warms up as the user swipes.
func (o *StubObserver) Signals(ctx context.Context) model.Signals {
	o.mu.RLock()
	defer o.mu.RUnlock()

	engagement := 0.3 + 0.02*float64(o.swipes)
	if engagement > 0.9 {
		engagement = 0.9
	}
	endingSoon := 0.0
	if o.swipes > 30 {
		endingSoon = 0.5
	}
	return model.Signals{
		Metrics: model.BehaviorMetrics{
			AvgViewSeconds:      4.5,
			SwipeRate:           8,
			DetailExpansionRate: 0.25,
			EngagementRate:      engagement,
			CardsSeen:           o.swipes,
		},
		Session: model.SessionContext{
			SessionAge:  time.Since(o.started),
			HourOfDay:   time.Now().Hour(),
			EndingSoonP: endingSoon,
		},
	}
}

// Viewed reports whether the user reached itemID.
func (o *StubObserver) Viewed(ctx context.Context, itemID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.viewed[itemID]
	return ok
}

// NoteSwipe records that the user viewed itemID.
func (o *StubObserver) NoteSwipe(itemID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.viewed[itemID] = struct{}{}
	o.swipes++
}
