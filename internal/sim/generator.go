// Package sim drives a synthetic swipe session through the prefetch
// engine against stub collaborators, for load exercise and the demo
// binary.
package sim

import (
	"fmt"
	"math/rand"

	"github.com/swipedine/prefetch/internal/domain/model"
)

// Deterministic generation constants.
const (
	defaultSeed      = 42
	defaultQueueSize = 40
)

var cuisines = []string{
	"ramen", "sushi", "tacos", "bbq", "thai", "pizza",
	"brunch", "vegan", "korean", "indian", "burgers", "pho",
}

var namePrefixes = []string{
	"Golden", "Lucky", "Blue", "Iron", "Little", "Big",
	"Smoky", "Green", "Midnight", "Sunny",
}

var nameSuffixes = []string{
	"Spoon", "Dragon", "Garden", "Kitchen", "Corner",
	"House", "Table", "Grill", "Bowl", "Cart",
}

// Generator produces deterministic restaurant card queues.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator with a fixed seed for reproducible
// runs.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = defaultSeed
	}
	return &Generator{
		rng: rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic seed for reproducible sessions
	}
}

// Queue generates n restaurant cards.
func (g *Generator) Queue(n int) []model.Item {
	if n <= 0 {
		n = defaultQueueSize
	}
	items := make([]model.Item, n)
	for i := range items {
		cat := cuisines[g.rng.Intn(len(cuisines))]
		items[i] = model.Item{
			ID:          fmt.Sprintf("place-%04d", i),
			Name:        g.name(),
			Categories:  []string{cat},
			Rating:      3.0 + g.rng.Float64()*2.0,
			RatingCount: 10 + g.rng.Intn(2000),
			PriceLevel:  1 + g.rng.Intn(3),
			DistanceKm:  0.2 + g.rng.Float64()*5,
		}
	}
	return items
}

// Preferences generates a plausible taste profile over the cuisine set.
func (g *Generator) Preferences() model.Preferences {
	liked := []string{
		cuisines[g.rng.Intn(len(cuisines))],
		cuisines[g.rng.Intn(len(cuisines))],
	}
	history := make(map[string]float64, len(cuisines)/2)
	for _, c := range cuisines[:len(cuisines)/2] {
		history[c] = g.rng.Float64()
	}
	return model.Preferences{
		Categories: liked,
		MinRating:  3.5,
		History:    history,
	}
}

func (g *Generator) name() string {
	return namePrefixes[g.rng.Intn(len(namePrefixes))] + " " +
		nameSuffixes[g.rng.Intn(len(nameSuffixes))]
}
