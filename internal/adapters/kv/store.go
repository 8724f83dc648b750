// Package kv defines the persisted counter store interface and errors.
//
// The budget tracker keeps its daily and monthly spend counters here,
// keyed by calendar window strings. Implementations must provide an
// atomic increment so concurrent dispatch never loses spend (a plain
// read-then-write would race).
package kv

import "context"

// Store provides read/increment access to float counters.
type Store interface {
	// Get returns the counter value for key.
	// Returns ErrNotFound if the key has never been written.
	Get(ctx context.Context, key string) (float64, error)

	// IncrBy atomically adds delta to the counter for key, creating it
	// at zero if absent, and returns the new value.
	IncrBy(ctx context.Context, key string, delta float64) (float64, error)

	// Close releases underlying resources.
	Close() error
}
