package app

import "errors"

// Sentinel kinds for engine errors.
var (
	ErrNotStarted = errors.New("engine not started")
	ErrNoFetcher  = errors.New("no fetcher configured")
)
