package kv

import "errors"

// Sentinel kinds for counter store errors.
var (
	ErrNotFound    = errors.New("counter not found")
	ErrUnavailable = errors.New("counter store unavailable")
)
