package config

import (
	"errors"
)

// Sentinel errors for config loading; callers match with errors.Is.
var (
	// ErrInvalidConfig marks a configuration that fails validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrLoadConfig wraps failures in the file or env providers.
	ErrLoadConfig = errors.New("load config failed")
)
