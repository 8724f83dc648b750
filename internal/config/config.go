// Package config defines engine configuration structures and loading
// hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load() layers defaults, an optional YAML file, and env vars.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the ops HTTP listen address, e.g. ":9190".
	Addr string `koanf:"addr"`

	// Enabled toggles prefetching entirely.
	Enabled bool `koanf:"enabled"`

	// Debug enables per-pass decision logging.
	Debug bool `koanf:"debug"`

	// Lookahead bounds how many upcoming queue positions one pass
	// considers.
	Lookahead int `koanf:"lookahead"`

	// MinConfidence and MinScore are the base admission thresholds,
	// before budget tightening.
	MinConfidence float64 `koanf:"min_confidence"`
	MinScore      float64 `koanf:"min_score"`

	// MediaMinScore is the final score needed before the primary image
	// rides along with the detail fetch.
	MediaMinScore float64 `koanf:"media_min_score"`

	// Per-window spend ceilings in dollars. Zero disables a window.
	SessionBudget float64 `koanf:"session_budget"`
	DailyBudget   float64 `koanf:"daily_budget"`
	MonthlyBudget float64 `koanf:"monthly_budget"`

	// ReserveFraction of each ceiling is held back from speculative
	// spend; EmergencyFraction is the remaining-budget fraction below
	// which thresholds tighten sharply.
	ReserveFraction   float64 `koanf:"reserve_fraction"`
	EmergencyFraction float64 `koanf:"emergency_fraction"`

	// Flat per-call prices for the cost model.
	DetailCost float64 `koanf:"detail_cost"`
	MediaCost  float64 `koanf:"media_cost"`

	// MaxConcurrentRequests bounds parallel speculative fetches.
	MaxConcurrentRequests int `koanf:"max_concurrent_requests"`

	// KVPath locates the SQLite counter database; empty uses an
	// in-memory store (counters do not survive restarts).
	KVPath string `koanf:"kv_path"`

	// EventBufferSize bounds the in-memory event recorder.
	EventBufferSize int `koanf:"event_buffer_size"`

	// ScoreWeights overrides individual sub-score weights.
	ScoreWeights map[string]float64 `koanf:"score_weights"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9190",
		Enabled:               true,
		Debug:                 false,
		Lookahead:             5,
		MinConfidence:         0.5,
		MinScore:              55,
		MediaMinScore:         70,
		SessionBudget:         5.0,
		DailyBudget:           25.0,
		MonthlyBudget:         300.0,
		ReserveFraction:       0.10,
		EmergencyFraction:     0.05,
		DetailCost:            0.017,
		MediaCost:             0.007,
		MaxConcurrentRequests: 2,
		KVPath:                "",
		EventBufferSize:       1000,
		ScoreWeights:          nil,
	}
}
