package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env
// vars. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if PREFETCH_CONFIG is set
//  3. env (prefix PREFETCH_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("PREFETCH_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: PREFETCH_LOOKAHEAD, PREFETCH_SESSION_BUDGET, ...
	// Map env keys like PREFETCH_SESSION_BUDGET -> session_budget.
	envProvider := env.Provider("PREFETCH_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "prefetch_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the engine cannot run with.
func (c *Config) validate() error {
	if c.Lookahead <= 0 {
		return fmt.Errorf("%w: lookahead must be positive", ErrInvalidConfig)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence must be in [0,1]", ErrInvalidConfig)
	}
	if c.MinScore < 0 || c.MinScore > 100 {
		return fmt.Errorf("%w: min_score must be in [0,100]", ErrInvalidConfig)
	}
	if c.ReserveFraction < 0 || c.ReserveFraction >= 1 {
		return fmt.Errorf("%w: reserve_fraction must be in [0,1)", ErrInvalidConfig)
	}
	if c.EmergencyFraction < 0 || c.EmergencyFraction >= 1 {
		return fmt.Errorf("%w: emergency_fraction must be in [0,1)", ErrInvalidConfig)
	}
	if c.SessionBudget < 0 || c.DailyBudget < 0 || c.MonthlyBudget < 0 {
		return fmt.Errorf("%w: budget ceilings must not be negative", ErrInvalidConfig)
	}
	if c.DetailCost <= 0 {
		return fmt.Errorf("%w: detail_cost must be positive", ErrInvalidConfig)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("%w: max_concurrent_requests must be positive", ErrInvalidConfig)
	}
	return nil
}
