package config

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if GMTRADE_CONFIG is set
//  3. env (prefix GMTRADE_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("GMTRADE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Map env keys like GMTRADE_AUDIT_QUEUE_SIZE -> audit_queue_size,
	// preserving underscores to match the koanf tags on the struct.
	envProvider := env.Provider("GMTRADE_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "gmtrade_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	if cfg.EvaluatorTimeoutMS <= 0 {
		return nil, errors.New("evaluator_timeout_ms must be positive")
	}
	if cfg.StalenessThresholdHours <= 0 {
		return nil, errors.New("staleness_threshold_hours must be positive")
	}
	return &cfg, nil
}
