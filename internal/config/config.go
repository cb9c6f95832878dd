// Package config defines service configuration and loading.
//
// Precedence (low -> high): defaults, YAML file pointed at by
// GMTRADE_CONFIG, environment variables with the GMTRADE_ prefix.
package config

import "runtime"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// EvaluatorTimeoutMS bounds a single deterministic evaluator call.
	EvaluatorTimeoutMS int `koanf:"evaluator_timeout_ms"`

	// AuditTimeoutMS bounds a single plausibility assessment call.
	AuditTimeoutMS int `koanf:"audit_timeout_ms"`

	// AuditQueueSize bounds the in-memory audit job queue.
	AuditQueueSize int `koanf:"audit_queue_size"`

	// AuditWorkerCount sets the number of audit workers.
	AuditWorkerCount int `koanf:"audit_worker_count"`

	// StalenessThresholdHours marks roster data older than this as stale.
	StalenessThresholdHours int `koanf:"staleness_threshold_hours"`

	// FreshnessRefreshSpec is a cron spec for background roster refresh.
	// Empty disables the background refresher.
	FreshnessRefreshSpec string `koanf:"freshness_refresh_spec"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// LedgerPath is the SQLite file for the activity ledger.
	// Empty disables persistence (noop ledger).
	LedgerPath string `koanf:"ledger_path"`

	// FallbackGrade is the neutral grade returned on degraded read paths
	// when the evaluator is unavailable.
	FallbackGrade float64 `koanf:"fallback_grade"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":9080",
		EvaluatorTimeoutMS:      2_000,
		AuditTimeoutMS:          5_000,
		AuditQueueSize:          10_000,
		AuditWorkerCount:        runtime.NumCPU() * 2,
		StalenessThresholdHours: 24,
		FreshnessRefreshSpec:    "",
		MaxLeaderboardLimit:     100,
		LedgerPath:              "",
		FallbackGrade:           50,
	}
}
