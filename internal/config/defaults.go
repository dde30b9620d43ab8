package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultModel             = "heterodimerization"
	DefaultSeed              = int64(42)
	DefaultMaxEvents         = int64(100000)
	DefaultNullWarnThreshold = 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsAddr      = ":9090"
	DefaultMetricsNamespace = "kappaforge"

	DefaultAPIAddr = ":8080"
	DefaultAPIMode = "release"

	DefaultAPIReadTimeout  = 5 * time.Second
	DefaultAPIWriteTimeout = 10 * time.Second
)

// ApplyDefaults fills every zero-value field in cfg with the simulator
// default.  Fields already set by the caller are left unchanged so explicit
// configuration always wins.  Call it after unmarshalling and before
// Validate().
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Simulation ────────────────────────────────────────────────────────────
	if cfg.Simulation.Model == "" {
		cfg.Simulation.Model = DefaultModel
	}
	if cfg.Simulation.Seed == 0 {
		cfg.Simulation.Seed = DefaultSeed
	}
	if cfg.Simulation.MaxEvents == 0 {
		cfg.Simulation.MaxEvents = DefaultMaxEvents
	}
	if cfg.Simulation.NullWarnThreshold == 0 {
		cfg.Simulation.NullWarnThreshold = DefaultNullWarnThreshold
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stdout"}
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── API ───────────────────────────────────────────────────────────────────
	if cfg.API.Addr == "" {
		cfg.API.Addr = DefaultAPIAddr
	}
	if cfg.API.Mode == "" {
		cfg.API.Mode = DefaultAPIMode
	}
	if cfg.API.ReadTimeout == 0 {
		cfg.API.ReadTimeout = DefaultAPIReadTimeout
	}
	if cfg.API.WriteTimeout == 0 {
		cfg.API.WriteTimeout = DefaultAPIWriteTimeout
	}
}
