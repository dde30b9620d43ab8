// Package config defines all configuration structures for the KappaForge
// simulator.  No I/O or parsing logic lives here — only plain data types and
// validation; loading sits in loader.go.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// SimulationConfig holds the run parameters of the stochastic scheduler.
type SimulationConfig struct {
	// Model is the name of the built-in model to run.
	Model string `mapstructure:"model"`

	// Seed initialises the injectable PRNG; a run is reproducible from it.
	Seed int64 `mapstructure:"seed"`

	// MaxEvents stops the run after this many events (0 = unbounded).
	MaxEvents int64 `mapstructure:"max_events"`

	// MaxTime stops the run once the simulated clock passes it (0 = unbounded).
	MaxTime float64 `mapstructure:"max_time"`

	// NullWarnThreshold is how many consecutive null events trigger a warning
	// log (0 disables the check).
	NullWarnThreshold int `mapstructure:"null_warn_threshold"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level       string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format      string   `mapstructure:"format"` // "json" | "console"
	OutputPaths []string `mapstructure:"output_paths"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Addr            string `mapstructure:"addr"`
	Namespace       string `mapstructure:"namespace"`
	EnableGoMetrics bool   `mapstructure:"enable_go_metrics"`
}

// APIConfig holds the read-only status API parameters.
type APIConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Mode         string        `mapstructure:"mode"` // gin mode: "debug" | "release" | "test"
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object.
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	API        APIConfig        `mapstructure:"api"`
}

// Validate checks cross-field consistency.  It assumes ApplyDefaults has run.
func (c *Config) Validate() error {
	if c.Simulation.Model == "" {
		return fmt.Errorf("config: simulation.model must be set")
	}
	if c.Simulation.MaxEvents < 0 {
		return fmt.Errorf("config: simulation.max_events must be non-negative")
	}
	if c.Simulation.MaxTime < 0 {
		return fmt.Errorf("config: simulation.max_time must be non-negative")
	}
	if c.Simulation.NullWarnThreshold < 0 {
		return fmt.Errorf("config: simulation.null_warn_threshold must be non-negative")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("config: metrics.addr must be set when metrics are enabled")
	}
	if c.API.Enabled && c.API.Addr == "" {
		return fmt.Errorf("config: api.addr must be set when the status API is enabled")
	}
	return nil
}
