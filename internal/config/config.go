// Package config provides configuration types, defaults and validation for jobmon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oactree/jobmon/internal/log"
	"github.com/oactree/jobmon/internal/tracing"
)

// AppName names the config and data directories.
const AppName = "jobmon"

// Config holds all jobmon configuration.
type Config struct {
	Log     LogConfig      `mapstructure:"log" yaml:"log"`
	Tracing tracing.Config `mapstructure:"tracing" yaml:"tracing"`
	Metrics MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Store   StoreConfig    `mapstructure:"store" yaml:"store"`
	Watch   WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Engine  EngineConfig   `mapstructure:"engine" yaml:"engine"`
	UI      UIConfig       `mapstructure:"ui" yaml:"ui"`
}

// LogConfig configures the debug log file.
type LogConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`   // default: debug.log in the working directory
	Level string `mapstructure:"level" yaml:"level"` // debug, info, warn or error
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// StoreConfig configures the job history database.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// WatchConfig configures reloading the procedure when its file changes.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// EngineConfig configures the local engine.
type EngineConfig struct {
	// LeafDelay slows interactive runs down so progress is visible.
	LeafDelay time.Duration `mapstructure:"leaf_delay" yaml:"leaf_delay"`
}

// UIConfig configures the monitor.
type UIConfig struct {
	LogLines              int           `mapstructure:"log_lines" yaml:"log_lines"`
	SlowDispatchThreshold time.Duration `mapstructure:"slow_dispatch_threshold" yaml:"slow_dispatch_threshold"`
}

// Dir returns ~/.config/jobmon, or "" if the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", AppName)
}

// DefaultTracesFilePath returns ~/.config/jobmon/traces/traces.jsonl.
func DefaultTracesFilePath() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "traces", "traces.jsonl")
}

// DefaultStorePath returns ~/.config/jobmon/history.db.
func DefaultStorePath() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "history.db")
}

// Defaults returns a Config with default values.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = DefaultTracesFilePath()
	return Config{
		Log: LogConfig{
			Path:  "debug.log",
			Level: "debug",
		},
		Tracing: tc,
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    DefaultStorePath(),
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 300 * time.Millisecond,
		},
		Engine: EngineConfig{
			LeafDelay: 150 * time.Millisecond,
		},
		UI: UIConfig{
			LogLines:              8,
			SlowDispatchThreshold: 50 * time.Millisecond,
		},
	}
}

// Validate checks every section.
func Validate(cfg Config) error {
	for _, check := range []func(Config) error{
		func(c Config) error { return ValidateLog(c.Log) },
		func(c Config) error { return ValidateTracing(c.Tracing) },
		func(c Config) error { return ValidateMetrics(c.Metrics) },
		func(c Config) error { return ValidateStore(c.Store) },
		func(c Config) error { return ValidateWatch(c.Watch) },
		func(c Config) error { return ValidateEngine(c.Engine) },
		func(c Config) error { return ValidateUI(c.UI) },
	} {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

// ValidateLog checks the log level.
func ValidateLog(l LogConfig) error {
	if l.Level == "" {
		return nil
	}
	if _, err := log.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// ValidateTracing checks exporter settings. Path requirements apply only when enabled.
func ValidateTracing(t tracing.Config) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}
	switch t.Exporter {
	case "", "none", "file", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
	}
	if !t.Enabled {
		return nil
	}
	if t.Exporter == "file" && t.FilePath == "" {
		return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
	}
	if t.Exporter == "otlp" && t.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}
	return nil
}

// ValidateMetrics requires an address when metrics are enabled.
func ValidateMetrics(m MetricsConfig) error {
	if m.Enabled && m.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	return nil
}

// ValidateStore requires a path when the store is enabled.
func ValidateStore(s StoreConfig) error {
	if s.Enabled && s.Path == "" {
		return fmt.Errorf("store.path is required when the store is enabled")
	}
	return nil
}

// ValidateWatch rejects negative debounce values.
func ValidateWatch(w WatchConfig) error {
	if w.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %v", w.Debounce)
	}
	return nil
}

// ValidateEngine rejects negative delays.
func ValidateEngine(e EngineConfig) error {
	if e.LeafDelay < 0 {
		return fmt.Errorf("engine.leaf_delay must not be negative, got %v", e.LeafDelay)
	}
	return nil
}

// ValidateUI checks monitor settings.
func ValidateUI(u UIConfig) error {
	if u.LogLines < 0 {
		return fmt.Errorf("ui.log_lines must not be negative, got %d", u.LogLines)
	}
	if u.SlowDispatchThreshold < 0 {
		return fmt.Errorf("ui.slow_dispatch_threshold must not be negative, got %v", u.SlowDispatchThreshold)
	}
	return nil
}
