package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaults_Validate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, Validate(cfg))
	require.Equal(t, "debug", cfg.Log.Level)
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, "file", cfg.Tracing.Exporter)
	require.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce)
	require.Equal(t, 8, cfg.UI.LogLines)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"sample rate high", func(c *Config) { c.Tracing.SampleRate = 1.5 }, "sample_rate must be between 0.0 and 1.0"},
		{"sample rate negative", func(c *Config) { c.Tracing.SampleRate = -0.1 }, "sample_rate must be between 0.0 and 1.0"},
		{"unknown exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }, "tracing.exporter"},
		{"file exporter without path", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.FilePath = ""
		}, "tracing.file_path"},
		{"otlp without endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
			c.Tracing.OTLPEndpoint = ""
		}, "tracing.otlp_endpoint"},
		{"metrics without addr", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Addr = ""
		}, "metrics.addr"},
		{"store without path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -time.Second }, "watch.debounce"},
		{"negative leaf delay", func(c *Config) { c.Engine.LeafDelay = -time.Second }, "engine.leaf_delay"},
		{"negative log lines", func(c *Config) { c.UI.LogLines = -1 }, "ui.log_lines"},
		{"negative slow threshold", func(c *Config) { c.UI.SlowDispatchThreshold = -time.Millisecond }, "ui.slow_dispatch_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateTracing_DisabledSkipsPathChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.OTLPEndpoint = ""
	require.NoError(t, ValidateTracing(cfg.Tracing))
}

func TestValidateStore_DisabledAllowsEmptyPath(t *testing.T) {
	require.NoError(t, ValidateStore(StoreConfig{Enabled: false}))
}

func TestMarshal_CommentsSections(t *testing.T) {
	data, err := Marshal(Defaults())
	require.NoError(t, err)

	out := string(data)
	require.Contains(t, out, "# jobmon configuration")
	require.Contains(t, out, "# Reload the procedure when its file changes")
	require.Contains(t, out, "log_lines: 8")
	require.Contains(t, out, "sample_rate: 1")
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got struct {
		Metrics MetricsConfig `yaml:"metrics"`
		UI      struct {
			LogLines int `yaml:"log_lines"`
		} `yaml:"ui"`
	}
	require.NoError(t, yaml.Unmarshal(data, &got))
	require.Equal(t, "127.0.0.1:9464", got.Metrics.Addr)
	require.Equal(t, 8, got.UI.LogLines)
}
