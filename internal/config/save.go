package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oactree/jobmon/internal/log"
)

var sectionComments = map[string]string{
	"log":     "Debug log written when --debug or JOBMON_DEBUG is set",
	"tracing": "OpenTelemetry spans per dispatched event (exporter: none, file, stdout, otlp)",
	"metrics": "Prometheus /metrics and /healthz endpoint",
	"store":   "Job history database used by `jobmon history`",
	"watch":   "Reload the procedure when its file changes",
	"engine":  "Local engine pacing",
	"ui":      "Monitor settings",
}

// Marshal renders cfg as YAML with a comment above each section.
func Marshal(cfg Config) ([]byte, error) {
	var body yaml.Node
	if err := body.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	for i := 0; i+1 < len(body.Content); i += 2 {
		if c, ok := sectionComments[body.Content[i].Value]; ok {
			body.Content[i].HeadComment = c
		}
	}
	doc := yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: "jobmon configuration",
		Content:     []*yaml.Node{&body},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteDefaultConfig writes the default config to configPath, creating the
// parent directory if needed.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "writing default config", "path", configPath)

	data, err := Marshal(Defaults())
	if err != nil {
		return err
	}
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
