package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"firestige.xyz/erfreader/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
erfreader:
  decoder:
    include_udp: true
    filter: "tcp port 80"
  log:
    level: "debug"
    format: "json"
  metrics:
    enabled: true
    listen: "127.0.0.1:9100"
    path: "/metrics"
  sinks:
    - type: "pcap"
      options:
        path: "/tmp/out.pcap"
        snaplen: 1500
    - type: "console"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if !cfg.Decoder.IncludeUDP {
		t.Error("Expected include_udp true")
	}
	if cfg.Decoder.Filter != "tcp port 80" {
		t.Errorf("Expected filter 'tcp port 80', got %q", cfg.Decoder.Filter)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Expected log format json, got %s", cfg.Log.Format)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != "127.0.0.1:9100" {
		t.Errorf("Unexpected metrics config %+v", cfg.Metrics)
	}
	if len(cfg.Sinks) != 2 {
		t.Fatalf("Expected 2 sinks, got %d", len(cfg.Sinks))
	}
	if cfg.Sinks[0].Type != "pcap" || cfg.Sinks[0].Options["path"] != "/tmp/out.pcap" {
		t.Errorf("Unexpected pcap sink %+v", cfg.Sinks[0])
	}
	if cfg.Sinks[1].Type != "console" {
		t.Errorf("Expected console sink, got %s", cfg.Sinks[1].Type)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	if cfg.Decoder.IncludeUDP {
		t.Error("Expected include_udp to default to false")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Expected default log format text, got %s", cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Rotation.MaxSizeMB != 100 {
		t.Errorf("Expected default rotation 100MB, got %d", cfg.Log.Outputs.File.Rotation.MaxSizeMB)
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Type != "console" {
		t.Errorf("Expected a single console sink, got %+v", cfg.Sinks)
	}
}

func TestLoadMinimalFileKeepsDefaults(t *testing.T) {
	configPath := writeConfig(t, `
erfreader:
  decoder:
    include_udp: true
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Expected defaults for unset keys, got log=%+v metrics=%+v", cfg.Log, cfg.Metrics)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"log level", `
erfreader:
  log:
    level: "verbose"
`},
		{"log format", `
erfreader:
  log:
    format: "xml"
`},
		{"sink type", `
erfreader:
  sinks:
    - type: "ftp"
`},
		{"metrics path", `
erfreader:
  metrics:
    enabled: true
    path: "metrics"
`},
		{"file output without path", `
erfreader:
  log:
    outputs:
      file:
        enabled: true
        path: ""
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !errors.Is(err, core.ErrConfigInvalid) {
				t.Errorf("Expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestLoadEnvOverride(t *testing.T) {
	configPath := writeConfig(t, `
erfreader:
  log:
    level: "info"
`)

	t.Setenv("ERFREADER_LOG_LEVEL", "debug")
	t.Setenv("ERFREADER_DECODER_INCLUDE_UDP", "true")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug from env var, got %s", cfg.Log.Level)
	}
	if !cfg.Decoder.IncludeUDP {
		t.Error("Expected include_udp true from env var")
	}
}

func TestDump(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	cfg.Decoder.Filter = "udp"

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "erfreader:") {
		t.Errorf("Expected erfreader root key, got:\n%s", data)
	}

	var parsed map[string]map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Dump produced invalid YAML: %v", err)
	}
	decoder, ok := parsed["erfreader"]["decoder"].(map[string]any)
	if !ok {
		t.Fatalf("Expected decoder section, got %v", parsed["erfreader"])
	}
	if decoder["filter"] != "udp" {
		t.Errorf("Expected filter udp, got %v", decoder["filter"])
	}
	if decoder["include_udp"] != false {
		t.Errorf("Expected include_udp false, got %v", decoder["include_udp"])
	}
}

func TestDumpRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	cfg.Log.Level = "warn"
	cfg.Decoder.IncludeUDP = true

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}

	loaded, err := Load(writeConfig(t, string(data)))
	if err != nil {
		t.Fatalf("Failed to reload dumped config: %v", err)
	}
	if loaded.Log.Level != "warn" || !loaded.Decoder.IncludeUDP {
		t.Errorf("Expected dumped values to survive, got log=%s udp=%v", loaded.Log.Level, loaded.Decoder.IncludeUDP)
	}
}
