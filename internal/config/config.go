// Package config handles erfreader configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/erfreader/internal/core"
)

// Config represents the top-level configuration.
// Maps to the `erfreader:` root key in YAML.
type Config struct {
	Decoder DecoderConfig `mapstructure:"decoder"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Sinks   []SinkConfig  `mapstructure:"sinks"`
}

// ─── Decoder ───

// DecoderConfig configures record decoding.
type DecoderConfig struct {
	// IncludeUDP decodes UDP datagrams; when false they are skipped.
	IncludeUDP bool `mapstructure:"include_udp"`
	// Filter is a tcpdump-style expression applied to every Ethernet frame.
	Filter string `mapstructure:"filter"`
}

// ─── Sinks ───

// SinkConfig selects a packet sink and its options.
type SinkConfig struct {
	Type    string         `mapstructure:"type"` // console | pcap | kafka
	Options map[string]any `mapstructure:"options"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string           `mapstructure:"level"`  // debug / info / warn / error
	Format     string           `mapstructure:"format"` // json / text
	Pattern    string           `mapstructure:"pattern"`
	TimeFormat string           `mapstructure:"time_format"`
	Outputs    LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `erfreader: ...`.
type configRoot struct {
	ErfReader Config `mapstructure:"erfreader"`
}

// Load loads configuration from file. An empty path yields the defaults,
// still subject to environment overrides.
// The YAML file uses `erfreader:` as root key; env vars use the ERFREADER_
// prefix (e.g., ERFREADER_DECODER_INCLUDE_UDP).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `erfreader.` key prefix maps to `ERFREADER_` through the replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.ErfReader

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// Only reachable through a broken ERFREADER_* environment.
		cfg = &Config{}
		setStaticDefaults(cfg)
	}
	return cfg
}

// setDefaults sets default values for configuration.
// All keys use the "erfreader." prefix to match the YAML root wrapper.
// Every key needs a default so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Decoder defaults
	v.SetDefault("erfreader.decoder.include_udp", false)
	v.SetDefault("erfreader.decoder.filter", "")

	// Log defaults
	v.SetDefault("erfreader.log.level", "info")
	v.SetDefault("erfreader.log.format", "text")
	v.SetDefault("erfreader.log.pattern", defaultPattern)
	v.SetDefault("erfreader.log.time_format", defaultTimeFormat)
	v.SetDefault("erfreader.log.outputs.file.enabled", false)
	v.SetDefault("erfreader.log.outputs.file.path", "erfreader.log")
	v.SetDefault("erfreader.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("erfreader.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("erfreader.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("erfreader.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("erfreader.metrics.enabled", false)
	v.SetDefault("erfreader.metrics.listen", ":9091")
	v.SetDefault("erfreader.metrics.path", "/metrics")
}

const (
	defaultPattern    = "%time [%level] %msg %field%n"
	defaultTimeFormat = "2006-01-02 15:04:05.000"
)

func setStaticDefaults(cfg *Config) {
	cfg.Log = LogConfig{
		Level:      "info",
		Format:     "text",
		Pattern:    defaultPattern,
		TimeFormat: defaultTimeFormat,
	}
	cfg.Metrics = MetricsConfig{Listen: ":9091", Path: "/metrics"}
	cfg.Sinks = []SinkConfig{{Type: "console"}}
}

var validSinkTypes = map[string]bool{"console": true, "pcap": true, "kafka": true}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: invalid log format: %s (must be json/text)", core.ErrConfigInvalid, cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return fmt.Errorf("%w: log.outputs.file.path is required when file output is enabled", core.ErrConfigInvalid)
	}

	// ── Metrics validation ──
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", core.ErrConfigInvalid)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("%w: metrics.path must start with '/': %s", core.ErrConfigInvalid, cfg.Metrics.Path)
		}
	}

	// ── Sinks ──
	if len(cfg.Sinks) == 0 {
		cfg.Sinks = []SinkConfig{{Type: "console"}}
	}
	for i, s := range cfg.Sinks {
		if !validSinkTypes[s.Type] {
			return fmt.Errorf("%w: sinks[%d]: unsupported type %q (must be console/pcap/kafka)", core.ErrConfigInvalid, i, s.Type)
		}
	}

	return nil
}

// Dump renders cfg as YAML under the `erfreader:` root key.
func Dump(cfg *Config) ([]byte, error) {
	var out map[string]any
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  &out,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create config encoder: %w", err)
	}
	if err := dec.Decode(configRoot{ErfReader: *cfg}); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
