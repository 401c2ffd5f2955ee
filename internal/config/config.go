// Package config loads the enforcer configuration from an optional TOML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/yairfalse/billing-enforcer/internal/filter"
)

// Environment variables read at process start.
const (
	EnvConfigFile     = "ENFORCER_CONFIG"
	EnvTopicARN       = "SNS_TOPIC_ARN"
	EnvExemptPrefixes = "EXEMPT_TABLE_PREFIXES"
	EnvEventBusName   = "EVENT_BUS_NAME"
	EnvEventSource    = "EVENTBRIDGE_SOURCE"
	EnvLogLevel       = "LOG_LEVEL"
	EnvOTELEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTELInsecure   = "OTEL_EXPORTER_OTLP_INSECURE"
	EnvOTELService    = "OTEL_SERVICE_NAME"
)

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultEventBusName = "default"
	DefaultEventSource  = "sandbox.dynamodb-billing-enforcer"
	DefaultServiceName  = "dynamodb-billing-enforcer"
	DefaultLogLevel     = "info"
)

// Config is the root configuration structure.
type Config struct {
	Enforcement EnforcementConfig `toml:"enforcement"`
	Events      EventsConfig      `toml:"events"`
	Notify      NotifyConfig      `toml:"notify"`
	OTEL        OTELConfig        `toml:"otel"`
	Log         LogConfig         `toml:"log"`
}

// EnforcementConfig holds the policy settings.
type EnforcementConfig struct {
	ExemptPrefixes []string `toml:"exempt_prefixes"`
}

// EventsConfig holds the EventBridge broadcast settings.
type EventsConfig struct {
	BusName string `toml:"bus_name"`
	Source  string `toml:"source"`
}

// NotifyConfig holds the SNS notification settings. An empty TopicARN disables notifications.
type NotifyConfig struct {
	TopicARN string `toml:"topic_arn"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint"`
	Insecure    bool          `toml:"insecure"`
	ServiceName string        `toml:"service_name"`
	Traces      TracesConfig  `toml:"traces"`
	Metrics     MetricsConfig `toml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled"`
	SampleRate float64 `toml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads the optional TOML file at path, then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load with an explicit environment lookup.
func LoadWith(path string, lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	return cfg, nil
}

func applyEnv(cfg *Config, lookup LookupFunc) error {
	if v, ok := lookup(EnvTopicARN); ok {
		cfg.Notify.TopicARN = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvExemptPrefixes); ok {
		cfg.Enforcement.ExemptPrefixes = filter.ParsePrefixes(v)
	}
	if v, ok := lookup(EnvEventBusName); ok && v != "" {
		cfg.Events.BusName = v
	}
	if v, ok := lookup(EnvEventSource); ok && v != "" {
		cfg.Events.Source = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := lookup(EnvOTELService); ok && v != "" {
		cfg.OTEL.ServiceName = v
	}
	if v, ok := lookup(EnvOTELEndpoint); ok && v != "" {
		cfg.OTEL.Endpoint = v
		cfg.OTEL.Traces.Enabled = true
		cfg.OTEL.Metrics.Enabled = true
	}
	if v, ok := lookup(EnvOTELInsecure); ok && v != "" {
		insecure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %s %q: %w", EnvOTELInsecure, v, err)
		}
		cfg.OTEL.Insecure = insecure
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Events.BusName == "" {
		cfg.Events.BusName = DefaultEventBusName
	}
	if cfg.Events.Source == "" {
		cfg.Events.Source = DefaultEventSource
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = DefaultServiceName
	}
	if cfg.OTEL.Traces.Enabled && cfg.OTEL.Traces.SampleRate == 0 {
		cfg.OTEL.Traces.SampleRate = 1.0
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

// NotificationsEnabled reports whether an SNS topic is configured.
func (c *Config) NotificationsEnabled() bool {
	return c.Notify.TopicARN != ""
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.Notify.TopicARN != "" && !strings.HasPrefix(c.Notify.TopicARN, "arn:") {
		return fmt.Errorf("notify: topic_arn must be an ARN (got %q)", c.Notify.TopicARN)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: invalid level %q", c.Log.Level)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	return nil
}
