// Package config loads Client and ambient settings from a JSON file with
// environment-variable overrides. It is used only by the CLI; the library's
// Client constructor never reads files or the environment itself.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// ClientConfig holds the settings needed to construct a Client.
type ClientConfig struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	TimeoutMS int    `json:"timeout_ms"`
}

// RetryConfig controls the optional bounded backoff on outgoing retries.
// Disabled by default, matching the documented "push back on tail, no
// backoff, no cap" policy.
type RetryConfig struct {
	BackoffEnabled bool `json:"backoff_enabled"`
	BaseMS         int  `json:"base_ms"`
	MaxMS          int  `json:"max_ms"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `json:"enabled"`
	Exporter    string  `json:"exporter"`     // otlp-http, stdout
	Endpoint    string  `json:"endpoint"`     // localhost:4318
	ServiceName string  `json:"service_name"` // smq
	SampleRate  float64 `json:"sample_rate"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled          bool      `json:"enabled"`
	Namespace        string    `json:"namespace"`
	HistogramBuckets []float64 `json:"histogram_buckets"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
}

// ObservabilityConfig bundles all observability-related settings.
type ObservabilityConfig struct {
	Tracing TracingConfig `json:"tracing"`
	Metrics MetricsConfig `json:"metrics"`
	Logging LoggingConfig `json:"logging"`
}

// Config is the full configuration the CLI loads before constructing a Client.
type Config struct {
	Client        ClientConfig        `json:"client"`
	Retry         RetryConfig         `json:"retry"`
	Observability ObservabilityConfig `json:"observability"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			Host:      "http://localhost",
			Port:      8080,
			TimeoutMS: 2000,
		},
		Retry: RetryConfig{
			BackoffEnabled: false,
			BaseMS:         100,
			MaxMS:          5000,
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:     false,
				Exporter:    "otlp-http",
				Endpoint:    "localhost:4318",
				ServiceName: "smq",
				SampleRate:  1.0,
			},
			Metrics: MetricsConfig{
				Enabled:          true,
				Namespace:        "smq",
				HistogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// LoadFromFile loads configuration from a JSON file, starting from
// DefaultConfig so that fields absent from the file keep their default.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv applies SMQ_* environment variable overrides to cfg.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("SMQ_NAME"); v != "" {
		cfg.Client.Name = v
	}
	if v := os.Getenv("SMQ_HOST"); v != "" {
		cfg.Client.Host = v
	}
	if v := os.Getenv("SMQ_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Client.Port = n
		}
	}
	if v := os.Getenv("SMQ_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Client.TimeoutMS = n
		}
	}
	if v := os.Getenv("SMQ_RETRY_BACKOFF_ENABLED"); v != "" {
		cfg.Retry.BackoffEnabled = parseBool(v)
	}
	if v := os.Getenv("SMQ_RETRY_BASE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.BaseMS = n
		}
	}
	if v := os.Getenv("SMQ_RETRY_MAX_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxMS = n
		}
	}
	if v := os.Getenv("SMQ_TRACING_ENABLED"); v != "" {
		cfg.Observability.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("SMQ_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	if v := os.Getenv("SMQ_TRACING_EXPORTER"); v != "" {
		cfg.Observability.Tracing.Exporter = v
	}
	if v := os.Getenv("SMQ_METRICS_ENABLED"); v != "" {
		cfg.Observability.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("SMQ_METRICS_NAMESPACE"); v != "" {
		cfg.Observability.Metrics.Namespace = v
	}
	if v := os.Getenv("SMQ_LOG_LEVEL"); v != "" {
		cfg.Observability.Logging.Level = v
	}
	if v := os.Getenv("SMQ_LOG_FORMAT"); v != "" {
		cfg.Observability.Logging.Format = v
	}
}

// Timeout returns the client timeout as a time.Duration.
func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}
