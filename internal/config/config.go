// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Locale    LocaleConfig    `yaml:"locale"`
	LogSink   LogSinkConfig   `yaml:"logsink"`
	BlobStore BlobStoreConfig `yaml:"blobstore"`
}

// ServerConfig holds admin HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

// LocaleConfig holds localization worker settings. Capacity is the
// bounded request-queue size; a full queue blocks callers.
type LocaleConfig struct {
	Capacity      int    `yaml:"capacity"`
	Dir           string `yaml:"dir"`            // directory of <locale>.json files
	DefaultLocale string `yaml:"default_locale"` // final fallback in the inheritance chain
	CacheSize     int    `yaml:"cache_size"`     // resolved-lookup cache entries
}

// LogSinkConfig holds buffered log sink settings.
type LogSinkConfig struct {
	Capacity   int           `yaml:"capacity"`
	FlushEvery time.Duration `yaml:"flush_every"`
	Endpoints  []LogEndpoint `yaml:"endpoints"`
}

// LogEndpoint configures a single log sink destination.
type LogEndpoint struct {
	Type string `yaml:"type"` // "terminal", "file", "http"
	Path string `yaml:"path"` // file endpoint target
	URL  string `yaml:"url"`  // http endpoint target
	Auth *OAuth `yaml:"auth"` // optional client-credentials auth for http
}

// OAuth configures OAuth2 client-credentials authentication.
type OAuth struct {
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// BlobStoreConfig holds encrypted blob storage settings.
type BlobStoreConfig struct {
	Capacity   int    `yaml:"capacity"`
	DSN        string `yaml:"dsn"`        // file path or ":memory:"
	Encryption bool   `yaml:"encryption"` // encrypt values at rest
	KeyFile    string `yaml:"key_file"`   // PEM file holding root key + descriptor
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file, expanding environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when a setting is absent from
// the file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: true},
		},
		Locale: LocaleConfig{
			Capacity:      64,
			Dir:           "locales",
			DefaultLocale: "en-US",
			CacheSize:     10_000,
		},
		LogSink: LogSinkConfig{
			Capacity:   1000,
			FlushEvery: 5 * time.Second,
			Endpoints:  []LogEndpoint{{Type: "terminal"}},
		},
		BlobStore: BlobStoreConfig{
			Capacity: 64,
			DSN:      "golem.db",
			KeyFile:  "golem-keys.pem",
		},
	}
}
