// Package config loads service configuration from a YAML file with
// environment-variable overrides for deployment-specific settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that can be unmarshaled from YAML strings
// like "15m" or plain integers (seconds).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var i int
		if err := unmarshal(&i); err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the root service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Ingest  IngestConfig  `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// BlobBaseURL prefixes signed blob URLs handed to clients.
	BlobBaseURL string `yaml:"blob_base_url"`
	// SignedURLTTL bounds how long a blob read URL stays valid.
	SignedURLTTL Duration `yaml:"signed_url_ttl"`
}

// StorageConfig selects and configures the three backends.
type StorageConfig struct {
	Blob      BlobConfig      `yaml:"blob"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// BlobConfig configures the object store backend.
type BlobConfig struct {
	Backend       string `yaml:"backend"` // "fs" or "memory"
	Root          string `yaml:"root"`
	SigningSecret string `yaml:"signing_secret"`
}

// MetadataConfig configures the metadata store backend.
type MetadataConfig struct {
	Backend string `yaml:"backend"` // "sqlite" or "memory"
	Path    string `yaml:"path"`
}

// TelemetryConfig configures the telemetry store backend.
type TelemetryConfig struct {
	Backend  string `yaml:"backend"` // "clickhouse" or "memory"
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// IngestConfig holds the coordinator retry policy.
type IngestConfig struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         "0.0.0.0:8080",
			BlobBaseURL:  "http://localhost:8080",
			SignedURLTTL: Duration(15 * time.Minute),
		},
		Storage: StorageConfig{
			Blob:      BlobConfig{Backend: "fs", Root: "data/blobs"},
			Metadata:  MetadataConfig{Backend: "sqlite", Path: "data/metadata.db"},
			Telemetry: TelemetryConfig{Backend: "clickhouse", Addr: "localhost:9000", Database: "default", Username: "default"},
		},
		Ingest: IngestConfig{
			MaxAttempts:    3,
			InitialBackoff: Duration(100 * time.Millisecond),
			MaxBackoff:     Duration(5 * time.Second),
		},
	}
}

// Load reads configuration from path, layered over Default. A missing file
// is not an error; the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides config fields from environment variables. Only
// deployment-facing settings are overridable.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("OBSVAULT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("OBSVAULT_BLOB_BASE_URL"); v != "" {
		c.Server.BlobBaseURL = v
	}
	if v := os.Getenv("OBSVAULT_BLOB_SECRET"); v != "" {
		c.Storage.Blob.SigningSecret = v
	}
	if v := os.Getenv("OBSVAULT_CLICKHOUSE_ADDR"); v != "" {
		c.Storage.Telemetry.Addr = v
	}
	if v := os.Getenv("OBSVAULT_SQLITE_PATH"); v != "" {
		c.Storage.Metadata.Path = v
	}
}
