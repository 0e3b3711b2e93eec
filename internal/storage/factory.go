package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/krellin/obsvault/internal/storage/clickhouse"
	"github.com/krellin/obsvault/internal/storage/fsblob"
	"github.com/krellin/obsvault/internal/storage/memory"
	"github.com/krellin/obsvault/internal/storage/sqlite"
)

// Config selects and configures the backend for each of the three stores.
type Config struct {
	// BlobBackend selects the object store: "fs" or "memory".
	BlobBackend string
	// MetadataBackend selects the metadata store: "sqlite" or "memory".
	MetadataBackend string
	// TelemetryBackend selects the telemetry store: "clickhouse" or "memory".
	TelemetryBackend string

	// fs blob options
	BlobRoot      string
	SigningSecret string
	BlobBaseURL   string

	// sqlite options
	SQLitePath string

	// clickhouse options
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string
	ClickHouseTimeout  time.Duration
}

// DefaultConfig returns default storage configuration.
func DefaultConfig() Config {
	return Config{
		BlobBackend:        "fs",
		MetadataBackend:    "sqlite",
		TelemetryBackend:   "clickhouse",
		BlobRoot:           "data/blobs",
		BlobBaseURL:        "http://localhost:8080",
		SQLitePath:         "data/metadata.db",
		ClickHouseAddr:     "localhost:9000",
		ClickHouseDatabase: "default",
		ClickHouseUsername: "default",
	}
}

// Stores bundles the three constructed capabilities.
type Stores struct {
	Blobs     ObjectStore
	Metadata  MetadataStore
	Telemetry TelemetryStore
}

// Close closes all three stores, returning the first error encountered.
func (s *Stores) Close() error {
	var firstErr error
	for _, c := range []interface{ Close() error }{s.Blobs, s.Metadata, s.Telemetry} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewStores creates the three store implementations from configuration.
func NewStores(ctx context.Context, cfg Config, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}

	stores := &Stores{}

	switch cfg.BlobBackend {
	case "memory":
		stores.Blobs = memory.NewObjectStore()
	case "fs":
		store, err := fsblob.New(fsblob.Config{
			Root:          cfg.BlobRoot,
			SigningSecret: cfg.SigningSecret,
			BaseURL:       cfg.BlobBaseURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating fs blob store: %w", err)
		}
		stores.Blobs = store
	default:
		return nil, fmt.Errorf("unknown blob backend: %s (supported: fs, memory)", cfg.BlobBackend)
	}

	switch cfg.MetadataBackend {
	case "memory":
		stores.Metadata = memory.NewMetadataStore()
	case "sqlite":
		store, err := sqlite.New(sqlite.Config{DBPath: cfg.SQLitePath})
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("creating SQLite metadata store: %w", err)
		}
		stores.Metadata = store
	default:
		stores.Close()
		return nil, fmt.Errorf("unknown metadata backend: %s (supported: sqlite, memory)", cfg.MetadataBackend)
	}

	switch cfg.TelemetryBackend {
	case "memory":
		stores.Telemetry = memory.NewTelemetryStore()
	case "clickhouse":
		chCfg := clickhouse.DefaultConfig()
		chCfg.Addr = cfg.ClickHouseAddr
		chCfg.Database = cfg.ClickHouseDatabase
		chCfg.Username = cfg.ClickHouseUsername
		chCfg.Password = cfg.ClickHousePassword
		if cfg.ClickHouseTimeout > 0 {
			chCfg.DialTimeout = cfg.ClickHouseTimeout
		}

		store, err := clickhouse.NewStore(ctx, chCfg, logger)
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("creating ClickHouse telemetry store: %w", err)
		}
		stores.Telemetry = store
	default:
		stores.Close()
		return nil, fmt.Errorf("unknown telemetry backend: %s (supported: clickhouse, memory)", cfg.TelemetryBackend)
	}

	logger.Info("storage backends ready",
		"blob", cfg.BlobBackend,
		"metadata", cfg.MetadataBackend,
		"telemetry", cfg.TelemetryBackend,
	)
	return stores, nil
}
