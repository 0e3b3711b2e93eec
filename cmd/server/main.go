// Package main is the entry point for the obsvault ingestion service.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/krellin/obsvault/internal/api"
	"github.com/krellin/obsvault/internal/config"
	"github.com/krellin/obsvault/internal/coordinator"
	"github.com/krellin/obsvault/internal/metrics"
	"github.com/krellin/obsvault/internal/stitcher"
	"github.com/krellin/obsvault/internal/storage"
	"github.com/krellin/obsvault/internal/storage/fsblob"
)

func main() {
	log.Println("Starting obsvault ingestion service...")

	cfg, err := config.Load(getEnv("OBSVAULT_CONFIG", "config/obsvault.yaml"))
	if err != nil {
		log.Fatalf("Loading config: %v", err)
	}
	cfg.ApplyEnv()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	metrics.Register()
	api.RegisterMetrics()

	storageCfg := storage.Config{
		BlobBackend:        cfg.Storage.Blob.Backend,
		MetadataBackend:    cfg.Storage.Metadata.Backend,
		TelemetryBackend:   cfg.Storage.Telemetry.Backend,
		BlobRoot:           cfg.Storage.Blob.Root,
		SigningSecret:      cfg.Storage.Blob.SigningSecret,
		BlobBaseURL:        cfg.Server.BlobBaseURL,
		SQLitePath:         cfg.Storage.Metadata.Path,
		ClickHouseAddr:     cfg.Storage.Telemetry.Addr,
		ClickHouseDatabase: cfg.Storage.Telemetry.Database,
		ClickHouseUsername: cfg.Storage.Telemetry.Username,
		ClickHousePassword: cfg.Storage.Telemetry.Password,
	}

	stores, err := storage.NewStores(context.Background(), storageCfg, logger)
	if err != nil {
		log.Fatalf("Creating storage backends: %v", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Printf("Error closing storage: %v", err)
		}
	}()

	coord := coordinator.New(stores, coordinator.Config{
		MaxAttempts:    cfg.Ingest.MaxAttempts,
		InitialBackoff: cfg.Ingest.InitialBackoff.Duration(),
		MaxBackoff:     cfg.Ingest.MaxBackoff.Duration(),
	}, logger)

	stitch := stitcher.New(stores, stitcher.Config{
		SignedURLTTL: cfg.Server.SignedURLTTL.Duration(),
	}, logger)

	// The download route needs the signer only when the fs backend is in
	// play; other backends produce URLs this process doesn't serve.
	var signer *fsblob.Signer
	if fsStore, ok := stores.Blobs.(*fsblob.Store); ok {
		signer = fsStore.Signer()
	}

	apiServer := api.NewServer(cfg.Server.Addr, coord, stitch, stores.Blobs, signer, logger)

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Starting REST API server on %s", cfg.Server.Addr)
		if err := apiServer.Start(); err != nil {
			errChan <- err
		}
	}()

	log.Println("API endpoints:")
	log.Printf("  - Ingest:   POST http://%s/v1/observations", cfg.Server.Addr)
	log.Printf("  - Retrieve: GET  http://%s/v1/observations/{entity}/{time}", cfg.Server.Addr)
	log.Printf("  - Health:   GET  http://%s/health", cfg.Server.Addr)
	log.Printf("  - Metrics:  GET  http://%s/metrics", cfg.Server.Addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v, shutting down...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}
	log.Println("Shutdown complete")
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
