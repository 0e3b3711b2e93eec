package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:8080" {
		t.Errorf("addr = %s", cfg.Server.Addr)
	}
	if cfg.Ingest.MaxAttempts != 3 {
		t.Errorf("max attempts = %d", cfg.Ingest.MaxAttempts)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obsvault.yaml")
	content := `
server:
  addr: "127.0.0.1:9999"
  signed_url_ttl: 1h
storage:
  blob:
    backend: memory
  telemetry:
    backend: memory
ingest:
  max_attempts: 7
  initial_backoff: 250ms
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("addr = %s", cfg.Server.Addr)
	}
	if cfg.Server.SignedURLTTL.Duration() != time.Hour {
		t.Errorf("ttl = %v", cfg.Server.SignedURLTTL)
	}
	if cfg.Storage.Blob.Backend != "memory" || cfg.Storage.Telemetry.Backend != "memory" {
		t.Errorf("backends = %s/%s", cfg.Storage.Blob.Backend, cfg.Storage.Telemetry.Backend)
	}
	// Untouched sections keep their defaults.
	if cfg.Storage.Metadata.Backend != "sqlite" {
		t.Errorf("metadata backend = %s", cfg.Storage.Metadata.Backend)
	}
	if cfg.Ingest.MaxAttempts != 7 || cfg.Ingest.InitialBackoff.Duration() != 250*time.Millisecond {
		t.Errorf("ingest = %+v", cfg.Ingest)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not a mapping"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("OBSVAULT_ADDR", "10.0.0.1:8081")
	t.Setenv("OBSVAULT_CLICKHOUSE_ADDR", "ch:9000")
	t.Setenv("OBSVAULT_BLOB_SECRET", "s3cret")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Server.Addr != "10.0.0.1:8081" {
		t.Errorf("addr = %s", cfg.Server.Addr)
	}
	if cfg.Storage.Telemetry.Addr != "ch:9000" {
		t.Errorf("clickhouse addr = %s", cfg.Storage.Telemetry.Addr)
	}
	if cfg.Storage.Blob.SigningSecret != "s3cret" {
		t.Errorf("secret = %s", cfg.Storage.Blob.SigningSecret)
	}
}
