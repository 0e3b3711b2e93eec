package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/krellin/obsvault/internal/coordinator"
	"github.com/krellin/obsvault/internal/stitcher"
	"github.com/krellin/obsvault/internal/storage"
	"github.com/krellin/obsvault/internal/storage/fsblob"
	"github.com/krellin/obsvault/internal/storage/memory"
	"github.com/krellin/obsvault/pkg/models"
)

var testTime = time.Date(2025, 7, 6, 12, 0, 0, 0, time.UTC)

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	blobs, err := fsblob.New(fsblob.Config{
		Root:          t.TempDir(),
		SigningSecret: "test-secret",
	}, nil)
	if err != nil {
		t.Fatalf("creating blob store: %v", err)
	}

	stores := &storage.Stores{
		Blobs:     blobs,
		Metadata:  memory.NewMetadataStore(),
		Telemetry: memory.NewTelemetryStore(),
	}

	coord := coordinator.New(stores, coordinator.Config{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}, nil)
	stitch := stitcher.New(stores, stitcher.DefaultConfig(), nil)

	return NewServer("127.0.0.1:0", coord, stitch, stores.Blobs, blobs.Signer(), nil)
}

func ingestBody(entityID string, blob []byte) []byte {
	body, _ := json.Marshal(IngestRequest{
		Blob: blob,
		Metadata: IngestMetadata{
			EntityID:  entityID,
			EventTime: testTime,
			Lat:       59.3,
			Lon:       18.1,
		},
		Telemetry: map[string]any{"battery_level": 80.0},
	})
	return body
}

func TestIngestAndRetrieveRoundTrip(t *testing.T) {
	server := setupTestServer(t)

	// Ingest.
	req := httptest.NewRequest(http.MethodPost, "/v1/observations", bytes.NewReader(ingestBody("SAT-123", []byte("image"))))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body = %s", rec.Code, rec.Body)
	}
	var result models.IngestionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.Status != models.StatusComplete {
		t.Errorf("result status = %v", result.Status)
	}

	// Retrieve.
	path := fmt.Sprintf("/v1/observations/SAT-123/%s", testTime.Format(time.RFC3339))
	req = httptest.NewRequest(http.MethodGet, path, nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("retrieve status = %d, body = %s", rec.Code, rec.Body)
	}
	var view models.UnifiedView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decoding view: %v", err)
	}
	if view.Metadata == nil || view.Metadata.EntityID != "SAT-123" {
		t.Errorf("view metadata = %+v", view.Metadata)
	}
	if view.TelemetryAbsent || view.Telemetry == nil {
		t.Error("telemetry missing from view")
	}
	if view.SignedURL == "" {
		t.Fatal("signed url missing from view")
	}

	// Follow the signed URL.
	req = httptest.NewRequest(http.MethodGet, view.SignedURL, nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("blob download status = %d, body = %s", rec.Code, rec.Body)
	}
	if rec.Body.String() != "image" {
		t.Errorf("blob bytes = %q", rec.Body.String())
	}
}

func TestIngestRejectsBadBody(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/observations", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestIngestRejectsInvalidMetadata(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/observations", bytes.NewReader(ingestBody("", []byte("image"))))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestIngestConflictOnDivergentBlob(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/observations", bytes.NewReader(ingestBody("SAT-123", []byte("image-a"))))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first ingest failed: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/observations", bytes.NewReader(ingestBody("SAT-123", []byte("image-b"))))
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var result models.IngestionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.Status != models.StatusFailedAtBlob {
		t.Errorf("result status = %v", result.Status)
	}
}

func TestRetrieveNotFound(t *testing.T) {
	server := setupTestServer(t)

	path := fmt.Sprintf("/v1/observations/SAT-999/%s", testTime.Format(time.RFC3339))
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRetrieveBadTimestamp(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/observations/SAT-123/yesterday", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestBlobDownloadRejectsTamperedSignature(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/observations", bytes.NewReader(ingestBody("SAT-123", []byte("image"))))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest failed: %d", rec.Code)
	}

	var result models.IngestionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}

	url := fmt.Sprintf("/v1/blobs/%s?exp=%d&sig=bogus", result.BlobRef.Key, time.Now().Add(time.Hour).Unix())
	req = httptest.NewRequest(http.MethodGet, url, nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestHealth(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("health status = %s", health.Status)
	}
}
