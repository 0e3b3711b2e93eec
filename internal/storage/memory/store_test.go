package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/krellin/obsvault/pkg/models"
)

var testTime = time.Date(2025, 7, 6, 12, 0, 0, 0, time.UTC)

func TestObjectStorePutIdempotent(t *testing.T) {
	store := NewObjectStore()
	ctx := context.Background()

	ref1, err := store.Put(ctx, "SAT-123/img.bin", []byte("payload"))
	if err != nil {
		t.Fatalf("first put: %v", err)
	}

	ref2, err := store.Put(ctx, "SAT-123/img.bin", []byte("payload"))
	if err != nil {
		t.Fatalf("identical re-put should succeed: %v", err)
	}
	if ref1 != ref2 {
		t.Errorf("references differ: %+v vs %+v", ref1, ref2)
	}
}

func TestObjectStorePutConflict(t *testing.T) {
	store := NewObjectStore()
	ctx := context.Background()

	if _, err := store.Put(ctx, "k", []byte("original")); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, err := store.Put(ctx, "k", []byte("different"))
	if !errors.Is(err, models.ErrWriteConflict) {
		t.Fatalf("expected ErrWriteConflict, got %v", err)
	}

	// Stored content must be unchanged.
	data, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "original" {
		t.Errorf("content changed after conflict: %q", data)
	}
}

func TestObjectStoreGetNotFound(t *testing.T) {
	store := NewObjectStore()

	_, err := store.Get(context.Background(), "missing")
	if !models.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = store.SignedReadURL(context.Background(), models.BlobReference{Key: "missing"}, time.Minute)
	if !models.IsNotFound(err) {
		t.Fatalf("expected not found for signed url, got %v", err)
	}
}

func TestMetadataStoreUpsertInPlace(t *testing.T) {
	store := NewMetadataStore()
	ctx := context.Background()

	record := &models.MetadataRecord{
		EntityID:  "SAT-123",
		EventTime: testTime,
		Lat:       59.3,
		Lon:       18.1,
		Status:    models.StatusMetadataStored,
	}
	if err := store.Upsert(ctx, record); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	record.Status = models.StatusComplete
	record.BlobRef = &models.BlobReference{Key: "SAT-123/img.bin", SHA256: "abc", Size: 7}
	if err := store.Upsert(ctx, record); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := store.Find(ctx, "SAT-123", testTime)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != models.StatusComplete {
		t.Errorf("status = %v, want COMPLETE", got.Status)
	}
	if got.BlobRef == nil || got.BlobRef.Key != "SAT-123/img.bin" {
		t.Errorf("blob ref not updated: %+v", got.BlobRef)
	}
}

func TestMetadataStoreValidation(t *testing.T) {
	store := NewMetadataStore()

	bad := &models.MetadataRecord{EntityID: "SAT-123", EventTime: testTime, Lat: 95}
	err := store.Upsert(context.Background(), bad)
	if !errors.Is(err, models.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}

func TestMetadataStoreFindNotFound(t *testing.T) {
	store := NewMetadataStore()

	_, err := store.Find(context.Background(), "SAT-999", testTime)
	if !models.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTelemetryStoreLatestWins(t *testing.T) {
	store := NewTelemetryStore()
	ctx := context.Background()

	first := &models.TelemetryDocument{
		EntityID:  "SAT-123",
		EventTime: testTime,
		Fields:    map[string]any{"battery_level": 80.0},
	}
	second := &models.TelemetryDocument{
		EntityID:  "SAT-123",
		EventTime: testTime,
		Fields:    map[string]any{"battery_level": 79.5},
	}

	if err := store.Insert(ctx, first); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := store.Insert(ctx, second); err != nil {
		t.Fatalf("duplicate insert should be allowed: %v", err)
	}

	got, err := store.Find(ctx, "SAT-123", testTime)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Fields["battery_level"] != 79.5 {
		t.Errorf("expected most recent insert, got %v", got.Fields["battery_level"])
	}
}

func TestTelemetryStoreFindNotFound(t *testing.T) {
	store := NewTelemetryStore()

	_, err := store.Find(context.Background(), "SAT-123", testTime)
	if !models.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
