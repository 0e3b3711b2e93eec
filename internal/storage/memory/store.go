// Package memory provides in-memory implementations of the three store
// capabilities. Used as the default backend in tests and for local runs
// without external services.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/krellin/obsvault/pkg/models"
)

// ObjectStore is an in-memory blob store keyed by object key.
type ObjectStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewObjectStore creates an empty in-memory object store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{blobs: make(map[string][]byte)}
}

// Put stores data under key. Re-putting identical bytes is idempotent;
// different bytes for an existing key return models.ErrWriteConflict.
func (s *ObjectStore) Put(ctx context.Context, key string, data []byte) (models.BlobReference, error) {
	if key == "" {
		return models.BlobReference{}, fmt.Errorf("empty blob key: %w", models.ErrInvalidInput)
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.blobs[key]; ok {
		existingSum := sha256.Sum256(existing)
		if existingSum != sum {
			return models.BlobReference{}, fmt.Errorf("key %s holds different content: %w", key, models.ErrWriteConflict)
		}
		return models.BlobReference{Key: key, SHA256: digest, Size: int64(len(existing))}, nil
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[key] = stored

	return models.BlobReference{Key: key, SHA256: digest, Size: int64(len(data))}, nil
}

// Get returns the stored bytes for key.
func (s *ObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", key, models.ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// SignedReadURL returns a fake memory:// URL carrying the expiry. Good enough
// for tests; real signing lives in the fsblob backend.
func (s *ObjectStore) SignedReadURL(ctx context.Context, ref models.BlobReference, ttl time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.blobs[ref.Key]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("blob %s: %w", ref.Key, models.ErrNotFound)
	}
	exp := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("memory://%s?exp=%d", ref.Key, exp), nil
}

// Close is a no-op.
func (s *ObjectStore) Close() error { return nil }

// MetadataStore is an in-memory relational-anchor store with
// upsert-in-place semantics on (entity_id, event_time).
type MetadataStore struct {
	mu      sync.RWMutex
	records map[models.IngestionKey]*models.MetadataRecord
}

// NewMetadataStore creates an empty in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{records: make(map[models.IngestionKey]*models.MetadataRecord)}
}

// Upsert stores or replaces the record for its key.
func (s *MetadataStore) Upsert(ctx context.Context, record *models.MetadataRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	cp := *record
	cp.EventTime = record.Key().EventTime
	cp.UpdatedAt = time.Now().UTC()
	if record.BlobRef != nil {
		ref := *record.BlobRef
		cp.BlobRef = &ref
	}

	s.mu.Lock()
	s.records[record.Key()] = &cp
	s.mu.Unlock()
	return nil
}

// Find returns the record for (entityID, eventTime).
func (s *MetadataStore) Find(ctx context.Context, entityID string, eventTime time.Time) (*models.MetadataRecord, error) {
	key := models.NewIngestionKey(entityID, eventTime)

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("metadata %s: %w", key, models.ErrNotFound)
	}
	cp := *record
	if record.BlobRef != nil {
		ref := *record.BlobRef
		cp.BlobRef = &ref
	}
	return &cp, nil
}

// Close is a no-op.
func (s *MetadataStore) Close() error { return nil }

// TelemetryStore is an in-memory append-only document store. Duplicate
// inserts for the same key are kept; Find returns the newest.
type TelemetryStore struct {
	mu   sync.RWMutex
	docs map[models.IngestionKey][]*models.TelemetryDocument
}

// NewTelemetryStore creates an empty in-memory telemetry store.
func NewTelemetryStore() *TelemetryStore {
	return &TelemetryStore{docs: make(map[models.IngestionKey][]*models.TelemetryDocument)}
}

// Insert appends the document. Duplicates by key are allowed.
func (s *TelemetryStore) Insert(ctx context.Context, doc *models.TelemetryDocument) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	cp := *doc
	cp.EventTime = doc.Key().EventTime
	if doc.Fields != nil {
		cp.Fields = make(map[string]any, len(doc.Fields))
		for k, v := range doc.Fields {
			cp.Fields[k] = v
		}
	}

	s.mu.Lock()
	s.docs[doc.Key()] = append(s.docs[doc.Key()], &cp)
	s.mu.Unlock()
	return nil
}

// Find returns the most recently inserted document for the key.
func (s *TelemetryStore) Find(ctx context.Context, entityID string, eventTime time.Time) (*models.TelemetryDocument, error) {
	key := models.NewIngestionKey(entityID, eventTime)

	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.docs[key]
	if len(list) == 0 {
		return nil, fmt.Errorf("telemetry %s: %w", key, models.ErrNotFound)
	}
	cp := *list[len(list)-1]
	return &cp, nil
}

// Close is a no-op.
func (s *TelemetryStore) Close() error { return nil }
