// Package storage defines the three capability interfaces the ingestion
// coordinator and retrieval stitcher are written against. Backends wrap
// whatever storage engines are configured; the core never learns their
// identity. Implementations must be safe for concurrent use and must
// translate driver failures into the sentinel errors of pkg/models.
package storage

import (
	"context"
	"time"

	"github.com/krellin/obsvault/pkg/models"
)

// ObjectStore stores immutable binary blobs under deterministic keys.
type ObjectStore interface {
	// Put writes data under key. Writing identical content to an existing
	// key is a no-op returning the existing reference; writing different
	// content returns models.ErrWriteConflict.
	Put(ctx context.Context, key string, data []byte) (models.BlobReference, error)

	// Get returns the stored bytes, or models.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// SignedReadURL returns a time-bounded read URL for the referenced blob.
	// Returns models.ErrNotFound when the blob does not exist.
	SignedReadURL(ctx context.Context, ref models.BlobReference, ttl time.Duration) (string, error)

	// Close releases backend resources.
	Close() error
}

// MetadataStore persists the relational anchor record, unique per
// (entity_id, event_time). A second upsert for the same key updates in
// place; this is how status transitions are persisted across phases.
type MetadataStore interface {
	Upsert(ctx context.Context, record *models.MetadataRecord) error

	// Find returns the record for the key, or models.ErrNotFound.
	Find(ctx context.Context, entityID string, eventTime time.Time) (*models.MetadataRecord, error)

	Close() error
}

// TelemetryStore persists schemaless telemetry documents. Inserts are
// append-only: duplicates for the same key are allowed, and Find returns
// the most recently inserted match.
type TelemetryStore interface {
	Insert(ctx context.Context, doc *models.TelemetryDocument) error

	// Find returns the latest document for the key, or models.ErrNotFound.
	Find(ctx context.Context, entityID string, eventTime time.Time) (*models.TelemetryDocument, error)

	Close() error
}
