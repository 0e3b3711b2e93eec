// Package models defines the shared data model for observation ingestion:
// the cross-store ingestion key, the metadata record, the schemaless telemetry
// document, blob references and the assembled read-side view.
package models

import (
	"fmt"
	"strings"
	"time"
)

// KeyTimePrecision bounds event-time resolution for the whole system.
// ClickHouse persists DateTime64(3), so every store compares at milliseconds.
const KeyTimePrecision = time.Millisecond

// IngestionKey identifies one logical event across all three stores.
type IngestionKey struct {
	EntityID  string    `json:"entity_id"`
	EventTime time.Time `json:"event_time"`
}

// NewIngestionKey builds a canonicalized key: UTC, truncated to the
// system-wide time precision.
func NewIngestionKey(entityID string, eventTime time.Time) IngestionKey {
	return IngestionKey{
		EntityID:  entityID,
		EventTime: eventTime.UTC().Truncate(KeyTimePrecision),
	}
}

// Validate checks the key before any I/O happens.
func (k IngestionKey) Validate() error {
	if k.EntityID == "" {
		return fmt.Errorf("entity_id is empty: %w", ErrInvalidInput)
	}
	if strings.ContainsAny(k.EntityID, "/\\") {
		return fmt.Errorf("entity_id %q contains path separators: %w", k.EntityID, ErrInvalidInput)
	}
	if k.EventTime.IsZero() {
		return fmt.Errorf("event_time is zero: %w", ErrInvalidInput)
	}
	return nil
}

// BlobKey derives the deterministic object-store key for this event.
// The key is a function of identity and event time, never of upload time,
// so re-uploads converge on the same object.
func (k IngestionKey) BlobKey() string {
	return k.EntityID + "/" + k.EventTime.UTC().Format("2006-01-02T15-04-05.000Z") + ".bin"
}

// String renders the key for logs and error messages.
func (k IngestionKey) String() string {
	return k.EntityID + "@" + k.EventTime.UTC().Format(time.RFC3339Nano)
}

// BlobReference identifies an immutable stored blob.
type BlobReference struct {
	Key    string `json:"key"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size_bytes"`
}

// IsZero reports whether the reference is unset.
func (r BlobReference) IsZero() bool {
	return r.Key == ""
}

// MetadataRecord is the relational anchor for one observation. BlobRef is nil
// until the blob upload completes; Status is mutated in place across phases.
type MetadataRecord struct {
	EntityID  string          `json:"entity_id"`
	EventTime time.Time       `json:"event_time"`
	Lat       float64         `json:"lat"`
	Lon       float64         `json:"lon"`
	BlobRef   *BlobReference  `json:"blob_ref,omitempty"`
	Status    IngestionStatus `json:"status"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

// Key returns the canonical ingestion key for the record.
func (m *MetadataRecord) Key() IngestionKey {
	return NewIngestionKey(m.EntityID, m.EventTime)
}

// Validate checks structural integrity of the record.
func (m *MetadataRecord) Validate() error {
	if m == nil {
		return fmt.Errorf("metadata record is nil: %w", ErrInvalidInput)
	}
	if err := m.Key().Validate(); err != nil {
		return err
	}
	if m.Lat < -90 || m.Lat > 90 {
		return fmt.Errorf("lat %v out of range [-90,90]: %w", m.Lat, ErrConstraintViolation)
	}
	if m.Lon < -180 || m.Lon > 180 {
		return fmt.Errorf("lon %v out of range [-180,180]: %w", m.Lon, ErrConstraintViolation)
	}
	return nil
}

// TelemetryDocument is a schemaless sensor payload joined to the metadata
// record by value of (entity_id, event_time) only. Fields beyond the key pair
// are opaque to the coordinator.
type TelemetryDocument struct {
	EntityID  string         `json:"entity_id"`
	EventTime time.Time      `json:"event_time"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Key returns the canonical ingestion key for the document.
func (d *TelemetryDocument) Key() IngestionKey {
	return NewIngestionKey(d.EntityID, d.EventTime)
}

// Validate checks only the key fields; the rest of the shape is open.
func (d *TelemetryDocument) Validate() error {
	if d == nil {
		return fmt.Errorf("telemetry document is nil: %w", ErrInvalidInput)
	}
	return d.Key().Validate()
}

// Stamp overwrites the document's key fields with the canonical key so the
// three stores always agree on the join values.
func (d *TelemetryDocument) Stamp(key IngestionKey) {
	d.EntityID = key.EntityID
	d.EventTime = key.EventTime
}
