// Package clickhouse provides the ClickHouse-backed telemetry store.
package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/krellin/obsvault/pkg/models"
)

// Store implements the storage.TelemetryStore interface using ClickHouse.
type Store struct {
	conn   driver.Conn
	logger *slog.Logger
}

// NewStore connects to ClickHouse and bootstraps the schema.
func NewStore(ctx context.Context, config *ConnectionConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := Connect(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to ClickHouse: %w", err)
	}

	if err := InitializeSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{conn: conn, logger: logger}, nil
}

// Insert appends a telemetry document. Inserts are append-only; the store
// never deduplicates by key.
func (s *Store) Insert(ctx context.Context, doc *models.TelemetryDocument) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	fields, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("encoding telemetry fields for %s: %w", doc.Key(), models.ErrInvalidInput)
	}

	batch, err := s.conn.PrepareBatch(ctx,
		"INSERT INTO telemetry_documents (entity_id, event_time, received_at, fields)")
	if err != nil {
		return fmt.Errorf("preparing telemetry insert: %v: %w", err, models.ErrStoreUnavailable)
	}

	key := doc.Key()
	if err := batch.Append(key.EntityID, key.EventTime, time.Now().UTC(), string(fields)); err != nil {
		return fmt.Errorf("appending telemetry row: %v: %w", err, models.ErrStoreUnavailable)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("inserting telemetry %s: %v: %w", key, err, models.ErrStoreUnavailable)
	}
	return nil
}

// Find returns the most recently inserted document for the key.
func (s *Store) Find(ctx context.Context, entityID string, eventTime time.Time) (*models.TelemetryDocument, error) {
	key := models.NewIngestionKey(entityID, eventTime)

	row := s.conn.QueryRow(ctx, `
		SELECT entity_id, event_time, fields
		FROM telemetry_documents
		WHERE entity_id = ? AND event_time = ?
		ORDER BY received_at DESC
		LIMIT 1`,
		key.EntityID, key.EventTime,
	)

	var (
		doc       models.TelemetryDocument
		fieldsRaw string
	)
	if err := row.Scan(&doc.EntityID, &doc.EventTime, &fieldsRaw); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, fmt.Errorf("telemetry %s: %w", key, models.ErrNotFound)
		}
		return nil, fmt.Errorf("querying telemetry %s: %v: %w", key, err, models.ErrStoreUnavailable)
	}

	doc.EventTime = doc.EventTime.UTC()
	if fieldsRaw != "" {
		if err := json.Unmarshal([]byte(fieldsRaw), &doc.Fields); err != nil {
			return nil, fmt.Errorf("decoding telemetry fields for %s: %w", key, err)
		}
	}
	return &doc, nil
}

// Close closes the ClickHouse connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
