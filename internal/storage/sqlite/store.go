// Package sqlite provides the SQLite-backed metadata store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/krellin/obsvault/pkg/models"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.up.sql
var migrationSQL string

// Config holds SQLite store configuration.
type Config struct {
	DBPath string
}

// Store is a SQLite-backed metadata store. Uniqueness on
// (entity_id, event_time) is enforced by the primary key; upserts update
// in place so the coordinator can persist status transitions.
type Store struct {
	db *sql.DB
}

// New opens the database, applies pragmas and runs the embedded migration.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(migrationSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Upsert inserts or replaces the metadata row for the record's key.
// Malformed records are rejected with models.ErrConstraintViolation before
// any I/O; database failures surface as models.ErrStoreUnavailable so the
// coordinator can retry them.
func (s *Store) Upsert(ctx context.Context, record *models.MetadataRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	key := record.Key()
	var blobKey, blobSHA sql.NullString
	var blobSize sql.NullInt64
	if record.BlobRef != nil {
		blobKey = sql.NullString{String: record.BlobRef.Key, Valid: true}
		blobSHA = sql.NullString{String: record.BlobRef.SHA256, Valid: true}
		blobSize = sql.NullInt64{Int64: record.BlobRef.Size, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO observation_metadata
			(entity_id, event_time_ms, lat, lon, blob_key, blob_sha256, blob_size, status, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_id, event_time_ms) DO UPDATE SET
			lat           = excluded.lat,
			lon           = excluded.lon,
			blob_key      = excluded.blob_key,
			blob_sha256   = excluded.blob_sha256,
			blob_size     = excluded.blob_size,
			status        = excluded.status,
			updated_at_ms = excluded.updated_at_ms`,
		key.EntityID, key.EventTime.UnixMilli(),
		record.Lat, record.Lon,
		blobKey, blobSHA, blobSize,
		record.Status.String(), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upserting metadata %s: %v: %w", key, err, models.ErrStoreUnavailable)
	}
	return nil
}

// Find returns the metadata record for (entityID, eventTime).
func (s *Store) Find(ctx context.Context, entityID string, eventTime time.Time) (*models.MetadataRecord, error) {
	key := models.NewIngestionKey(entityID, eventTime)

	row := s.db.QueryRowContext(ctx, `
		SELECT entity_id, event_time_ms, lat, lon, blob_key, blob_sha256, blob_size, status, updated_at_ms
		FROM observation_metadata
		WHERE entity_id = ? AND event_time_ms = ?`,
		key.EntityID, key.EventTime.UnixMilli(),
	)

	var (
		record      models.MetadataRecord
		eventTimeMS int64
		updatedAtMS int64
		statusStr   string
		blobKey     sql.NullString
		blobSHA     sql.NullString
		blobSize    sql.NullInt64
	)
	err := row.Scan(&record.EntityID, &eventTimeMS, &record.Lat, &record.Lon,
		&blobKey, &blobSHA, &blobSize, &statusStr, &updatedAtMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("metadata %s: %w", key, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying metadata %s: %v: %w", key, err, models.ErrStoreUnavailable)
	}

	record.EventTime = time.UnixMilli(eventTimeMS).UTC()
	record.UpdatedAt = time.UnixMilli(updatedAtMS).UTC()

	status, err := models.ParseIngestionStatus(statusStr)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", key, err)
	}
	record.Status = status

	if blobKey.Valid {
		record.BlobRef = &models.BlobReference{
			Key:    blobKey.String,
			SHA256: blobSHA.String,
			Size:   blobSize.Int64,
		}
	}
	return &record, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
