// Package coordinator implements the three-phase cross-store write:
// blob, then metadata, then telemetry. There is no cross-store transaction
// and no compensating rollback; the design relies on deterministic blob keys
// and upsert-in-place metadata so a failed ingestion can be completed by
// re-invoking it with the same inputs.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/krellin/obsvault/internal/metrics"
	"github.com/krellin/obsvault/internal/storage"
	"github.com/krellin/obsvault/pkg/models"
)

// Config holds retry policy for transient store failures. Input and
// integrity errors are never retried regardless of these settings.
type Config struct {
	// MaxAttempts bounds store calls per phase, first try included.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry; it doubles per
	// retry up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns the default retry policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// Coordinator orchestrates one logical event across the three stores.
// Invocations for distinct keys are independent and may run concurrently;
// the coordinator keeps no mutable state between calls.
type Coordinator struct {
	blobs     storage.ObjectStore
	metadata  storage.MetadataStore
	telemetry storage.TelemetryStore
	cfg       Config
	logger    *slog.Logger
}

// New creates a coordinator over the given stores.
func New(stores *storage.Stores, cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Coordinator{
		blobs:     stores.Blobs,
		metadata:  stores.Metadata,
		telemetry: stores.Telemetry,
		cfg:       cfg,
		logger:    logger,
	}
}

// Ingest lands one logical event across the three stores. The returned
// result is always non-nil and carries the furthest phase reached plus any
// persisted blob reference, so a caller can drive a retry that skips
// completed phases. Partial state left behind by a failure is intentional:
// the blob is content-addressed and reusable, and a metadata row without
// telemetry is a visible gap rather than a silent loss.
func (c *Coordinator) Ingest(ctx context.Context, blob []byte, metadataDraft *models.MetadataRecord, telemetryDraft *models.TelemetryDocument) (*models.IngestionResult, error) {
	start := time.Now()

	result := &models.IngestionResult{
		IngestionID: uuid.NewString(),
		Status:      models.StatusPending,
		Attempts:    make(map[models.IngestionPhase]int),
	}

	// Validate everything before any I/O.
	if err := metadataDraft.Validate(); err != nil {
		return c.fail(result, models.PhaseBlob, models.StatusFailedAtBlob, err)
	}
	if telemetryDraft == nil {
		return c.fail(result, models.PhaseBlob, models.StatusFailedAtBlob,
			fmt.Errorf("telemetry draft is nil: %w", models.ErrInvalidInput))
	}

	key := metadataDraft.Key()
	result.Key = key

	// Phase 1: blob. The key is derived from identity and event time, so a
	// retry converges on the same object. A conflict means the caller
	// submitted different bytes for an existing key.
	var ref models.BlobReference
	err := c.withRetry(ctx, models.PhaseBlob, result, func() error {
		var putErr error
		ref, putErr = c.blobs.Put(ctx, key.BlobKey(), blob)
		return putErr
	})
	if err != nil {
		if errors.Is(err, models.ErrWriteConflict) {
			err = fmt.Errorf("blob for %s: %w", key, models.ErrDuplicateKeyMismatch)
		}
		return c.fail(result, models.PhaseBlob, models.StatusFailedAtBlob, err)
	}
	result.BlobRef = &ref
	result.Status = models.StatusBlobStored

	// Phase 2: metadata anchor, carrying the blob reference and the
	// in-flight status.
	record := *metadataDraft
	record.EntityID = key.EntityID
	record.EventTime = key.EventTime
	record.BlobRef = &ref
	record.Status = models.StatusMetadataStored

	err = c.withRetry(ctx, models.PhaseMetadata, result, func() error {
		return c.metadata.Upsert(ctx, &record)
	})
	if err != nil {
		// The blob stays: content-addressed, harmless, reusable on retry.
		return c.fail(result, models.PhaseMetadata, models.StatusFailedAtMetadata, err)
	}
	result.Status = models.StatusMetadataStored

	// Phase 3: telemetry, stamped with the canonical key so the stores
	// agree on the join values.
	doc := *telemetryDraft
	doc.Stamp(key)

	err = c.withRetry(ctx, models.PhaseTelemetry, result, func() error {
		return c.telemetry.Insert(ctx, &doc)
	})
	if err != nil {
		// Persist the gap so the read path can see it. Best effort: a
		// failure here is logged, not compounded.
		record.Status = models.StatusFailedAtTelemetry
		if upsertErr := c.metadata.Upsert(ctx, &record); upsertErr != nil {
			c.logger.Warn("could not persist telemetry-failure status",
				"key", key.String(), "error", upsertErr)
		}
		return c.fail(result, models.PhaseTelemetry, models.StatusFailedAtTelemetry, err)
	}
	result.Status = models.StatusTelemetryStored

	// Finalize: mark the anchor row complete.
	record.Status = models.StatusComplete
	err = c.withRetry(ctx, models.PhaseFinalize, result, func() error {
		return c.metadata.Upsert(ctx, &record)
	})
	if err != nil {
		return c.fail(result, models.PhaseFinalize, models.StatusFailedAtMetadata, err)
	}

	result.Status = models.StatusComplete
	result.Phase = models.PhaseFinalize

	metrics.IngestionsTotal.WithLabelValues(result.Status.String()).Inc()
	metrics.IngestionDuration.Observe(time.Since(start).Seconds())
	c.logger.Info("ingestion complete",
		"key", key.String(),
		"ingestion_id", result.IngestionID,
		"blob_sha256", ref.SHA256,
		"duration", time.Since(start),
	)
	return result, nil
}

// withRetry runs op, retrying transient store failures with bounded
// exponential backoff. Cancellation stops further attempts without cleanup;
// already-persisted phases stay behind as the recovery anchor.
func (c *Coordinator) withRetry(ctx context.Context, phase models.IngestionPhase, result *models.IngestionResult, op func() error) error {
	backoff := c.cfg.InitialBackoff
	var err error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		result.Attempts[phase]++
		err = op()
		if err == nil {
			metrics.PhaseAttemptsTotal.WithLabelValues(string(phase), "ok").Inc()
			return nil
		}
		metrics.PhaseAttemptsTotal.WithLabelValues(string(phase), "error").Inc()

		if !models.IsRetriable(err) || attempt == c.cfg.MaxAttempts {
			return err
		}

		metrics.PhaseRetriesTotal.WithLabelValues(string(phase)).Inc()
		c.logger.Warn("transient store failure, retrying",
			"phase", phase, "attempt", attempt, "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s phase canceled: %w", phase, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}
	return err
}

// fail finalizes a result in a failure state and returns it with the error.
func (c *Coordinator) fail(result *models.IngestionResult, phase models.IngestionPhase, status models.IngestionStatus, err error) (*models.IngestionResult, error) {
	result.Phase = phase
	result.Status = status
	result.Err = err.Error()

	metrics.IngestionsTotal.WithLabelValues(status.String()).Inc()
	c.logger.Error("ingestion failed",
		"key", result.Key.String(),
		"ingestion_id", result.IngestionID,
		"phase", phase,
		"error", err,
	)
	return result, err
}
