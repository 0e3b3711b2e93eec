// Package stitcher assembles the denormalized read-side view of one
// observation. Metadata is the anchor: without it there is nothing to
// stitch. Telemetry and the signed blob URL are fetched concurrently and
// degrade to explicit absent markers instead of failing the view, so a
// flaky non-anchor store can never hide known metadata.
package stitcher

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/krellin/obsvault/internal/metrics"
	"github.com/krellin/obsvault/internal/storage"
	"github.com/krellin/obsvault/pkg/models"
)

// Config holds stitcher options.
type Config struct {
	// SignedURLTTL is the validity window for generated blob URLs.
	SignedURLTTL time.Duration
}

// DefaultConfig returns default stitcher configuration.
func DefaultConfig() Config {
	return Config{SignedURLTTL: 15 * time.Minute}
}

// Stitcher performs the fan-in read across the three stores.
type Stitcher struct {
	blobs     storage.ObjectStore
	metadata  storage.MetadataStore
	telemetry storage.TelemetryStore
	cfg       Config
	logger    *slog.Logger
}

// New creates a stitcher over the given stores.
func New(stores *storage.Stores, cfg Config, logger *slog.Logger) *Stitcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = DefaultConfig().SignedURLTTL
	}
	return &Stitcher{
		blobs:     stores.Blobs,
		metadata:  stores.Metadata,
		telemetry: stores.Telemetry,
		cfg:       cfg,
		logger:    logger,
	}
}

// Retrieve assembles the unified view for (entityID, eventTime).
// Only metadata absence is a hard failure (models.ErrNotFound); every other
// missing piece is marked absent on the returned view.
func (s *Stitcher) Retrieve(ctx context.Context, entityID string, eventTime time.Time) (*models.UnifiedView, error) {
	key := models.NewIngestionKey(entityID, eventTime)
	if err := key.Validate(); err != nil {
		return nil, err
	}

	record, err := s.metadata.Find(ctx, key.EntityID, key.EventTime)
	if err != nil {
		if models.IsNotFound(err) {
			metrics.RetrievalsTotal.WithLabelValues("not_found").Inc()
		}
		return nil, err
	}

	view := &models.UnifiedView{Metadata: record}

	// Both lookups are non-anchor: they run concurrently and never return
	// an error to the group.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		doc, telErr := s.telemetry.Find(gctx, key.EntityID, key.EventTime)
		if telErr != nil {
			view.TelemetryAbsent = true
			if !models.IsNotFound(telErr) {
				s.logger.Warn("telemetry lookup degraded", "key", key.String(), "error", telErr)
			}
			return nil
		}
		view.Telemetry = doc
		return nil
	})

	g.Go(func() error {
		if record.BlobRef == nil {
			return nil
		}
		url, urlErr := s.blobs.SignedReadURL(gctx, *record.BlobRef, s.cfg.SignedURLTTL)
		if urlErr != nil {
			view.SignedURLError = urlErr.Error()
			s.logger.Warn("signed url generation degraded", "key", key.String(), "error", urlErr)
			return nil
		}
		view.SignedURL = url
		return nil
	})

	// Goroutines above only ever return nil; Wait is for joining.
	_ = g.Wait()

	if view.TelemetryAbsent || view.SignedURLError != "" {
		metrics.RetrievalsTotal.WithLabelValues("degraded").Inc()
	} else {
		metrics.RetrievalsTotal.WithLabelValues("complete").Inc()
	}
	return view, nil
}
