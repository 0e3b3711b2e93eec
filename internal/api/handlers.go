package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/krellin/obsvault/pkg/models"
)

// IngestRequest is the JSON body for POST /v1/observations. Blob bytes are
// base64-encoded; telemetry is an open map beyond the key fields, which are
// taken from the metadata section.
type IngestRequest struct {
	Blob      []byte         `json:"blob"`
	Metadata  IngestMetadata `json:"metadata"`
	Telemetry map[string]any `json:"telemetry"`
}

// IngestMetadata is the caller-supplied metadata draft.
type IngestMetadata struct {
	EntityID  string    `json:"entity_id"`
	EventTime time.Time `json:"event_time"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	record := &models.MetadataRecord{
		EntityID:  req.Metadata.EntityID,
		EventTime: req.Metadata.EventTime,
		Lat:       req.Metadata.Lat,
		Lon:       req.Metadata.Lon,
	}
	doc := &models.TelemetryDocument{
		EntityID:  req.Metadata.EntityID,
		EventTime: req.Metadata.EventTime,
		Fields:    req.Telemetry,
	}

	result, err := s.coord.Ingest(r.Context(), req.Blob, record, doc)
	if err == nil {
		s.respondJSON(w, http.StatusOK, result)
		return
	}

	// Partial failures still return the result: it carries the phase
	// reached and the persisted blob reference a retry needs.
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		s.respondJSON(w, http.StatusBadRequest, result)
	case models.IsConflict(err):
		s.respondJSON(w, http.StatusConflict, result)
	case errors.Is(err, models.ErrStoreUnavailable):
		s.respondJSON(w, http.StatusBadGateway, result)
	default:
		s.respondJSON(w, http.StatusInternalServerError, result)
	}
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	eventTimeRaw := chi.URLParam(r, "eventTime")

	eventTime, err := time.Parse(time.RFC3339Nano, eventTimeRaw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "event time must be RFC3339: "+err.Error())
		return
	}

	view, err := s.stitch.Retrieve(r.Context(), entityID, eventTime)
	if err != nil {
		switch {
		case models.IsNotFound(err):
			s.respondError(w, http.StatusNotFound, "observation not found")
		case errors.Is(err, models.ErrInvalidInput):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, models.ErrStoreUnavailable):
			s.respondError(w, http.StatusBadGateway, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleBlobDownload(w http.ResponseWriter, r *http.Request) {
	if s.signer == nil {
		s.respondError(w, http.StatusNotFound, "blob downloads not enabled for this backend")
		return
	}

	escaped := chi.URLParam(r, "*")
	key, err := url.PathUnescape(escaped)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "malformed blob key")
		return
	}

	q := r.URL.Query()
	if err := s.signer.Verify(key, q.Get("exp"), q.Get("sig"), time.Now()); err != nil {
		s.respondError(w, http.StatusForbidden, "invalid or expired signature")
		return
	}

	data, err := s.blobs.Get(r.Context(), key)
	if err != nil {
		if models.IsNotFound(err) {
			s.respondError(w, http.StatusNotFound, "blob not found")
			return
		}
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
