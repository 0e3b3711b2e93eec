package models

// IngestionPhase names one step of the three-phase write.
type IngestionPhase string

const (
	PhaseBlob      IngestionPhase = "blob"
	PhaseMetadata  IngestionPhase = "metadata"
	PhaseTelemetry IngestionPhase = "telemetry"
	PhaseFinalize  IngestionPhase = "finalize"
)

// IngestionResult reports the outcome of one coordinator invocation. On
// partial failure it carries the furthest phase reached and the persisted
// blob reference so a caller-driven retry can skip completed phases.
type IngestionResult struct {
	IngestionID string          `json:"ingestion_id"`
	Key         IngestionKey    `json:"key"`
	Status      IngestionStatus `json:"status"`
	// Phase is the last phase attempted. For a COMPLETE result it is
	// PhaseFinalize; for a failure it is the phase that failed.
	Phase IngestionPhase `json:"phase"`
	// BlobRef is set once the blob phase has succeeded, even when a later
	// phase fails.
	BlobRef *BlobReference `json:"blob_ref,omitempty"`
	// Attempts counts store calls per phase, including retries.
	Attempts map[IngestionPhase]int `json:"attempts,omitempty"`
	// Err holds the terminal error message on failure. The typed error is
	// returned alongside the result; this field exists for serialized results.
	Err string `json:"error,omitempty"`
}

// Complete reports whether the ingestion reached the terminal success state.
func (r *IngestionResult) Complete() bool {
	return r != nil && r.Status == StatusComplete
}

// UnifiedView is the denormalized read-side assembly of one observation.
// Telemetry and the signed URL are non-anchor components: their absence or
// failure degrades the view instead of failing it.
type UnifiedView struct {
	Metadata *MetadataRecord `json:"metadata"`
	// Telemetry is nil when absent; TelemetryAbsent distinguishes "no
	// document" from "not yet populated" for serialized views.
	Telemetry       *TelemetryDocument `json:"telemetry,omitempty"`
	TelemetryAbsent bool               `json:"telemetry_absent"`
	// SignedURL is a time-bounded read URL for the blob, empty when the
	// record carries no blob reference.
	SignedURL string `json:"signed_url,omitempty"`
	// SignedURLError is populated when URL generation failed; the rest of
	// the view is still returned.
	SignedURLError string `json:"signed_url_error,omitempty"`
}
