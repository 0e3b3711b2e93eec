package models

import "fmt"

// IngestionStatus tracks how far a logical event has progressed through the
// three-phase write. It lives on the metadata record so partial failure is
// observable by the read path, but it is owned exclusively by the coordinator.
type IngestionStatus int

const (
	StatusPending IngestionStatus = iota
	StatusBlobStored
	StatusMetadataStored
	StatusTelemetryStored
	StatusComplete
	StatusFailedAtBlob
	StatusFailedAtMetadata
	StatusFailedAtTelemetry
)

var statusNames = map[IngestionStatus]string{
	StatusPending:           "PENDING",
	StatusBlobStored:        "BLOB_STORED",
	StatusMetadataStored:    "METADATA_STORED",
	StatusTelemetryStored:   "TELEMETRY_STORED",
	StatusComplete:          "COMPLETE",
	StatusFailedAtBlob:      "FAILED_AT_BLOB",
	StatusFailedAtMetadata:  "FAILED_AT_METADATA",
	StatusFailedAtTelemetry: "FAILED_AT_TELEMETRY",
}

// String returns the persisted form of the status.
func (s IngestionStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("IngestionStatus(%d)", int(s))
}

// Terminal reports whether the status is an end state of the ingestion
// state machine.
func (s IngestionStatus) Terminal() bool {
	switch s {
	case StatusComplete, StatusFailedAtBlob, StatusFailedAtMetadata, StatusFailedAtTelemetry:
		return true
	}
	return false
}

// Failed reports whether the status is a failure absorbing state.
func (s IngestionStatus) Failed() bool {
	switch s {
	case StatusFailedAtBlob, StatusFailedAtMetadata, StatusFailedAtTelemetry:
		return true
	}
	return false
}

// ParseIngestionStatus converts a persisted status string back to its enum
// value. Used when loading metadata rows from SQLite.
func ParseIngestionStatus(s string) (IngestionStatus, error) {
	for status, name := range statusNames {
		if name == s {
			return status, nil
		}
	}
	return StatusPending, fmt.Errorf("unknown ingestion status %q", s)
}

// MarshalJSON encodes the status as its string name.
func (s IngestionStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON decodes a status from its string name.
func (s *IngestionStatus) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("ingestion status must be a JSON string, got %s", data)
	}
	parsed, err := ParseIngestionStatus(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
