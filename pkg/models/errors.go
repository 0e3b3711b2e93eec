package models

import "errors"

// Sentinel errors shared by all stores and the coordinator. Store backends
// translate driver-level failures into these before returning, so callers can
// make retry and degradation decisions with errors.Is alone.
var (
	// ErrNotFound is returned when a requested item is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput marks a caller error. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable marks a transient backend failure (connection,
	// timeout, I/O). The coordinator retries these with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConstraintViolation is returned by the metadata store when a record
	// fails integrity checks. Never retried.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrWriteConflict is returned by the object store when a key already
	// holds different content. Silent overwrite is rejected so retries stay
	// idempotent.
	ErrWriteConflict = errors.New("write conflict")

	// ErrDuplicateKeyMismatch is the coordinator-level form of ErrWriteConflict:
	// the same ingestion key was submitted with different blob bytes.
	ErrDuplicateKeyMismatch = errors.New("duplicate key with mismatched content")

	// ErrSignatureInvalid is returned when a signed blob URL fails verification.
	ErrSignatureInvalid = errors.New("invalid or expired signature")
)

// IsNotFound reports whether err represents absence rather than failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetriable reports whether the coordinator may retry the operation.
// Only transient store failures qualify; input and integrity errors are
// surfaced immediately.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsConflict reports whether err is a data-integrity conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrWriteConflict) ||
		errors.Is(err, ErrDuplicateKeyMismatch) ||
		errors.Is(err, ErrConstraintViolation)
}
