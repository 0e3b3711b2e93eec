// Package fsblob provides a filesystem-backed object store with
// content-addressed idempotent writes and HMAC-signed time-bounded read URLs.
package fsblob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/krellin/obsvault/pkg/models"
)

// Config holds filesystem blob store configuration.
type Config struct {
	// Root is the directory objects are written under.
	Root string
	// SigningSecret keys the HMAC for signed read URLs.
	SigningSecret string
	// BaseURL prefixes signed URLs, e.g. "http://localhost:8080".
	BaseURL string
}

// Store is a filesystem object store. Objects are immutable once written:
// a second Put with identical content is a no-op, different content is a
// write conflict.
type Store struct {
	root   string
	signer *Signer
	logger *slog.Logger
}

// New creates the store, creating the root directory if needed.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Root == "" {
		return nil, errors.New("fsblob: root directory is required")
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root: %w", err)
	}

	return &Store{
		root:   cfg.Root,
		signer: NewSigner(cfg.SigningSecret, cfg.BaseURL),
		logger: logger,
	}, nil
}

// Signer exposes the store's URL signer so the HTTP layer can verify
// download requests against the same secret.
func (s *Store) Signer() *Signer {
	return s.signer
}

// Put writes data under key. The write is atomic (temp file + rename).
// If the key already exists, content hashes are compared: identical content
// returns the existing reference, different content returns
// models.ErrWriteConflict so silent overwrite never happens.
func (s *Store) Put(ctx context.Context, key string, data []byte) (models.BlobReference, error) {
	path, err := s.objectPath(key)
	if err != nil {
		return models.BlobReference{}, err
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	ref := models.BlobReference{Key: key, SHA256: digest, Size: int64(len(data))}

	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		existingSum := sha256.Sum256(existing)
		if existingSum != sum {
			return models.BlobReference{}, fmt.Errorf("key %s holds different content: %w", key, models.ErrWriteConflict)
		}
		return models.BlobReference{Key: key, SHA256: digest, Size: int64(len(existing))}, nil
	case !errors.Is(err, fs.ErrNotExist):
		return models.BlobReference{}, fmt.Errorf("reading existing blob %s: %v: %w", key, err, models.ErrStoreUnavailable)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return models.BlobReference{}, fmt.Errorf("creating blob dir: %v: %w", err, models.ErrStoreUnavailable)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return models.BlobReference{}, fmt.Errorf("creating temp file: %v: %w", err, models.ErrStoreUnavailable)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return models.BlobReference{}, fmt.Errorf("writing blob %s: %v: %w", key, err, models.ErrStoreUnavailable)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return models.BlobReference{}, fmt.Errorf("closing blob %s: %v: %w", key, err, models.ErrStoreUnavailable)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return models.BlobReference{}, fmt.Errorf("publishing blob %s: %v: %w", key, err, models.ErrStoreUnavailable)
	}

	s.logger.Debug("blob stored", "key", key, "size", len(data), "sha256", digest)
	return ref, nil
}

// Get returns the stored bytes for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.objectPath(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", key, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %v: %w", key, err, models.ErrStoreUnavailable)
	}
	return data, nil
}

// SignedReadURL returns a time-bounded URL for the referenced blob.
func (s *Store) SignedReadURL(ctx context.Context, ref models.BlobReference, ttl time.Duration) (string, error) {
	path, err := s.objectPath(ref.Key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("blob %s: %w", ref.Key, models.ErrNotFound)
	} else if err != nil {
		return "", fmt.Errorf("checking blob %s: %v: %w", ref.Key, err, models.ErrStoreUnavailable)
	}

	return s.signer.SignedURL(ref.Key, time.Now().Add(ttl)), nil
}

// Close is a no-op for the filesystem backend.
func (s *Store) Close() error { return nil }

// objectPath maps a logical key to a path under root, rejecting traversal.
func (s *Store) objectPath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty blob key: %w", models.ErrInvalidInput)
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("blob key %q escapes store root: %w", key, models.ErrInvalidInput)
	}
	return filepath.Join(s.root, clean), nil
}
