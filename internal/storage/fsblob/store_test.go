package fsblob

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/krellin/obsvault/pkg/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(Config{
		Root:          t.TempDir(),
		SigningSecret: "test-secret",
		BaseURL:       "http://localhost:8080",
	}, nil)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	payload := []byte("image bytes")
	ref, err := store.Put(ctx, "SAT-123/2025-07-06T12-00-00.000Z.bin", payload)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref.Size != int64(len(payload)) || ref.SHA256 == "" {
		t.Errorf("unexpected reference: %+v", ref)
	}

	got, err := store.Get(ctx, ref.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestPutIdempotentAndConflict(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ref1, err := store.Put(ctx, "k.bin", []byte("content"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	ref2, err := store.Put(ctx, "k.bin", []byte("content"))
	if err != nil {
		t.Fatalf("identical re-put: %v", err)
	}
	if ref1.SHA256 != ref2.SHA256 {
		t.Errorf("digests differ on identical content")
	}

	_, err = store.Put(ctx, "k.bin", []byte("other content"))
	if !errors.Is(err, models.ErrWriteConflict) {
		t.Fatalf("expected ErrWriteConflict, got %v", err)
	}
}

func TestKeyTraversalRejected(t *testing.T) {
	store := setupTestStore(t)

	for _, key := range []string{"../outside.bin", "/etc/passwd", ""} {
		_, err := store.Put(context.Background(), key, []byte("x"))
		if !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("key %q: expected ErrInvalidInput, got %v", key, err)
		}
	}
}

func TestSignedReadURL(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ref, err := store.Put(ctx, "SAT-123/img.bin", []byte("payload"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	url, err := store.SignedReadURL(ctx, ref, 5*time.Minute)
	if err != nil {
		t.Fatalf("signed url: %v", err)
	}
	if !strings.HasPrefix(url, "http://localhost:8080/v1/blobs/SAT-123/img.bin?") {
		t.Errorf("unexpected url shape: %s", url)
	}

	_, err = store.SignedReadURL(ctx, models.BlobReference{Key: "missing.bin"}, time.Minute)
	if !models.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSignerVerify(t *testing.T) {
	signer := NewSigner("secret", "")
	now := time.Now()

	url := signer.SignedURL("SAT-123/img.bin", now.Add(time.Minute))

	// Pull exp and sig back out of the generated URL.
	query := url[strings.Index(url, "?")+1:]
	params := map[string]string{}
	for _, kv := range strings.Split(query, "&") {
		parts := strings.SplitN(kv, "=", 2)
		params[parts[0]] = parts[1]
	}

	if err := signer.Verify("SAT-123/img.bin", params["exp"], params["sig"], now); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	// Expired.
	err := signer.Verify("SAT-123/img.bin", params["exp"], params["sig"], now.Add(2*time.Minute))
	if !errors.Is(err, models.ErrSignatureInvalid) {
		t.Errorf("expired url accepted: %v", err)
	}

	// Tampered key.
	err = signer.Verify("SAT-999/img.bin", params["exp"], params["sig"], now)
	if !errors.Is(err, models.ErrSignatureInvalid) {
		t.Errorf("tampered key accepted: %v", err)
	}

	// Wrong secret.
	other := NewSigner("other-secret", "")
	err = other.Verify("SAT-123/img.bin", params["exp"], params["sig"], now)
	if !errors.Is(err, models.ErrSignatureInvalid) {
		t.Errorf("foreign signature accepted: %v", err)
	}
}
