package fsblob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/krellin/obsvault/pkg/models"
)

// Signer produces and verifies HMAC-SHA256 signed blob URLs of the form
//
//	<base>/v1/blobs/<key>?exp=<unix>&sig=<hex>
//
// The signature covers the key and the expiry, so neither can be altered
// without invalidating the URL.
type Signer struct {
	secret  []byte
	baseURL string
}

// NewSigner creates a signer. baseURL may be empty, producing relative URLs.
func NewSigner(secret, baseURL string) *Signer {
	return &Signer{
		secret:  []byte(secret),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// SignedURL builds a signed read URL for key, valid until expiry.
func (s *Signer) SignedURL(key string, expiry time.Time) string {
	exp := expiry.Unix()
	sig := s.signature(key, exp)

	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", sig)

	escaped := escapeKeyPath(key)
	return fmt.Sprintf("%s/v1/blobs/%s?%s", s.baseURL, escaped, q.Encode())
}

// Verify checks the signature and expiry for a download request.
// Returns models.ErrSignatureInvalid on tampering or expiry.
func (s *Signer) Verify(key, expStr, sig string, now time.Time) error {
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed expiry: %w", models.ErrSignatureInvalid)
	}
	if now.Unix() > exp {
		return fmt.Errorf("url expired at %d: %w", exp, models.ErrSignatureInvalid)
	}

	expected := s.signature(key, exp)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("signature mismatch for %s: %w", key, models.ErrSignatureInvalid)
	}
	return nil
}

func (s *Signer) signature(key string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%d", key, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

// escapeKeyPath escapes each path segment of a blob key while keeping the
// separators, so keys like "SAT-123/2025-07-06T12-00-00.000Z.bin" stay readable.
func escapeKeyPath(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
