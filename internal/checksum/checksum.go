// Package checksum fingerprints stored record documents. The fingerprint
// doubles as the HTTP entity tag used for optimistic concurrency.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag formats sum as a strong entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// FromETag extracts the checksum from an If-Match style header value.
// Weak validators and "*" yield "" because they never match a document
// byte for byte.
func FromETag(header string) string {
	header = strings.TrimSpace(header)
	if header == "" || header == "*" || strings.HasPrefix(header, "W/") {
		return ""
	}
	return strings.Trim(header, `"`)
}
