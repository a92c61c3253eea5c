// Package crypto provides the key-derivation and signing primitives
// the STP envelope uses to authenticate packets crossing component
// boundaries (spec.md §4.7). The derivation scheme keeps the teacher's
// HMAC-based subject+info binding but replaces the ad hoc HMAC
// construction with golang.org/x/crypto/hkdf so the same shared secret
// can be safely reused to derive independent per-purpose keys.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveSigningKey derives a 32-byte HMAC-SHA256 signing key from
// masterSecret, bound to subject (e.g. an agent ID) and info (a
// purpose label, e.g. "stp-envelope-v1"). Distinct subjects or info
// strings yield independent, unrelated keys even though they share
// the same master secret.
func DeriveSigningKey(masterSecret, subject []byte, info string) ([]byte, error) {
	if len(masterSecret) == 0 {
		return nil, fmt.Errorf("master secret must not be empty")
	}

	reader := hkdf.New(sha256.New, masterSecret, subject, []byte(info))
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return key, nil
}

// Sign computes an HMAC-SHA256 tag over data using key.
func Sign(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// Verify reports whether tag is a valid HMAC-SHA256 signature of data
// under key, using a constant-time comparison.
func Verify(key, data, tag []byte) bool {
	expected := Sign(key, data)
	return hmac.Equal(expected, tag)
}
