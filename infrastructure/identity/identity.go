// Package identity is the Clock & Identity component (spec.md §2): a
// monotonic/wall clock source, a 128-bit cryptographically random
// unique-ID generator, and a nonce generator for the STP Envelope.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts wall-clock and monotonic reads so callers (decision
// timestamps, drift checks, cache TTLs) can be driven by a fake clock
// in tests.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// SystemClock is the production Clock, backed by time.Now, whose
// Duration arithmetic rides on Go's monotonic reading.
type SystemClock struct{}

func (SystemClock) Now() time.Time                  { return time.Now() }
func (SystemClock) Since(t time.Time) time.Duration { return time.Since(t) }

// NewID returns a new 128-bit cryptographically random identifier
// (a UUIDv4), used for request IDs and decision record IDs.
func NewID() string {
	return uuid.New().String()
}

// NewNonce returns a hex-encoded 128-bit cryptographically random
// nonce for the STP Envelope's replay protection (spec.md §4.7).
func NewNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
