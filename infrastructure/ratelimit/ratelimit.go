// Package ratelimit wraps golang.org/x/time/rate token buckets for the
// Telemetry Bus, which caps the delivery rate to each subscriber
// independently so one noisy consumer cannot starve the others.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config describes a token-bucket rate limit.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig matches the Telemetry Bus default of 200 packets/sec
// per subscriber with a burst of double that.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 200,
		Burst:             400,
	}
}

// RateLimiter is a single per-subscriber token bucket.
type RateLimiter struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
	config  Config
}

// New creates a RateLimiter, applying sane floors if cfg is zero-valued.
func New(cfg Config) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 200
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		config:  cfg,
	}
}

// Allow reports whether a packet may be delivered right now, consuming
// a token if so. Non-blocking — the bus never waits on a slow subscriber.
func (r *RateLimiter) Allow() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done. Used only by
// callers that can tolerate backpressure (not the bus publish path).
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Reset rebuilds the bucket from the limiter's original configuration,
// discarding any accumulated burst credit.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter = rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond), r.config.Burst)
}
