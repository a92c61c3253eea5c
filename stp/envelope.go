// Package stp implements Wrap/Unwrap/Sign/Verify for the Secure
// Packet Envelope (spec.md §4.7): canonical serialization, checksum,
// HMAC signing, nonce-based replay protection, and drift-bounded
// timestamp checks, in strict or lenient verification modes.
package stp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	domainstp "github.com/nexarouter/core/domain/stp"
	"github.com/nexarouter/core/infrastructure/config"
	routererrors "github.com/nexarouter/core/infrastructure/errors"
	"github.com/nexarouter/core/infrastructure/crypto"
	"github.com/nexarouter/core/infrastructure/identity"
	"github.com/nexarouter/core/infrastructure/metrics"
)

const signingInfo = "stp-envelope-v1"

// AlertLevel names a failure-rate threshold crossing.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Alert is a structured record of a failure-rate threshold crossing
// (spec.md §4.7, §7). Alerts are kept in memory on the Envelope and
// read through Alerts(); the Envelope does not publish them on the
// Telemetry Bus.
type Alert struct {
	Level       AlertLevel
	FailureRate float64
	At          time.Time
}

// Envelope wraps and unwraps domainstp.Packet values.
type Envelope struct {
	cfg   config.STPConfig
	clock identity.Clock
	metrics *metrics.Metrics

	replay *lru.Cache[string, struct{}]

	ops      int64 // atomic
	failures int64 // atomic

	signing atomic.Bool

	mu         sync.Mutex
	lastLevel  AlertLevel
	alerts     []Alert
}

// New constructs an Envelope. clock defaults to identity.SystemClock{}
// if nil.
func New(cfg config.STPConfig, clock identity.Clock, m *metrics.Metrics) (*Envelope, error) {
	if clock == nil {
		clock = identity.SystemClock{}
	}
	cache, err := lru.New[string, struct{}](cfg.ReplayCapacity)
	if err != nil {
		return nil, fmt.Errorf("stp: construct replay cache: %w", err)
	}
	e := &Envelope{cfg: cfg, clock: clock, metrics: m, replay: cache}
	e.signing.Store(cfg.SigningEnabled)
	return e, nil
}

// SetSigningEnabled toggles signing at runtime (spec.md §6's admin
// toggle_signing). Packets already in flight are unaffected; Unwrap
// still verifies signatures on any packet carrying a security block
// regardless of the current toggle, since disabling signing only
// stops producing new signatures, it does not retroactively make
// verification optional for signed traffic already on the wire.
func (e *Envelope) SetSigningEnabled(enabled bool) {
	e.signing.Store(enabled)
}

// Wrap builds and, if signing is enabled, signs a packet of the given
// type carrying payload (spec.md §4.7).
func (e *Envelope) Wrap(ctx context.Context, packetType domainstp.PacketType, source, destination string, payload any, requiresAck bool) (domainstp.Packet, error) {
	tokenRandom, err := identity.NewNonce()
	if err != nil {
		return e.failWrap(err)
	}

	pkt := domainstp.Packet{
		Version:   e.cfg.Version,
		Token:     e.cfg.TokenPrefix + "-" + tokenRandom,
		Timestamp: e.clock.Now(),
		Type:      packetType,
		Metadata: domainstp.Metadata{
			Source:      source,
			Destination: destination,
			Priority:    priorityFor(packetType, payload),
			RequiresAck: requiresAck,
		},
		Payload: payload,
	}

	canonical, err := canonicalBytes(pkt)
	if err != nil {
		return e.failWrap(err)
	}
	pkt.Checksum = hex.EncodeToString(sha256Sum(canonical))

	if e.signing.Load() {
		nonce, err := identity.NewNonce()
		if err != nil {
			return e.failWrap(err)
		}
		key, err := crypto.DeriveSigningKey(e.cfg.SharedSecret, []byte(destination), signingInfo)
		if err != nil {
			return e.failWrap(err)
		}
		signature := crypto.Sign(key, canonical)
		pkt.Security = &domainstp.Security{
			Nonce:     nonce,
			Timestamp: e.clock.Now(),
			Signature: hex.EncodeToString(signature),
		}
	}

	e.recordOutcome(true, false)
	if e.metrics != nil {
		e.metrics.EnvelopeWrapped.Inc()
	}
	return pkt, nil
}

func (e *Envelope) failWrap(cause error) (domainstp.Packet, error) {
	e.recordOutcome(false, false)
	if e.metrics != nil {
		e.metrics.EnvelopeWrapFailures.Inc()
	}
	return domainstp.Packet{}, routererrors.Wrap(routererrors.CodeInternal, "stp wrap failed", cause)
}

// Unwrap verifies a packet's checksum and, if present, its signature,
// and returns its payload (spec.md §4.7).
func (e *Envelope) Unwrap(ctx context.Context, pkt domainstp.Packet) (any, error) {
	canonical, err := canonicalBytes(withoutChecksum(pkt))
	if err != nil {
		return e.failUnwrap(err)
	}
	checksumOK := hex.EncodeToString(sha256Sum(canonical)) == pkt.Checksum

	if !checksumOK {
		if e.metrics != nil {
			e.metrics.EnvelopeChecksumFailures.Inc()
		}
		if e.cfg.LenientChecksum {
			pkt.ChecksumFailed = true
			e.recordOutcome(true, true)
			if e.metrics != nil {
				e.metrics.EnvelopeUnwrapped.Inc()
			}
			return pkt.Payload, nil
		}
		return e.failUnwrap(routererrors.IntegrityError(fmt.Errorf("checksum mismatch")))
	}

	if e.signing.Load() && pkt.Security == nil {
		return e.failUnwrapSignature(fmt.Errorf("missing security block"))
	}
	if pkt.Security != nil {
		if e.replay.Contains(pkt.Security.Nonce) {
			if e.metrics != nil {
				e.metrics.EnvelopeReplaysRejected.Inc()
			}
			e.recordOutcome(false, false)
			if e.metrics != nil {
				e.metrics.EnvelopeUnwrapFailures.Inc()
			}
			return nil, routererrors.ReplayDetected(pkt.Security.Nonce)
		}
		drift := e.clock.Now().Sub(pkt.Security.Timestamp)
		if drift < 0 {
			drift = -drift
		}
		if drift > e.cfg.MaxDrift {
			e.recordOutcome(false, false)
			if e.metrics != nil {
				e.metrics.EnvelopeUnwrapFailures.Inc()
			}
			return nil, routererrors.DriftExceeded(drift.Seconds())
		}

		key, err := crypto.DeriveSigningKey(e.cfg.SharedSecret, []byte(pkt.Metadata.Destination), signingInfo)
		if err != nil {
			return e.failUnwrapSignature(err)
		}
		signature, err := hex.DecodeString(pkt.Security.Signature)
		if err != nil || !crypto.Verify(key, canonical, signature) {
			return e.failUnwrapSignature(fmt.Errorf("signature mismatch"))
		}
		e.replay.Add(pkt.Security.Nonce, struct{}{})
	}

	e.recordOutcome(true, false)
	if e.metrics != nil {
		e.metrics.EnvelopeUnwrapped.Inc()
	}
	return pkt.Payload, nil
}

func (e *Envelope) failUnwrap(cause error) (any, error) {
	e.recordOutcome(false, false)
	if e.metrics != nil {
		e.metrics.EnvelopeUnwrapFailures.Inc()
	}
	return nil, cause
}

func (e *Envelope) failUnwrapSignature(cause error) (any, error) {
	if e.metrics != nil {
		e.metrics.EnvelopeSignatureFailures.Inc()
	}
	return e.failUnwrap(routererrors.SignatureError(cause))
}

// recordOutcome tallies one wrap/unwrap attempt toward the envelope's
// rolling failure rate and appends an Alert the first time a call
// pushes the rate across a warning or critical threshold.
func (e *Envelope) recordOutcome(success, _ bool) {
	ops := atomic.AddInt64(&e.ops, 1)
	var failures int64
	if !success {
		failures = atomic.AddInt64(&e.failures, 1)
	} else {
		failures = atomic.LoadInt64(&e.failures)
	}
	if ops < 20 {
		return
	}
	rate := float64(failures) / float64(ops)

	level := AlertLevel("")
	switch {
	case rate >= e.cfg.CritFailureRate:
		level = AlertCritical
	case rate >= e.cfg.WarnFailureRate:
		level = AlertWarning
	}
	if level == "" || level == e.lastLevel {
		return
	}

	e.mu.Lock()
	e.lastLevel = level
	e.alerts = append(e.alerts, Alert{Level: level, FailureRate: rate, At: e.clock.Now()})
	if len(e.alerts) > 100 {
		e.alerts = e.alerts[len(e.alerts)-100:]
	}
	e.mu.Unlock()
}

// Alerts returns a copy of the threshold-crossing alerts recorded so
// far, newest last.
func (e *Envelope) Alerts() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Alert, len(e.alerts))
	copy(out, e.alerts)
	return out
}

// priorityFor implements spec.md §4.7's priority selection table.
func priorityFor(packetType domainstp.PacketType, payload any) domainstp.Priority {
	switch packetType {
	case domainstp.TypeRoutingDecision:
		if confidence, ok := floatField(payload, "Confidence"); ok {
			switch {
			case confidence >= 0.9:
				return domainstp.PriorityHigh
			case confidence <= 0.3:
				return domainstp.PriorityCritical
			}
		}
	case domainstp.TypeFeedback:
		success, hasSuccess := boolField(payload, "Success")
		latency, hasLatency := floatField(payload, "LatencyMS")
		if hasLatency && latency > 5000 || (hasSuccess && !success) {
			return domainstp.PriorityCritical
		}
		if hasLatency && latency > 1000 {
			return domainstp.PriorityHigh
		}
	case domainstp.TypeHealth:
		if status, ok := stringField(payload, "Status"); ok {
			switch status {
			case "unhealthy":
				return domainstp.PriorityCritical
			case "degraded":
				return domainstp.PriorityHigh
			}
		}
	}
	return domainstp.PriorityNormal
}

func withoutChecksum(pkt domainstp.Packet) domainstp.Packet {
	pkt.Checksum = ""
	pkt.Security = nil
	pkt.ChecksumFailed = false
	return pkt
}

// canonicalBytes serializes v with sorted keys and no whitespace:
// encoding/json already sorts map[string]any keys lexicographically,
// so round-tripping through a generic value canonicalizes any struct.
func canonicalBytes(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

func sha256Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
