package core

import (
	"context"

	"github.com/nexarouter/core/domain/decision"
	domainstp "github.com/nexarouter/core/domain/stp"
)

// togglableSealer satisfies bus.Sealer by delegating to the Core's
// Envelope, which already consults its own runtime signing toggle
// (spec.md §6's toggle_signing); this indirection exists only so the
// bus package never imports stp directly.
type togglableSealer struct {
	core *Core
}

func (s *togglableSealer) Wrap(ctx context.Context, packetType domainstp.PacketType, source, destination string, payload any, requiresAck bool) (domainstp.Packet, error) {
	return s.core.Envelope.Wrap(ctx, packetType, source, destination, payload, requiresAck)
}

// recordingLogSink satisfies routing/decide.LogSink: it durably appends
// every decision record and also indexes it in memory so the Feedback
// Processor can resolve a decision ID without re-reading the log.
type recordingLogSink struct {
	core *Core
}

func (s *recordingLogSink) Append(ctx context.Context, record decision.Record) error {
	s.core.mu.Lock()
	s.core.decisions[record.RequestID] = record
	s.core.mu.Unlock()
	return s.core.DecisionLog.Append(ctx, record)
}
