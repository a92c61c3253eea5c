package bus

import (
	"context"

	domaindecision "github.com/nexarouter/core/domain/decision"
	domainstp "github.com/nexarouter/core/domain/stp"
	"github.com/nexarouter/core/routing/feedback"
)

// Sealer wraps an arbitrary payload into a signed, checksummed STP
// packet. Implemented by *stp.Envelope; declared locally so this
// package never imports stp (stp already depends on nothing here,
// but keeping the dependency one-directional avoids a future cycle
// once stp starts consuming bus.Subscribe for alert fan-out).
type Sealer interface {
	Wrap(ctx context.Context, packetType domainstp.PacketType, source, destination string, payload any, requiresAck bool) (domainstp.Packet, error)
}

// TelemetryPublisher adapts a Bus and a Sealer to the narrow
// publisher interfaces routing/decide and routing/feedback depend on,
// so neither package needs to know about STP envelopes or the bus
// directly (spec.md §4.8's "every signed decision packet" contract).
type TelemetryPublisher struct {
	bus    *Bus
	sealer Sealer
}

// NewTelemetryPublisher builds a TelemetryPublisher over a Bus and the
// envelope sealer used to sign every packet before it is published.
func NewTelemetryPublisher(b *Bus, sealer Sealer) *TelemetryPublisher {
	return &TelemetryPublisher{bus: b, sealer: sealer}
}

// PublishRoutingDecision satisfies routing/decide.BusPublisher.
func (p *TelemetryPublisher) PublishRoutingDecision(ctx context.Context, record domaindecision.Record) error {
	pkt, err := p.sealer.Wrap(ctx, domainstp.TypeRoutingDecision, "decide", "bus", record, false)
	if err != nil {
		return err
	}
	return p.bus.Publish(ctx, pkt)
}

// PublishPolicyUpdate satisfies routing/feedback.BusPublisher.
func (p *TelemetryPublisher) PublishPolicyUpdate(ctx context.Context, update feedback.PolicyUpdate) error {
	pkt, err := p.sealer.Wrap(ctx, domainstp.TypePolicyUpdate, "feedback", "bus", update, false)
	if err != nil {
		return err
	}
	return p.bus.Publish(ctx, pkt)
}

// PublishHealth seals and publishes a health snapshot (spec.md §6.3).
func (p *TelemetryPublisher) PublishHealth(ctx context.Context, snapshot any) error {
	pkt, err := p.sealer.Wrap(ctx, domainstp.TypeHealth, "health", "bus", snapshot, false)
	if err != nil {
		return err
	}
	return p.bus.Publish(ctx, pkt)
}
