// Package bus is the Telemetry Bus (spec.md §4.8): a single-writer,
// multi-reader fan-out of signed STP packets with a bounded ring
// buffer, per-subscriber bounded queues, and per-subscriber rate caps.
package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	domainstp "github.com/nexarouter/core/domain/stp"
	"github.com/nexarouter/core/infrastructure/config"
	routererrors "github.com/nexarouter/core/infrastructure/errors"
	"github.com/nexarouter/core/infrastructure/identity"
	"github.com/nexarouter/core/infrastructure/metrics"
	"github.com/nexarouter/core/infrastructure/ratelimit"
)

type ringEntry struct {
	seq    int64
	packet domainstp.Packet
	stored time.Time
}

type subscriber struct {
	id      string
	queue   chan domainstp.Packet
	limiter *ratelimit.RateLimiter
	dropped uint64 // atomic
}

// Subscription is the handle returned by Subscribe. Packets() yields
// the replayed backlog followed by live packets, in publish order.
type Subscription struct {
	id  string
	bus *Bus
	ch  <-chan domainstp.Packet
}

func (s *Subscription) Packets() <-chan domainstp.Packet { return s.ch }

// Unsubscribe is idempotent and releases the subscriber's queue.
func (s *Subscription) Unsubscribe() { s.bus.unsubscribe(s.id) }

// Bus is the process-wide broadcaster.
type Bus struct {
	cfg     config.BusConfig
	metrics *metrics.Metrics

	ringMu sync.RWMutex
	ring   []ringEntry
	seq    int64

	subsMu sync.Mutex
	subs   map[string]*subscriber
}

// New constructs a Bus from its configuration (spec.md §4.8 defaults).
func New(cfg config.BusConfig, m *metrics.Metrics) *Bus {
	return &Bus{
		cfg:     cfg,
		metrics: m,
		ring:    make([]ringEntry, 0, cfg.BufferSize),
		subs:    make(map[string]*subscriber),
	}
}

// Publish appends pkt to the ring and attempts a non-blocking hand-off
// to every subscriber; the publisher never blocks on a slow or full
// subscriber (spec.md §4.8).
func (b *Bus) Publish(ctx context.Context, pkt domainstp.Packet) error {
	entry := ringEntry{packet: pkt, stored: time.Now()}

	b.ringMu.Lock()
	b.seq++
	entry.seq = b.seq
	b.ring = append(b.ring, entry)
	if len(b.ring) > b.cfg.BufferSize {
		b.ring = b.ring[len(b.ring)-b.cfg.BufferSize:]
	}
	b.ringMu.Unlock()

	if b.metrics != nil {
		b.metrics.BusPublished.Inc()
	}

	b.subsMu.Lock()
	snapshot := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		snapshot = append(snapshot, s)
	}
	b.subsMu.Unlock()

	for _, s := range snapshot {
		b.deliver(s, pkt)
	}
	return nil
}

func (b *Bus) deliver(s *subscriber, pkt domainstp.Packet) {
	if !s.limiter.Allow() {
		atomic.AddUint64(&s.dropped, 1)
		if b.metrics != nil {
			b.metrics.BusDropped.WithLabelValues(s.id, "rate_limited").Inc()
		}
		return
	}
	select {
	case s.queue <- pkt:
	default:
		atomic.AddUint64(&s.dropped, 1)
		if b.metrics != nil {
			b.metrics.BusDropped.WithLabelValues(s.id, "queue_full").Inc()
		}
	}
}

// Subscribe registers a new subscriber, replays the non-stale ring
// backlog into its queue, then returns a handle for live packets
// (spec.md §4.8).
func (b *Bus) Subscribe(ctx context.Context) (*Subscription, error) {
	b.subsMu.Lock()
	if len(b.subs) >= b.cfg.MaxSubscribers {
		b.subsMu.Unlock()
		return nil, routererrors.CapacityExceeded(b.cfg.MaxSubscribers)
	}
	id := identity.NewID()
	sub := &subscriber{
		id:      id,
		queue:   make(chan domainstp.Packet, b.cfg.SubscriberQueue),
		limiter: ratelimit.New(ratelimit.Config{RequestsPerSecond: b.cfg.RateLimitPerSec, Burst: int(b.cfg.RateLimitPerSec)}),
	}
	b.subs[id] = sub
	count := len(b.subs)
	b.subsMu.Unlock()

	if b.metrics != nil {
		b.metrics.BusSubscribers.Set(float64(count))
	}

	b.ringMu.RLock()
	backlog := make([]ringEntry, len(b.ring))
	copy(backlog, b.ring)
	b.ringMu.RUnlock()

	now := time.Now()
	for _, e := range backlog {
		if now.Sub(e.stored) > b.cfg.MaxPacketAge {
			continue
		}
		b.deliver(sub, e.packet)
	}

	return &Subscription{id: id, bus: b, ch: sub.queue}, nil
}

func (b *Bus) unsubscribe(id string) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	count := len(b.subs)
	close(sub.queue)
	if b.metrics != nil {
		b.metrics.BusSubscribers.Set(float64(count))
	}
}

// SubscriberCount reports the current number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	return len(b.subs)
}

// Dropped reports how many packets a given subscriber has lost to a
// full queue or its rate cap. Returns 0 for an unknown subscriber.
func (s *Subscription) Dropped() uint64 {
	s.bus.subsMu.Lock()
	defer s.bus.subsMu.Unlock()
	if sub, ok := s.bus.subs[s.id]; ok {
		return atomic.LoadUint64(&sub.dropped)
	}
	return 0
}
