package bus

import (
	"context"
	"testing"
	"time"

	domainstp "github.com/nexarouter/core/domain/stp"
	"github.com/nexarouter/core/infrastructure/config"
	routererrors "github.com/nexarouter/core/infrastructure/errors"
)

func testCfg() config.BusConfig {
	return config.BusConfig{
		BufferSize:      4,
		SubscriberQueue: 4,
		RateLimitPerSec: 1000,
		MaxSubscribers:  2,
		MaxPacketAge:    time.Minute,
	}
}

func testPacket(destination string) domainstp.Packet {
	return domainstp.Packet{
		Version:   "1.0",
		Token:     "stp-test",
		Timestamp: time.Now(),
		Type:      domainstp.TypeHealth,
		Metadata:  domainstp.Metadata{Source: "core", Destination: destination},
		Payload:   map[string]string{"status": "healthy"},
		Checksum:  "deadbeef",
	}
}

func TestSubscribeReceivesLivePublish(t *testing.T) {
	b := New(testCfg(), nil)
	sub, err := b.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Unsubscribe()

	if err := b.Publish(context.Background(), testPacket("a")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case pkt := <-sub.Packets():
		if pkt.Metadata.Destination != "a" {
			t.Errorf("got destination %q, want %q", pkt.Metadata.Destination, "a")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published packet")
	}
}

func TestSubscribeReplaysRingBacklog(t *testing.T) {
	b := New(testCfg(), nil)
	for i := 0; i < 3; i++ {
		_ = b.Publish(context.Background(), testPacket("a"))
	}

	sub, err := b.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Unsubscribe()

	for i := 0; i < 3; i++ {
		select {
		case <-sub.Packets():
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for replayed packet %d", i)
		}
	}
}

func TestSubscribeExcludesStaleBacklog(t *testing.T) {
	cfg := testCfg()
	cfg.MaxPacketAge = time.Millisecond
	b := New(cfg, nil)
	_ = b.Publish(context.Background(), testPacket("a"))
	time.Sleep(5 * time.Millisecond)

	sub, err := b.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Unsubscribe()

	select {
	case pkt := <-sub.Packets():
		t.Fatalf("got unexpected replayed packet %+v, want none (stale)", pkt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeRejectsOverCapacity(t *testing.T) {
	b := New(testCfg(), nil)
	sub1, err := b.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe() 1st error = %v", err)
	}
	defer sub1.Unsubscribe()
	sub2, err := b.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe() 2nd error = %v", err)
	}
	defer sub2.Unsubscribe()

	_, err = b.Subscribe(context.Background())
	if !routererrors.Is(err, routererrors.CodeCapacityExceeded) {
		t.Errorf("3rd Subscribe() error = %v, want CodeCapacityExceeded", err)
	}
}

func TestPublishDropsWhenSubscriberQueueFull(t *testing.T) {
	cfg := testCfg()
	cfg.SubscriberQueue = 1
	cfg.BufferSize = 1
	b := New(cfg, nil)
	sub, err := b.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Unsubscribe()

	for i := 0; i < 5; i++ {
		_ = b.Publish(context.Background(), testPacket("a"))
	}

	if got := sub.Dropped(); got == 0 {
		t.Errorf("Dropped() = 0, want > 0 after overfilling a 1-slot queue")
	}
}

func TestUnsubscribeIsIdempotentAndFreesCapacity(t *testing.T) {
	b := New(testCfg(), nil)
	sub, err := b.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent, must not panic

	if got := b.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() = %d, want 0 after unsubscribe", got)
	}

	sub2, err := b.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe() after unsubscribe error = %v", err)
	}
	sub2.Unsubscribe()
}

func TestPublishNeverBlocksWithNoSubscribers(t *testing.T) {
	b := New(testCfg(), nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = b.Publish(context.Background(), testPacket("a"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish() blocked with no subscribers")
	}
}
