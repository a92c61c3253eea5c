package decisionlog

import (
	"context"
	"testing"
	"time"

	"github.com/nexarouter/core/domain/decision"
	"github.com/nexarouter/core/infrastructure/config"
	"github.com/nexarouter/core/infrastructure/state"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	cfg := config.Default().DecisionLog
	cfg.RetentionDays = 1
	return New(cfg, state.NewMemoryBackend(0), nil)
}

func TestAppendAndRecordsRoundTrip(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r := decision.Record{RequestID: "req", Timestamp: time.Now(), SelectedAgent: "agent-a"}
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	records, err := s.Records(ctx)
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(Records()) = %d, want 3", len(records))
	}
}

func TestRecordsEmptyWhenNothingAppended(t *testing.T) {
	s := newTestSink(t)
	records, err := s.Records(context.Background())
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len(Records()) = %d, want 0", len(records))
	}
}

func TestPruneRemovesOnlyExpiredRecords(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	old := decision.Record{RequestID: "old", Timestamp: time.Now().AddDate(0, 0, -5), SelectedAgent: "agent-a"}
	fresh := decision.Record{RequestID: "fresh", Timestamp: time.Now(), SelectedAgent: "agent-b"}
	if err := s.Append(ctx, old); err != nil {
		t.Fatalf("Append(old) error = %v", err)
	}
	if err := s.Append(ctx, fresh); err != nil {
		t.Fatalf("Append(fresh) error = %v", err)
	}

	s.prune(ctx)

	records, err := s.Records(ctx)
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(Records()) after prune = %d, want 1", len(records))
	}
	if records[0].RequestID != "fresh" {
		t.Errorf("surviving record = %q, want %q", records[0].RequestID, "fresh")
	}
}

func TestStartStopRetentionIsIdempotent(t *testing.T) {
	s := newTestSink(t)
	if err := s.StartRetention(context.Background()); err != nil {
		t.Fatalf("StartRetention() error = %v", err)
	}
	if err := s.StartRetention(context.Background()); err != nil {
		t.Fatalf("StartRetention() 2nd call error = %v", err)
	}
	s.StopRetention()
	s.StopRetention() // idempotent, must not panic
}
