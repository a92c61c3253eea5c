package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nexarouter/core/domain/agent"
	domainfeedback "github.com/nexarouter/core/domain/feedback"
	"github.com/nexarouter/core/infrastructure/config"
	"github.com/nexarouter/core/infrastructure/logging"
	"github.com/nexarouter/core/routing/decide"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.QLearn.PersistencePath = filepath.Join(dir, "qtable")
	cfg.DecisionLog.Path = filepath.Join(dir, "decisions")

	c, err := New(cfg, nil, nil, logging.New("test", "error", "text"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	c.Registry.Register(agent.Agent{
		ID:     "agent-a",
		Name:   "Agent A",
		Type:   "nlp",
		Status: agent.StatusActive,
	})
	c.Registry.Register(agent.Agent{
		ID:     "agent-b",
		Name:   "Agent B",
		Type:   "nlp",
		Status: agent.StatusActive,
	})
	return c
}

func TestCoreDecideAndFeedbackEndToEnd(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	record, err := c.Decide.Decide(ctx, decide.Request{InputType: "nlp", Strategy: decide.StrategyPerformanceBased})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if record.SelectedAgent == "" {
		t.Fatal("Decide() selected no agent")
	}

	records, err := c.DecisionLog.Records(ctx)
	if err != nil {
		t.Fatalf("DecisionLog.Records() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(Records()) = %d, want 1", len(records))
	}

	accuracy := 0.9
	event := domainfeedback.Event{
		ID:         "evt-1",
		DecisionID: record.RequestID,
		Success:    true,
		LatencyMS:  120,
		Accuracy:   &accuracy,
		Timestamp:  time.Now(),
	}

	result, err := c.Feedback.Apply(ctx, event)
	if err != nil {
		t.Fatalf("Feedback.Apply() error = %v", err)
	}
	if result.Duplicate {
		t.Error("first Apply() reported Duplicate = true")
	}

	result2, err := c.Feedback.Apply(ctx, event)
	if err != nil {
		t.Fatalf("Feedback.Apply() 2nd call error = %v", err)
	}
	if !result2.Duplicate {
		t.Error("repeated Apply() with same event ID did not report Duplicate")
	}
}

func TestCoreAdminToggles(t *testing.T) {
	c := newTestCore(t)

	c.ToggleKarma(false)
	if _, ok := c.Karma.Entry("agent-a"); ok {
		t.Error("Entry() returned ok=true for an agent with no cached karma")
	}

	c.ToggleSigning(false)
	if c.Envelope == nil {
		t.Fatal("Envelope is nil")
	}

	c.ClearKarmaCache("")
	c.ClearKarmaCache("agent-a")

	if err := c.ForceSave(context.Background()); err != nil {
		t.Errorf("ForceSave() error = %v", err)
	}
}

func TestCoreHealthSnapshotAggregates(t *testing.T) {
	c := newTestCore(t)
	snap := c.Health.Snapshot()
	if len(snap.Components) == 0 {
		t.Fatal("Snapshot() returned no components")
	}
}

