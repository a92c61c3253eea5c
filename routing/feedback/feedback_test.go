package feedback

import (
	"context"
	"testing"

	"github.com/nexarouter/core/domain/agent"
	"github.com/nexarouter/core/domain/decision"
	domainfeedback "github.com/nexarouter/core/domain/feedback"
	routererrors "github.com/nexarouter/core/infrastructure/errors"
	"github.com/nexarouter/core/infrastructure/config"
	"github.com/nexarouter/core/routing/qlearn"
	"github.com/nexarouter/core/routing/registry"
)

func newTestProcessor(t *testing.T) (*Processor, *registry.Registry, *qlearn.Updater) {
	t.Helper()
	reg := registry.New()
	reg.Register(agent.Agent{ID: "A", Type: "text", Status: agent.StatusActive})
	updater := qlearn.New(config.Default().QLearn, nil, nil, nil)

	decisions := map[string]decision.Record{
		"d1": {RequestID: "d1", SelectedAgent: "A", EncodedState: "v1:x"},
	}
	lookup := func(id string) (decision.Record, bool) {
		r, ok := decisions[id]
		return r, ok
	}

	return New(reg, updater, nil, lookup, nil, nil), reg, updater
}

func TestApplyUnknownDecisionReturnsNotFound(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	_, err := p.Apply(context.Background(), domainfeedback.Event{ID: "f1", DecisionID: "missing"})
	if !routererrors.Is(err, routererrors.CodeNotFound) {
		t.Errorf("Apply() error = %v, want CodeNotFound", err)
	}
}

func TestApplyUpdatesCountersAndQValue(t *testing.T) {
	p, reg, updater := newTestProcessor(t)
	accuracy := 0.9
	_, err := p.Apply(context.Background(), domainfeedback.Event{
		ID: "f1", DecisionID: "d1", Success: true, LatencyMS: 100, Accuracy: &accuracy,
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	got, _ := reg.Get("A")
	if got.Counters.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", got.Counters.TotalRequests)
	}
	if updater.Value("v1:x", "A") == 0 {
		t.Error("Q-value was not updated")
	}
}

func TestApplySameIDTwiceIsIdempotent(t *testing.T) {
	p, reg, updater := newTestProcessor(t)
	ev := domainfeedback.Event{ID: "f1", DecisionID: "d1", Success: true, LatencyMS: 50}

	first, err := p.Apply(context.Background(), ev)
	if err != nil {
		t.Fatalf("first Apply() error = %v", err)
	}
	if first.Duplicate {
		t.Error("first application reported as duplicate")
	}

	qAfterFirst := updater.Value("v1:x", "A")
	second, err := p.Apply(context.Background(), ev)
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if !second.Duplicate {
		t.Error("repeated feedback ID should be reported as duplicate")
	}

	got, _ := reg.Get("A")
	if got.Counters.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d after duplicate feedback, want 1 (no-op)", got.Counters.TotalRequests)
	}
	if updater.Value("v1:x", "A") != qAfterFirst {
		t.Error("duplicate feedback changed the Q-value")
	}
}
