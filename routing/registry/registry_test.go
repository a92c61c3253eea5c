package registry

import (
	"sync"
	"testing"

	"github.com/nexarouter/core/domain/agent"
	routererrors "github.com/nexarouter/core/infrastructure/errors"
)

func newTestAgent(id string, status agent.Status) agent.Agent {
	return agent.Agent{ID: id, Type: "nlp", Status: status}
}

func TestGetNotFound(t *testing.T) {
	r := New()
	_, err := r.Get("missing")
	if !routererrors.Is(err, routererrors.CodeNotFound) {
		t.Errorf("Get() error = %v, want CodeNotFound", err)
	}
}

func TestCandidatesFiltersInactiveAndType(t *testing.T) {
	r := New()
	r.Register(newTestAgent("a1", agent.StatusActive))
	r.Register(newTestAgent("a2", agent.StatusInactive))
	a3 := newTestAgent("a3", agent.StatusActive)
	a3.Type = "vision"
	r.Register(a3)

	cands := r.Candidates("nlp", nil)
	if len(cands) != 1 || cands[0].ID != "a1" {
		t.Errorf("Candidates() = %+v, want only a1", cands)
	}
}

func TestUpdateCountersComputesPerformanceScore(t *testing.T) {
	r := New()
	r.Register(newTestAgent("a1", agent.StatusActive))

	if err := r.UpdateCounters("a1", agent.Outcome{Success: true, LatencyMS: 0}); err != nil {
		t.Fatalf("UpdateCounters() error = %v", err)
	}
	got, _ := r.Get("a1")
	if got.Counters.TotalRequests != 1 || got.Counters.SuccessfulRequests != 1 {
		t.Errorf("counters = %+v", got.Counters)
	}
	// success_rate=1, latency_factor=1 → score=1.0
	if got.Counters.PerformanceScore != 1.0 {
		t.Errorf("PerformanceScore = %v, want 1.0", got.Counters.PerformanceScore)
	}
}

func TestUpdateCountersNotFound(t *testing.T) {
	r := New()
	if err := r.UpdateCounters("missing", agent.Outcome{}); !routererrors.Is(err, routererrors.CodeNotFound) {
		t.Errorf("UpdateCounters() error = %v, want CodeNotFound", err)
	}
}

func TestListReturnsIndependentCopies(t *testing.T) {
	r := New()
	r.Register(newTestAgent("a1", agent.StatusActive))
	list := r.List(nil)
	list[0].Status = agent.StatusInactive
	got, _ := r.Get("a1")
	if got.Status != agent.StatusActive {
		t.Error("mutating List() result mutated registry state")
	}
}

func TestUpdateCountersConcurrentPerAgentIsLinearizable(t *testing.T) {
	r := New()
	r.Register(newTestAgent("a1", agent.StatusActive))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.UpdateCounters("a1", agent.Outcome{Success: true, LatencyMS: 10})
		}()
	}
	wg.Wait()

	got, _ := r.Get("a1")
	if got.Counters.TotalRequests != 100 {
		t.Errorf("TotalRequests = %d, want 100", got.Counters.TotalRequests)
	}
}
