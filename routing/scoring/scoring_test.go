package scoring

import (
	"math"
	"testing"

	"github.com/nexarouter/core/domain/agent"
	"github.com/nexarouter/core/infrastructure/config"
	routererrors "github.com/nexarouter/core/infrastructure/errors"
)

func defaultEngine(t *testing.T, karma KarmaLookup) *Engine {
	t.Helper()
	e, err := New(config.Default().Scoring, karma)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestNewRejectsBadBounds(t *testing.T) {
	cfg := config.Default().Scoring
	cfg.MinConfidence = 0.9
	cfg.MaxConfidence = 0.1
	_, err := New(cfg, nil)
	if !routererrors.Is(err, routererrors.CodeConfigError) {
		t.Errorf("New() error = %v, want CodeConfigError", err)
	}
}

func TestScoreExploitScenario(t *testing.T) {
	e := defaultEngine(t, nil) // no karma lookup -> neutral prior 0.5
	a := agent.Agent{ID: "A", Status: agent.StatusActive, Counters: agent.Counters{SuccessRate: 0.9}}
	ctx := Context{}

	confidence, rule, feedback, availability, karma := e.Score(a, ctx)
	if rule != 1.0 || feedback != 0.9 || availability != 1.0 || karma != 0.5 {
		t.Errorf("breakdown = %v %v %v %v", rule, feedback, availability, karma)
	}
	want := 0.30*1 + 0.35*0.9 + 0.20*1 + 0.15*0.5
	if math.Abs(confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", confidence, want)
	}
}

func TestScoreInactiveAgentHasZeroAvailability(t *testing.T) {
	e := defaultEngine(t, nil)
	a := agent.Agent{ID: "A", Status: agent.StatusMaintenance}
	_, _, _, availability, _ := e.Score(a, Context{})
	if availability != 0 {
		t.Errorf("availability = %v, want 0", availability)
	}
}

func TestNormalizeBoundedUnderHostileWeights(t *testing.T) {
	cfg := config.Default().Scoring
	cfg.Weights = config.ScoringWeights{Rule: 100, Feedback: 0, Availability: 0, Karma: 0}
	e, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a := agent.Agent{ID: "A", Status: agent.StatusActive}
	confidence, _, _, _, _ := e.Score(a, Context{})
	if confidence < cfg.MinConfidence || confidence > cfg.MaxConfidence {
		t.Errorf("confidence = %v, want within [%v,%v]", confidence, cfg.MinConfidence, cfg.MaxConfidence)
	}
	if math.IsNaN(confidence) || math.IsInf(confidence, 0) {
		t.Errorf("confidence = %v, want finite", confidence)
	}
}

func TestKarmaLookupUsedWhenAvailable(t *testing.T) {
	e := defaultEngine(t, func(agentID string) (float64, bool) {
		return 0.9, true
	})
	a := agent.Agent{ID: "A", Status: agent.StatusActive}
	_, _, _, _, karma := e.Score(a, Context{})
	if karma != 0.9 {
		t.Errorf("karma = %v, want 0.9", karma)
	}
}
