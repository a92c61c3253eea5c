// Package feedback is the Feedback Processor (spec.md §4.9): applies
// a FeedbackEvent to the Agent Registry and Q-Learning Updater,
// observes the outcome in the Karma Client, and emits a policy-update
// packet — all idempotent per feedback event ID.
package feedback

import (
	"context"
	"sync"
	"time"

	"github.com/nexarouter/core/domain/agent"
	"github.com/nexarouter/core/domain/decision"
	"github.com/nexarouter/core/domain/feedback"
	routererrors "github.com/nexarouter/core/infrastructure/errors"
	"github.com/nexarouter/core/infrastructure/metrics"
	"github.com/nexarouter/core/routing/karma"
	"github.com/nexarouter/core/routing/qlearn"
	"github.com/nexarouter/core/routing/registry"
)

// DecisionLookup resolves the decision a feedback event references.
type DecisionLookup func(decisionID string) (decision.Record, bool)

// PolicyUpdate is the payload of the policy_update packet emitted
// after a feedback event is applied (spec.md §4.9 step 4).
type PolicyUpdate struct {
	DecisionID     string
	AgentID        string
	QValueBefore   float64
	QValueAfter    float64
	QDelta         float64
	KarmaBefore    float64
	KarmaAfter     float64
	KarmaDelta     float64
	StrategyChange string // reserved; always empty in this release
	Timestamp      time.Time
}

// BusPublisher is the Telemetry Bus contract the processor publishes
// policy-update packets to, best-effort.
type BusPublisher interface {
	PublishPolicyUpdate(ctx context.Context, update PolicyUpdate) error
}

// Result reports what Apply did, including whether this call was a
// no-op repeat of an already-applied feedback event.
type Result struct {
	Duplicate bool
	Update    PolicyUpdate
}

// Processor applies feedback events against the shared registry,
// updater, and karma client.
type Processor struct {
	registry *registry.Registry
	updater  *qlearn.Updater
	karma    *karma.Client
	lookup   DecisionLookup
	bus      BusPublisher
	metrics  *metrics.Metrics

	mu   sync.Mutex
	seen map[string]Result
}

// New constructs a Processor. karmaClient and bus may be nil.
func New(reg *registry.Registry, updater *qlearn.Updater, karmaClient *karma.Client, lookup DecisionLookup, bus BusPublisher, m *metrics.Metrics) *Processor {
	return &Processor{
		registry: reg,
		updater:  updater,
		karma:    karmaClient,
		lookup:   lookup,
		bus:      bus,
		metrics:  m,
		seen:     make(map[string]Result),
	}
}

// Apply runs the five-step algorithm of spec.md §4.9. Re-applying the
// same event ID is a no-op that returns the original result with
// Duplicate set, and is counted via FeedbackDuplicates.
func (p *Processor) Apply(ctx context.Context, ev feedback.Event) (Result, error) {
	p.mu.Lock()
	if existing, ok := p.seen[ev.ID]; ok {
		p.mu.Unlock()
		if p.metrics != nil {
			p.metrics.FeedbackDuplicates.Inc()
		}
		existing.Duplicate = true
		return existing, nil
	}
	p.mu.Unlock()

	rec, ok := p.lookup(ev.DecisionID)
	if !ok {
		if p.metrics != nil {
			p.metrics.RecordError(string(routererrors.CodeNotFound), "feedback")
		}
		return Result{}, routererrors.NotFound("decision", ev.DecisionID)
	}

	agentID := rec.SelectedAgent

	// Step 1: update_counters on the winning agent.
	if err := p.registry.UpdateCounters(agentID, agent.Outcome{Success: ev.Success, LatencyMS: ev.LatencyMS}); err != nil {
		if p.metrics != nil {
			p.metrics.RecordError(string(routererrors.CodeNotFound), "feedback")
		}
		return Result{}, err
	}

	// Step 2: ask the Updater to apply the reward. next_state reuses
	// the decision's state: the feedback event carries no transition.
	reward := qlearn.Reward(ev.Success, ev.LatencyMS, ev.Accuracy, ev.UserSatisfaction)
	qBefore := p.updater.Value(rec.EncodedState, agentID)
	qAfter, _ := p.updater.Apply(ctx, rec.EncodedState, rec.EncodedState, agentID, reward)

	// Step 3: ask Karma Client to observe_performance.
	var karmaBefore, karmaAfter float64
	if p.karma != nil {
		if entry, ok := p.karma.Entry(agentID); ok {
			karmaBefore = entry.Normalized()
		}
		updatedAgent, _ := p.registry.Get(agentID)
		p.karma.ObservePerformance(agentID, updatedAgent.Counters.PerformanceScore)
		if entry, ok := p.karma.Entry(agentID); ok {
			karmaAfter = entry.Normalized()
		}
	}

	update := PolicyUpdate{
		DecisionID:   ev.DecisionID,
		AgentID:      agentID,
		QValueBefore: qBefore,
		QValueAfter:  qAfter,
		QDelta:       qAfter - qBefore,
		KarmaBefore:  karmaBefore,
		KarmaAfter:   karmaAfter,
		KarmaDelta:   karmaAfter - karmaBefore,
		Timestamp:    time.Now(),
	}

	// Step 4: emit the policy_update packet, best-effort.
	if p.bus != nil {
		if err := p.bus.PublishPolicyUpdate(ctx, update); err != nil && p.metrics != nil {
			p.metrics.RecordError(string(routererrors.CodeInternal), "telemetry_bus")
		}
	}

	// Step 5 (ε decay) happens inside updater.Apply above.

	result := Result{Update: update}
	p.mu.Lock()
	p.seen[ev.ID] = result
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.FeedbackTotal.WithLabelValues(boolLabel(ev.Success)).Inc()
	}
	return result, nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
