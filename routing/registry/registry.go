// Package registry is the Agent Registry (spec.md §4.1): the
// authoritative set of agents with live performance counters, looked
// up by ID and by type tag. Its locking idiom — one mutex per hot map
// plus per-entry locks for counter mutation — follows the teacher's
// system/core registry.
package registry

import (
	"sort"
	"sync"

	"github.com/nexarouter/core/domain/agent"
	routererrors "github.com/nexarouter/core/infrastructure/errors"
)

// LatencyReferenceMS is the default performance-score latency
// normalization constant (spec.md §4.1); Registry accepts an override
// via WithLatencyReference.
const LatencyReferenceMS = 1000.0

// Registry holds every known agent, keyed by ID. Each agent ID has its
// own lock (via the per-entry mutex embedded in entry) so counter
// updates for one agent never block lookups or updates for another —
// spec.md §5's "exclusive lock per agent ID" shared-resource policy.
type Registry struct {
	mu               sync.RWMutex
	entries          map[string]*entry
	latencyReference float64
}

type entry struct {
	mu    sync.Mutex
	agent agent.Agent
}

// New creates an empty Registry using the default latency reference.
func New() *Registry {
	return &Registry{
		entries:          make(map[string]*entry),
		latencyReference: LatencyReferenceMS,
	}
}

// WithLatencyReference overrides LATENCY_REFERENCE_MS (spec.md §4.1).
func (r *Registry) WithLatencyReference(ms float64) *Registry {
	if ms > 0 {
		r.latencyReference = ms
	}
	return r
}

// Register adds or replaces an agent by ID. Created by administrative
// action; the registry does not validate uniqueness beyond overwrite.
func (r *Registry) Register(a agent.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[a.ID] = &entry{agent: a}
}

// Remove deletes an agent from the registry. Per spec.md §3, callers
// must ensure no decision record still references it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// List returns a snapshot of every agent, optionally filtered by
// status. Callers receive copies and cannot mutate internal state.
func (r *Registry) List(statusFilter *agent.Status) []agent.Agent {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	ents := make([]*entry, 0, len(r.entries))
	for id, e := range r.entries {
		ids = append(ids, id)
		ents = append(ents, e)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	byID := make(map[string]*entry, len(ents))
	for _, e := range ents {
		byID[e.agent.ID] = e
	}

	out := make([]agent.Agent, 0, len(ids))
	for _, id := range ids {
		e := byID[id]
		e.mu.Lock()
		a := e.agent.Clone()
		e.mu.Unlock()
		if statusFilter != nil && a.Status != *statusFilter {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Get returns a copy of the agent with id, or NotFound.
func (r *Registry) Get(id string) (agent.Agent, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return agent.Agent{}, routererrors.NotFound("agent", id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agent.Clone(), nil
}

// Candidates returns active agents matching typeTag and, if
// minPerformance is non-nil, meeting that performance floor. Order is
// unspecified (spec.md §4.1).
func (r *Registry) Candidates(typeTag string, minPerformance *float64) []agent.Agent {
	active := agent.StatusActive
	all := r.List(&active)
	out := make([]agent.Agent, 0, len(all))
	for _, a := range all {
		if a.Type != typeTag {
			continue
		}
		if minPerformance != nil && a.Counters.PerformanceScore < *minPerformance {
			continue
		}
		out = append(out, a)
	}
	return out
}

// UpdateCounters atomically folds outcome into the agent's running
// statistics: total/success/fail, EWMA latency (α=0.1), success rate,
// and the derived performance score (spec.md §4.1).
func (r *Registry) UpdateCounters(id string, outcome agent.Outcome) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return routererrors.NotFound("agent", id)
	}

	const ewmaAlpha = 0.1

	e.mu.Lock()
	defer e.mu.Unlock()

	c := &e.agent.Counters
	c.TotalRequests++
	if outcome.Success {
		c.SuccessfulRequests++
	} else {
		c.FailedRequests++
	}

	if c.TotalRequests == 1 {
		c.AvgLatencyMS = outcome.LatencyMS
	} else {
		c.AvgLatencyMS = ewmaAlpha*outcome.LatencyMS + (1-ewmaAlpha)*c.AvgLatencyMS
	}

	c.SuccessRate = float64(c.SuccessfulRequests) / float64(c.TotalRequests)
	c.PerformanceScore = r.performanceScore(c.SuccessRate, c.AvgLatencyMS)

	return nil
}

func (r *Registry) performanceScore(successRate, avgLatencyMS float64) float64 {
	latencyFactor := clamp(1-avgLatencyMS/r.latencyReference, 0, 1)
	return 0.5*successRate + 0.5*latencyFactor
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
