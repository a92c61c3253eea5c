// Package agent defines the Agent type the registry manages: identity,
// lifecycle status, capability descriptors, and the running counters
// the Feedback Processor mutates (spec.md §3, §4.1).
package agent

import "time"

// Status is the agent's lifecycle state. Agents not Active are
// invisible to selection but still accept feedback.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusMaintenance Status = "maintenance"
)

// Capability describes one thing an agent can do, with an optional
// confidence threshold the Scoring Engine checks against the request.
type Capability struct {
	Name               string
	ConfidenceThreshold float64
}

// Counters are the running, monotone-non-decreasing performance
// statistics mutated exclusively by the Feedback Processor via
// update_counters (spec.md §4.1). SuccessfulRequests + FailedRequests
// never exceeds TotalRequests.
type Counters struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	AvgLatencyMS       float64
	SuccessRate        float64
	PerformanceScore   float64
}

// Agent is the registry's unit of record. Created by administrative
// action, mutated only by the Feedback Processor, never destroyed
// while referenced by a decision record.
type Agent struct {
	ID           string
	Name         string
	Type         string // open set, e.g. "nlp", "tts", "vision", "custom"
	Status       Status
	Capabilities []Capability
	Counters     Counters
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns a deep-enough copy safe for callers to read without
// racing registry mutations; used by Registry.List/Get so callers
// cannot mutate internal state (spec.md §4.1).
func (a Agent) Clone() Agent {
	caps := make([]Capability, len(a.Capabilities))
	copy(caps, a.Capabilities)
	clone := a
	clone.Capabilities = caps
	return clone
}

// HasCapability reports whether the agent advertises name and, if it
// specifies a confidence threshold, that minConfidence meets it.
func (a Agent) HasCapability(name string, minConfidence float64) (covered bool, partial float64) {
	for _, c := range a.Capabilities {
		if c.Name != name {
			continue
		}
		if c.ConfidenceThreshold == 0 || minConfidence >= c.ConfidenceThreshold {
			return true, 1.0
		}
		// Partial credit: how close the request's floor is to the
		// capability's own threshold.
		if c.ConfidenceThreshold > 0 {
			return false, clamp01(minConfidence / c.ConfidenceThreshold)
		}
	}
	return false, 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Outcome is what update_counters folds into an agent's running
// statistics after one request completes.
type Outcome struct {
	Success   bool
	LatencyMS float64
}
