// Package decision defines the immutable Decision Record the Decision
// Engine produces for every request (spec.md §3, §4.3).
package decision

import "time"

// Breakdown is the per-component confidence tie-break the Scoring
// Engine produced for the winning agent.
type Breakdown struct {
	Rule         float64
	Feedback     float64
	Availability float64
	Karma        float64
}

// Alternative is a runner-up candidate carried alongside the winner.
type Alternative struct {
	AgentID    string
	Confidence float64
}

// Record is immutable after creation. Exactly one agent is selected;
// Alternatives never include the selected agent; confidences are
// sorted descending (spec.md §3).
type Record struct {
	RequestID     string
	Timestamp     time.Time
	EncodedState  string
	SelectedAgent string
	Confidence    float64
	Breakdown     Breakdown
	Alternatives  []Alternative
	Explored      bool
	Strategy      string
	ContextDigest string
}
