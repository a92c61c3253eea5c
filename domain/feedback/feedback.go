// Package feedback defines the FeedbackEvent the transport hands to
// the Feedback Processor (spec.md §3, §4.9).
package feedback

import "time"

// Event references the decision it reports on. At most one Event may
// be applied to the learner per decision; a duplicate is a no-op
// (spec.md §3, §8).
type Event struct {
	ID                 string
	DecisionID         string
	Success            bool
	LatencyMS          float64
	Accuracy           *float64
	UserSatisfaction   *int // 1..5
	ErrorCode          string
	Timestamp          time.Time
}
