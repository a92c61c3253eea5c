// Package statekey implements the Decision Engine's state encoding
// (spec.md §4.5): a stable, order-independent string that discretizes
// request context for the Q-table.
package statekey

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SchemaTag prefixes every encoded state; bumping it is a schema
// change that namespaces the Q-table (spec.md §4.5).
const SchemaTag = "v1"

// Request is the subset of request context the encoder reads. Unknown
// keys are ignored; the mandatory key set is closed and versioned.
type Request struct {
	InputType  string
	Complexity string // default "medium"
	Domain     string // default "general"
}

// LoadBucket buckets the current aggregate in-flight count into
// low/medium/high per spec.md §4.5.
func LoadBucket(inFlight, lowCeiling, mediumCeiling int) string {
	switch {
	case inFlight <= lowCeiling:
		return "low"
	case inFlight <= mediumCeiling:
		return "medium"
	default:
		return "high"
	}
}

// TimeBucket buckets a wall-clock time into morning/afternoon/evening/night.
func TimeBucket(t time.Time) string {
	h := t.Hour()
	switch {
	case h >= 5 && h < 12:
		return "morning"
	case h >= 12 && h < 17:
		return "afternoon"
	case h >= 17 && h < 21:
		return "evening"
	default:
		return "night"
	}
}

// Encode assembles the sorted key:value fragments and joins them with
// "|", prefixed by the schema tag (spec.md §4.5).
func Encode(req Request, loadBucket, timeBucket string) string {
	complexity := req.Complexity
	if complexity == "" {
		complexity = "medium"
	}
	domain := req.Domain
	if domain == "" {
		domain = "general"
	}

	fragments := []string{
		fmt.Sprintf("input_type:%s", req.InputType),
		fmt.Sprintf("complexity:%s", complexity),
		fmt.Sprintf("domain:%s", domain),
		fmt.Sprintf("load:%s", loadBucket),
		fmt.Sprintf("time:%s", timeBucket),
	}
	sort.Strings(fragments)

	return SchemaTag + ":" + strings.Join(fragments, "|")
}

// SchemaOf returns the schema tag prefix of an encoded state, e.g.
// "v1" for "v1:complexity:medium|...". Q-table keys carry this prefix,
// so entries of an older schema never share a state key with current
// ones (spec.md §4.5).
func SchemaOf(encoded string) string {
	idx := strings.Index(encoded, ":")
	if idx < 0 {
		return ""
	}
	return encoded[:idx]
}
