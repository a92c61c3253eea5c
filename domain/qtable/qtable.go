// Package qtable defines the (state, action) → value table the
// Q-Learning Updater owns (spec.md §3, §4.4).
package qtable

// Key identifies one (state, action) bucket. State is a schema-tagged
// encoded string from §4.5; Action is an agent ID.
type Key struct {
	State  string
	Action string
}

// Table is a plain snapshot of the learned values, used for
// persistence and for computing max_a' Q(s', a'). It is not
// safe for concurrent mutation — see routing/qlearn.Updater for the
// locked, live table.
type Table map[Key]float64

// MaxForState returns the maximum value among all actions recorded
// under state, and whether any entry exists. Per spec.md §4.4, "if
// the max is over zero known actions, it defaults to 0."
func (t Table) MaxForState(state string) (float64, bool) {
	max := 0.0
	found := false
	for k, v := range t {
		if k.State != state {
			continue
		}
		if !found || v > max {
			max = v
			found = true
		}
	}
	return max, found
}

// Snapshot returns a copy of the table, safe for the caller to read
// or serialize without racing further updates.
func (t Table) Snapshot() Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
