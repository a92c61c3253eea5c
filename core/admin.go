package core

import "context"

// ToggleKarma enables or disables karma consultation for both scoring
// and Q-value blending without restarting the process (spec.md §6).
// Disabling it makes the scoring and Q-value karma lookups behave as
// if the upstream were Unavailable; the scoring engine substitutes its
// neutral prior as usual. The Feedback Processor's own karma calls are
// not gated by this toggle.
func (c *Core) ToggleKarma(enabled bool) {
	c.karmaEnabled.Store(enabled)
}

// ToggleSigning enables or disables STP signing for newly wrapped
// packets (spec.md §6). Verification of already-signed packets is
// unaffected; see stp.Envelope.SetSigningEnabled.
func (c *Core) ToggleSigning(enabled bool) {
	c.signingEnabled.Store(enabled)
	c.Envelope.SetSigningEnabled(enabled)
}

// ForceSave flushes the Q-table to persistent storage immediately,
// bypassing the dirty/time-based save triggers (spec.md §4.4, §6).
func (c *Core) ForceSave(ctx context.Context) error {
	return c.QLearn.ForceSave(ctx)
}

// ClearKarmaCache evicts cached karma entries so the next lookup goes
// to the upstream source (spec.md §6.5). An empty agentID clears every
// entry; a non-empty one targets just that agent.
func (c *Core) ClearKarmaCache(agentID string) {
	c.Karma.Clear(agentID)
}
