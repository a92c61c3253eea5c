// Package scoring is the Scoring Engine (spec.md §4.2): combines rule,
// feedback, availability, and karma signals into a bounded confidence.
package scoring

import (
	"math"

	"github.com/nexarouter/core/domain/agent"
	"github.com/nexarouter/core/infrastructure/config"
	routererrors "github.com/nexarouter/core/infrastructure/errors"
)

// Context is the per-request information the Scoring Engine needs
// beyond the candidate agent itself.
type Context struct {
	RequiredCapability string
	MinConfidence      float64 // request preference; 0 means "no floor"
	CurrentLoad        int
	SoftLoadCap        int
	HardLoadCap        int
}

// KarmaLookup resolves the latest karma score for an agent, or ok=false
// if unavailable (the neutral prior is then substituted).
type KarmaLookup func(agentID string) (score float64, ok bool)

// Engine computes confidences from the four weighted components.
// Weight configuration is hot-swappable via SetWeights; already-issued
// decisions are unaffected since confidences are computed per call.
type Engine struct {
	cfg   config.ScoringConfig
	karma KarmaLookup
}

// New validates cfg (min < max confidence, weights already validated
// at config construction) and returns an Engine, failing at
// construction rather than at use (spec.md §4.2).
func New(cfg config.ScoringConfig, karma KarmaLookup) (*Engine, error) {
	if cfg.MinConfidence >= cfg.MaxConfidence {
		return nil, routererrors.ConfigError("scoring.min_confidence", "min_confidence must be < max_confidence")
	}
	return &Engine{cfg: cfg, karma: karma}, nil
}

// SetWeights hot-swaps the component weights; it does not invalidate
// any decision already made with the previous weights.
func (e *Engine) SetWeights(w config.ScoringWeights) {
	e.cfg.Weights = w
}

// Score returns the bounded confidence and its component breakdown
// for one agent in the given context.
func (e *Engine) Score(a agent.Agent, ctx Context) (confidence float64, rule, feedback, availability, karma float64) {
	rule = e.ruleScore(a, ctx)
	feedback = a.Counters.SuccessRate
	availability = e.availabilityScore(a, ctx)
	karma = e.karmaScore(a.ID)

	w := e.cfg.Weights
	raw := w.Rule*rule + w.Feedback*feedback + w.Availability*availability + w.Karma*karma

	confidence = e.normalize(raw)
	return confidence, rule, feedback, availability, karma
}

func (e *Engine) ruleScore(a agent.Agent, ctx Context) float64 {
	if ctx.RequiredCapability == "" {
		return 1.0
	}
	covered, credit := a.HasCapability(ctx.RequiredCapability, ctx.MinConfidence)
	if covered {
		return 1.0
	}
	return credit
}

func (e *Engine) availabilityScore(a agent.Agent, ctx Context) float64 {
	if a.Status != agent.StatusActive {
		return 0.0
	}
	if ctx.HardLoadCap <= 0 || ctx.CurrentLoad < ctx.SoftLoadCap {
		return 1.0
	}
	if ctx.CurrentLoad >= ctx.HardLoadCap {
		return 0.0
	}
	span := float64(ctx.HardLoadCap - ctx.SoftLoadCap)
	if span <= 0 {
		return 0.0
	}
	remaining := float64(ctx.HardLoadCap - ctx.CurrentLoad)
	return clamp(remaining/span, 0, 1)
}

func (e *Engine) karmaScore(agentID string) float64 {
	const neutralPrior = 0.5
	if e.karma == nil {
		return neutralPrior
	}
	score, ok := e.karma(agentID)
	if !ok {
		return neutralPrior
	}
	return score
}

// normalize applies spec.md §4.2's bounded-result rules: NaN/Inf
// handling, sigmoid squash for large magnitudes, and a final clamp.
func (e *Engine) normalize(raw float64) float64 {
	if math.IsNaN(raw) {
		return e.cfg.MinConfidence
	}
	if math.IsInf(raw, 1) {
		return e.cfg.MaxConfidence
	}
	if math.IsInf(raw, -1) {
		return e.cfg.MinConfidence
	}
	if math.Abs(raw) > 1.5 {
		raw = 1 / (1 + math.Exp(-raw))
	}
	return clamp(raw, e.cfg.MinConfidence, e.cfg.MaxConfidence)
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
