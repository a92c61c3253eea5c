// Package decide is the Decision Engine (spec.md §4.3): the
// request-to-DecisionRecord pipeline that ties together state
// encoding, the Agent Registry, the Scoring Engine, and the
// Q-Learning Updater under a selectable strategy.
package decide

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"hash/fnv"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/nexarouter/core/domain/agent"
	"github.com/nexarouter/core/domain/decision"
	"github.com/nexarouter/core/infrastructure/config"
	routererrors "github.com/nexarouter/core/infrastructure/errors"
	"github.com/nexarouter/core/infrastructure/identity"
	"github.com/nexarouter/core/infrastructure/metrics"
	"github.com/nexarouter/core/routing/qlearn"
	"github.com/nexarouter/core/routing/registry"
	"github.com/nexarouter/core/routing/scoring"
	"github.com/nexarouter/core/routing/statekey"
)

const (
	StrategyQLearning       = "q_learning"
	StrategyPerformanceBased = "performance_based"
	StrategyRoundRobin      = "round_robin"
	StrategyRandom          = "random"
)

// LogSink is the Decision Log Sink contract the engine writes to
// best-effort (spec.md §4.3 step 6).
type LogSink interface {
	Append(ctx context.Context, record decision.Record) error
}

// BusPublisher is the Telemetry Bus contract the engine publishes to
// best-effort (spec.md §4.3 step 6).
type BusPublisher interface {
	PublishRoutingDecision(ctx context.Context, record decision.Record) error
}

// Request is the public input to Decide (spec.md §4.3, §6.1).
type Request struct {
	RequestID     string // generated if empty
	InputType     string // required, non-empty
	Complexity    string
	Domain        string
	Strategy      string // default q_learning
	MinConfidence float64
	MaxLatency    float64 // ms; 0 means no ceiling
	CurrentLoad   int
	Context       map[string]string // free-form; digested, not stored raw
}

// Engine wires the Registry, Scoring Engine, and Q-table Updater into
// the decide() contract.
type Engine struct {
	cfg      config.Config
	registry *registry.Registry
	scorer   *scoring.Engine
	updater  *qlearn.Updater
	log      LogSink
	bus      BusPublisher
	metrics  *metrics.Metrics

	deterministic bool

	mu          sync.Mutex
	roundRobin  map[string]int
}

// New constructs a Decision Engine. log and bus may be nil; their
// absence is treated the same as a failed best-effort emission.
func New(cfg config.Config, reg *registry.Registry, scorer *scoring.Engine, updater *qlearn.Updater, log LogSink, bus BusPublisher, m *metrics.Metrics, deterministic bool) *Engine {
	return &Engine{
		cfg:           cfg,
		registry:      reg,
		scorer:        scorer,
		updater:       updater,
		log:           log,
		bus:           bus,
		metrics:       m,
		deterministic: deterministic,
		roundRobin:    make(map[string]int),
	}
}

// Decide runs the seven-step algorithm of spec.md §4.3 and returns
// the resulting DecisionRecord.
func (e *Engine) Decide(ctx context.Context, req Request) (decision.Record, error) {
	start := time.Now()

	if req.RequestID == "" {
		req.RequestID = identity.NewID()
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = StrategyQLearning
	}

	state := e.encodeState(req)

	candidates := e.registry.Candidates(req.InputType, nil)
	if len(candidates) == 0 {
		if e.metrics != nil {
			e.metrics.RecordError(string(routererrors.CodeNoEligibleAgent), "decide")
		}
		return decision.Record{}, routererrors.NoEligibleAgent(req.InputType)
	}

	scored := e.scoreCandidates(candidates, req)
	if len(scored) == 0 {
		if e.metrics != nil {
			e.metrics.RecordError(string(routererrors.CodeNoEligibleAgent), "decide")
		}
		return decision.Record{}, routererrors.NoEligibleAgent(req.InputType)
	}

	rng := e.rngFor(req.RequestID)
	winner, explored := e.selectWinner(strategy, state, req.InputType, scored, rng)

	alternatives := alternativesExcluding(scored, winner.Agent.ID, e.cfg.NumAlternatives)

	record := decision.Record{
		RequestID:     req.RequestID,
		Timestamp:     time.Now(),
		EncodedState:  state,
		SelectedAgent: winner.Agent.ID,
		Confidence:    winner.Confidence,
		Breakdown:     winner.Breakdown,
		Alternatives:  alternatives,
		Explored:      explored,
		Strategy:      strategy,
		ContextDigest: digestContext(req.Context),
	}

	e.emitBestEffort(ctx, record)

	if e.metrics != nil {
		e.metrics.RecordDecision(strategy, explored, time.Since(start))
	}
	return record, nil
}

type scoredCandidate struct {
	Agent      agent.Agent
	Confidence float64
	Breakdown  decision.Breakdown
}

func (e *Engine) encodeState(req Request) string {
	loadBucket := statekey.LoadBucket(req.CurrentLoad, e.cfg.Scoring.LoadLowCeiling, e.cfg.Scoring.LoadMediumCeiling)
	timeBucket := statekey.TimeBucket(time.Now())
	return statekey.Encode(statekey.Request{
		InputType:  req.InputType,
		Complexity: req.Complexity,
		Domain:     req.Domain,
	}, loadBucket, timeBucket)
}

// scoreCandidates drops candidates over the request's MaxLatency, then
// scores the rest, isolating a panicking scorer call to just that
// candidate (spec.md §4.3 failure semantics).
func (e *Engine) scoreCandidates(candidates []agent.Agent, req Request) []scoredCandidate {
	ctx := scoring.Context{
		RequiredCapability: req.InputType,
		MinConfidence:      req.MinConfidence,
		CurrentLoad:        req.CurrentLoad,
		SoftLoadCap:        e.cfg.Scoring.SoftLoadCap,
		HardLoadCap:        e.cfg.Scoring.HardLoadCap,
	}

	out := make([]scoredCandidate, 0, len(candidates))
	for _, a := range candidates {
		if req.MaxLatency > 0 && a.Counters.AvgLatencyMS > req.MaxLatency {
			continue
		}
		sc, ok := e.scoreOne(a, ctx)
		if !ok {
			continue
		}
		if req.MinConfidence > 0 && sc.Confidence < req.MinConfidence {
			continue
		}
		out = append(out, sc)
	}
	return out
}

func (e *Engine) scoreOne(a agent.Agent, ctx scoring.Context) (sc scoredCandidate, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if e.metrics != nil {
				e.metrics.RecordError(string(routererrors.CodeInternal), "scoring")
			}
		}
	}()

	confidence, rule, feedback, availability, karmaScore := e.scorer.Score(a, ctx)
	return scoredCandidate{
		Agent:      a,
		Confidence: confidence,
		Breakdown: decision.Breakdown{
			Rule:         rule,
			Feedback:     feedback,
			Availability: availability,
			Karma:        karmaScore,
		},
	}, true
}

func (e *Engine) selectWinner(strategy, state, inputType string, scored []scoredCandidate, rng *rand.Rand) (scoredCandidate, bool) {
	switch strategy {
	case StrategyRandom:
		return scored[rng.Intn(len(scored))], false
	case StrategyRoundRobin:
		return e.nextRoundRobin(inputType, scored), false
	case StrategyPerformanceBased:
		return bestByConfidence(scored), false
	default: // q_learning
		if rng.Float64() < e.updater.Epsilon() {
			return scored[rng.Intn(len(scored))], true
		}
		return e.bestByQValue(state, scored), false
	}
}

func (e *Engine) nextRoundRobin(inputType string, scored []scoredCandidate) scoredCandidate {
	sortByAgentID(scored)

	e.mu.Lock()
	idx := e.roundRobin[inputType] % len(scored)
	e.roundRobin[inputType] = idx + 1
	e.mu.Unlock()

	return scored[idx]
}

func bestByConfidence(scored []scoredCandidate) scoredCandidate {
	best := scored[0]
	for _, c := range scored[1:] {
		if c.Confidence > best.Confidence ||
			(c.Confidence == best.Confidence && c.Agent.Counters.PerformanceScore > best.Agent.Counters.PerformanceScore) ||
			(c.Confidence == best.Confidence && c.Agent.Counters.PerformanceScore == best.Agent.Counters.PerformanceScore && c.Agent.ID < best.Agent.ID) {
			best = c
		}
	}
	return best
}

func (e *Engine) bestByQValue(state string, scored []scoredCandidate) scoredCandidate {
	beta := e.cfg.QLearn.Beta
	best := scored[0]
	bestScore := e.updater.Value(state, best.Agent.ID) + beta*best.Confidence
	for _, c := range scored[1:] {
		s := e.updater.Value(state, c.Agent.ID) + beta*c.Confidence
		if s > bestScore || (s == bestScore && c.Agent.ID < best.Agent.ID) {
			best = c
			bestScore = s
		}
	}
	return best
}

func alternativesExcluding(scored []scoredCandidate, winnerID string, n int) []decision.Alternative {
	rest := make([]scoredCandidate, 0, len(scored))
	for _, c := range scored {
		if c.Agent.ID != winnerID {
			rest = append(rest, c)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Confidence > rest[j].Confidence })

	if n > len(rest) {
		n = len(rest)
	}
	out := make([]decision.Alternative, 0, n)
	for _, c := range rest[:n] {
		out = append(out, decision.Alternative{AgentID: c.Agent.ID, Confidence: c.Confidence})
	}
	return out
}

func sortByAgentID(scored []scoredCandidate) {
	sort.Slice(scored, func(i, j int) bool { return scored[i].Agent.ID < scored[j].Agent.ID })
}

func (e *Engine) rngFor(requestID string) *rand.Rand {
	if !e.deterministic {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(requestID))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func (e *Engine) emitBestEffort(ctx context.Context, record decision.Record) {
	if e.log != nil {
		if err := e.log.Append(ctx, record); err != nil && e.metrics != nil {
			e.metrics.RecordError(string(routererrors.CodeInternal), "decision_log")
		}
	}
	if e.bus != nil {
		if err := e.bus.PublishRoutingDecision(ctx, record); err != nil && e.metrics != nil {
			e.metrics.RecordError(string(routererrors.CodeInternal), "telemetry_bus")
		}
	}
}

// digestContext returns a stable SHA-256 digest of the free-form
// context map so the decision record can be audited without storing
// the raw (possibly sensitive) metadata.
func digestContext(ctx map[string]string) string {
	if len(ctx) == 0 {
		return ""
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([][2]string, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, [2]string{k, ctx[k]})
	}
	data, _ := json.Marshal(ordered)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
