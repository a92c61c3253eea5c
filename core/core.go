// Package core is the composition root: it wires the Agent Registry,
// Scoring Engine, Q-Learning Updater, Karma Client, STP Envelope,
// Telemetry Bus, Feedback Processor, Decision Log Sink, and Health
// Monitor into one running instance, and exposes the admin toggles
// spec.md §6 names (ToggleKarma, ToggleSigning, ForceSave,
// ClearKarmaCache).
package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nexarouter/core/bus"
	"github.com/nexarouter/core/decisionlog"
	domainkarma "github.com/nexarouter/core/domain/karma"
	"github.com/nexarouter/core/domain/decision"
	"github.com/nexarouter/core/health"
	"github.com/nexarouter/core/infrastructure/config"
	"github.com/nexarouter/core/infrastructure/identity"
	"github.com/nexarouter/core/infrastructure/logging"
	"github.com/nexarouter/core/infrastructure/metrics"
	"github.com/nexarouter/core/infrastructure/state"
	"github.com/nexarouter/core/routing/decide"
	routingfeedback "github.com/nexarouter/core/routing/feedback"
	"github.com/nexarouter/core/routing/karma"
	"github.com/nexarouter/core/routing/qlearn"
	"github.com/nexarouter/core/routing/registry"
	"github.com/nexarouter/core/routing/scoring"
	"github.com/nexarouter/core/stp"
)

// Core is the fully wired router instance. Every exported operation is
// safe for concurrent use (spec.md §5).
type Core struct {
	cfg config.Config
	log *logging.Logger

	Registry    *registry.Registry
	Scoring     *scoring.Engine
	QLearn      *qlearn.Updater
	Karma       *karma.Client
	Envelope    *stp.Envelope
	Bus         *bus.Bus
	Feedback    *routingfeedback.Processor
	DecisionLog *decisionlog.Sink
	Health      *health.Monitor
	Decide      *decide.Engine

	mu        sync.Mutex
	decisions map[string]decision.Record

	karmaEnabled   atomic.Bool
	signingEnabled atomic.Bool
}

// New builds a Core from cfg and an externally provided karma source
// (the "external service" of spec.md §4.6; pass nil to run with karma
// permanently unavailable, e.g. in a demo with no upstream). clock may
// be nil to default to the system clock.
func New(cfg config.Config, karmaSource karma.Source, clock identity.Clock, log *logging.Logger) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reg := registry.New().WithLatencyReference(cfg.Scoring.LatencyReferenceMS)
	m := metrics.New(prometheus.NewRegistry())

	c := &Core{
		cfg:       cfg,
		log:       log,
		Registry:  reg,
		Bus:       bus.New(cfg.Bus, m),
		Health:    health.NewMonitor(),
		decisions: make(map[string]decision.Record),
	}
	c.karmaEnabled.Store(true)
	c.signingEnabled.Store(cfg.STP.SigningEnabled)

	performanceLookup := func(agentID string) (float64, bool) {
		a, err := reg.Get(agentID)
		if err != nil {
			return 0, false
		}
		return a.Counters.PerformanceScore, true
	}
	c.Karma = karma.New(cfg.Karma, karmaSource, performanceLookup, m)

	scoreKarmaLookup := func(agentID string) (float64, bool) {
		if !c.karmaEnabled.Load() {
			return 0, false
		}
		return c.Karma.Score(context.Background(), agentID)
	}
	scorer, err := scoring.New(cfg.Scoring, scoreKarmaLookup)
	if err != nil {
		return nil, err
	}
	c.Scoring = scorer

	qlearnBackend, err := state.NewFileBackend(cfg.QLearn.PersistencePath)
	if err != nil {
		return nil, fmt.Errorf("qlearn persistence backend: %w", err)
	}
	qlearnKarmaLookup := func(agentID string) (domainkarma.Entry, bool) {
		if !c.karmaEnabled.Load() {
			return domainkarma.Entry{}, false
		}
		return c.Karma.Entry(agentID)
	}
	c.QLearn = qlearn.New(cfg.QLearn, qlearnBackend, qlearnKarmaLookup, m)
	if err := c.QLearn.Load(context.Background()); err != nil {
		log.LogDropped(context.Background(), "qlearn_load", err)
	}

	envelope, err := stp.New(cfg.STP, clock, m)
	if err != nil {
		return nil, fmt.Errorf("stp envelope: %w", err)
	}
	c.Envelope = envelope

	logBackend, err := state.NewFileBackend(cfg.DecisionLog.Path)
	if err != nil {
		return nil, fmt.Errorf("decision log backend: %w", err)
	}
	c.DecisionLog = decisionlog.New(cfg.DecisionLog, logBackend, m)

	publisher := bus.NewTelemetryPublisher(c.Bus, &togglableSealer{core: c})
	c.Decide = decide.New(cfg, reg, scorer, c.QLearn, &recordingLogSink{core: c}, publisher, m, false)

	decisionLookup := func(decisionID string) (decision.Record, bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		rec, ok := c.decisions[decisionID]
		return rec, ok
	}
	c.Feedback = routingfeedback.New(reg, c.QLearn, c.Karma, decisionLookup, publisher, m)

	c.registerHealthChecks()
	return c, nil
}

// Close releases background resources (retention pruning, persistence
// backends) in the order the teacher's services shut down: stop
// schedulers before flushing state.
func (c *Core) Close(ctx context.Context) error {
	c.DecisionLog.StopRetention()
	return c.QLearn.ForceSave(ctx)
}
