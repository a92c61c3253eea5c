// Package metrics provides the Prometheus collectors shared across the
// routing core. A *Metrics instance is constructed once at the
// composition root and injected into every component; there is no
// package-level singleton.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the routing core publishes. An external
// binder mounts these on its own /metrics endpoint; this package does
// not own any HTTP surface (non-goal).
type Metrics struct {
	DecisionsTotal      *prometheus.CounterVec
	DecisionDuration     prometheus.Histogram
	ErrorsTotal          *prometheus.CounterVec

	FeedbackTotal        *prometheus.CounterVec
	FeedbackDuplicates   prometheus.Counter
	QValueSanitations    prometheus.Counter
	QTableSize           prometheus.Gauge
	Epsilon              prometheus.Gauge

	KarmaRequestsTotal   *prometheus.CounterVec
	KarmaCacheHits       prometheus.Counter
	KarmaCacheMisses     prometheus.Counter
	KarmaRetries         prometheus.Counter

	EnvelopeWrapped          prometheus.Counter
	EnvelopeUnwrapped        prometheus.Counter
	EnvelopeWrapFailures     prometheus.Counter
	EnvelopeUnwrapFailures   prometheus.Counter
	EnvelopeChecksumFailures prometheus.Counter
	EnvelopeSignatureFailures prometheus.Counter
	EnvelopeReplaysRejected  prometheus.Counter

	BusPublished   prometheus.Counter
	BusDropped     *prometheus.CounterVec
	BusSubscribers prometheus.Gauge

	DecisionLogAppended prometheus.Counter
	DecisionLogPruned   prometheus.Counter
	DecisionLogErrors   prometheus.Counter
}

// New creates a Metrics instance and registers every collector with
// registerer. Pass prometheus.NewRegistry() in tests to avoid colliding
// with the global default registry across parallel tests.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_decisions_total",
				Help: "Total number of routing decisions by strategy and outcome.",
			},
			[]string{"strategy", "explore"},
		),
		DecisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "router_decision_duration_seconds",
				Help:    "Time to produce a routing decision.",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_errors_total",
				Help: "Total number of errors by code and component.",
			},
			[]string{"code", "component"},
		),
		FeedbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_feedback_total",
				Help: "Total number of feedback events applied, by success.",
			},
			[]string{"success"},
		),
		FeedbackDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_feedback_duplicates_total",
			Help: "Total number of duplicate feedback events rejected as no-ops.",
		}),
		QValueSanitations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_qvalue_sanitations_total",
			Help: "Total number of NaN/Inf Q-values replaced with zero.",
		}),
		QTableSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_qtable_entries",
			Help: "Current number of (state, action) entries in the Q-table.",
		}),
		Epsilon: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_epsilon",
			Help: "Current exploration rate.",
		}),
		KarmaRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_karma_requests_total",
				Help: "Total karma lookups by outcome (requests, errors, non_retryable_errors).",
			},
			[]string{"outcome"},
		),
		KarmaCacheHits:   prometheus.NewCounter(prometheus.CounterOpts{Name: "router_karma_cache_hits_total", Help: "Karma cache hits."}),
		KarmaCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{Name: "router_karma_cache_misses_total", Help: "Karma cache misses."}),
		KarmaRetries:     prometheus.NewCounter(prometheus.CounterOpts{Name: "router_karma_retries_total", Help: "Karma upstream retry attempts."}),

		EnvelopeWrapped:           prometheus.NewCounter(prometheus.CounterOpts{Name: "router_stp_wrapped_total", Help: "STP packets wrapped."}),
		EnvelopeUnwrapped:         prometheus.NewCounter(prometheus.CounterOpts{Name: "router_stp_unwrapped_total", Help: "STP packets unwrapped successfully."}),
		EnvelopeWrapFailures:      prometheus.NewCounter(prometheus.CounterOpts{Name: "router_stp_wrap_failures_total", Help: "STP wrap failures."}),
		EnvelopeUnwrapFailures:    prometheus.NewCounter(prometheus.CounterOpts{Name: "router_stp_unwrap_failures_total", Help: "STP unwrap failures."}),
		EnvelopeChecksumFailures:  prometheus.NewCounter(prometheus.CounterOpts{Name: "router_stp_checksum_failures_total", Help: "STP checksum mismatches."}),
		EnvelopeSignatureFailures: prometheus.NewCounter(prometheus.CounterOpts{Name: "router_stp_signature_failures_total", Help: "STP signature mismatches."}),
		EnvelopeReplaysRejected:   prometheus.NewCounter(prometheus.CounterOpts{Name: "router_stp_replays_rejected_total", Help: "STP packets rejected as replays."}),

		BusPublished: prometheus.NewCounter(prometheus.CounterOpts{Name: "router_bus_published_total", Help: "Packets published to the telemetry bus."}),
		BusDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_bus_dropped_total",
				Help: "Packets dropped per subscriber (queue_full or rate_limited).",
			},
			[]string{"subscriber", "reason"},
		),
		BusSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{Name: "router_bus_subscribers", Help: "Current number of live telemetry subscribers."}),

		DecisionLogAppended: prometheus.NewCounter(prometheus.CounterOpts{Name: "router_decision_log_appended_total", Help: "Decision records appended to the log."}),
		DecisionLogPruned:   prometheus.NewCounter(prometheus.CounterOpts{Name: "router_decision_log_pruned_total", Help: "Decision records removed by retention pruning."}),
		DecisionLogErrors:   prometheus.NewCounter(prometheus.CounterOpts{Name: "router_decision_log_errors_total", Help: "Decision log append or prune failures."}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.DecisionsTotal, m.DecisionDuration, m.ErrorsTotal,
			m.FeedbackTotal, m.FeedbackDuplicates, m.QValueSanitations, m.QTableSize, m.Epsilon,
			m.KarmaRequestsTotal, m.KarmaCacheHits, m.KarmaCacheMisses, m.KarmaRetries,
			m.EnvelopeWrapped, m.EnvelopeUnwrapped, m.EnvelopeWrapFailures, m.EnvelopeUnwrapFailures,
			m.EnvelopeChecksumFailures, m.EnvelopeSignatureFailures, m.EnvelopeReplaysRejected,
			m.BusPublished, m.BusDropped, m.BusSubscribers,
			m.DecisionLogAppended, m.DecisionLogPruned, m.DecisionLogErrors,
		)
	}

	return m
}

// RecordDecision records a completed routing decision.
func (m *Metrics) RecordDecision(strategy string, explore bool, duration time.Duration) {
	m.DecisionsTotal.WithLabelValues(strategy, boolLabel(explore)).Inc()
	m.DecisionDuration.Observe(duration.Seconds())
}

// RecordError records an error by code and the component that raised it.
func (m *Metrics) RecordError(code, component string) {
	m.ErrorsTotal.WithLabelValues(code, component).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
