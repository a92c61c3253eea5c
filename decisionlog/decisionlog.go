// Package decisionlog is the Decision Log Sink (spec.md §4.10): an
// append-only, crash-safe record of every routing decision, pruned on
// a schedule so the log never grows unbounded. Appends never block a
// decision on the pruning pass; pruning only ever runs in the
// background (spec.md §4.10, §5).
package decisionlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nexarouter/core/domain/decision"
	"github.com/nexarouter/core/infrastructure/config"
	"github.com/nexarouter/core/infrastructure/metrics"
	"github.com/nexarouter/core/infrastructure/state"
)

// logKey is the single PersistenceBackend key the whole newline-delimited
// JSON log lives under. One key keeps the append-then-rename discipline
// that state.FileBackend already gives every Save call.
const logKey = "decisions/log"

// Sink appends decision.Record values to a durable, append-only log and
// prunes entries older than the configured retention window.
type Sink struct {
	cfg     config.DecisionLogConfig
	backend state.PersistenceBackend
	metrics *metrics.Metrics

	mu   sync.Mutex
	cron *cron.Cron
}

// New constructs a Sink. backend must not be nil.
func New(cfg config.DecisionLogConfig, backend state.PersistenceBackend, m *metrics.Metrics) *Sink {
	return &Sink{cfg: cfg, backend: backend, metrics: m}
}

// Append satisfies routing/decide.LogSink: it serializes record and
// writes it to the end of the log via load-append-rename, so a crash
// mid-write never corrupts prior entries (spec.md §4.10).
func (s *Sink) Append(ctx context.Context, record decision.Record) error {
	line, err := json.Marshal(record)
	if err != nil {
		s.recordError()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.backend.Load(ctx, logKey)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		s.recordError()
		return err
	}
	buf := make([]byte, 0, len(existing)+len(line)+1)
	buf = append(buf, existing...)
	buf = append(buf, line...)
	buf = append(buf, '\n')

	if err := s.backend.Save(ctx, logKey, buf); err != nil {
		s.recordError()
		return err
	}
	if s.metrics != nil {
		s.metrics.DecisionLogAppended.Inc()
	}
	return nil
}

// Records returns every decision currently retained in the log, oldest
// first.
func (s *Sink) Records(ctx context.Context) ([]decision.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadRecords(ctx)
}

func (s *Sink) loadRecords(ctx context.Context) ([]decision.Record, error) {
	raw, err := s.backend.Load(ctx, logKey)
	if errors.Is(err, state.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lines := bytes.Split(bytes.TrimRight(raw, "\n"), []byte("\n"))
	records := make([]decision.Record, 0, len(lines))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		var record decision.Record
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// StartRetention launches a daily background task pruning records older
// than cfg.RetentionDays. It is never invoked from the request path
// (spec.md §5's "pruning never runs on the hot path").
func (s *Sink) StartRetention(ctx context.Context) error {
	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc("@daily", func() { s.prune(ctx) })
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.cron = c
	s.mu.Unlock()

	c.Start()
	return nil
}

// StopRetention halts the background pruning task, if running.
func (s *Sink) StopRetention() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *Sink) prune(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadRecords(ctx)
	if err != nil {
		s.recordError()
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	kept := make([]decision.Record, 0, len(records))
	pruned := 0
	for _, r := range records {
		if r.Timestamp.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, r)
	}
	if pruned == 0 {
		return
	}

	var buf bytes.Buffer
	for _, r := range kept {
		line, err := json.Marshal(r)
		if err != nil {
			continue
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := s.backend.Save(ctx, logKey, buf.Bytes()); err != nil {
		s.recordError()
		return
	}
	if s.metrics != nil {
		s.metrics.DecisionLogPruned.Add(float64(pruned))
	}
}

func (s *Sink) recordError() {
	if s.metrics != nil {
		s.metrics.DecisionLogErrors.Inc()
	}
}
