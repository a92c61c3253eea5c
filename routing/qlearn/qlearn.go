// Package qlearn is the Q-Learning Updater (spec.md §4.4): owns the
// Q-table and the ε-greedy exploration schedule, applies reward
// updates, and persists the table crash-safely via a pluggable
// infrastructure/state.PersistenceBackend.
package qlearn

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/nexarouter/core/domain/karma"
	"github.com/nexarouter/core/domain/qtable"
	"github.com/nexarouter/core/infrastructure/config"
	"github.com/nexarouter/core/infrastructure/metrics"
	"github.com/nexarouter/core/infrastructure/state"
)

// persistenceKey namespaces the Q-table's entry in the backend.
const persistenceKey = "qtable/v1"

// KarmaLookup resolves an agent's latest normalized karma for reward
// blending, or ok=false when no cached entry exists.
type KarmaLookup func(agentID string) (entry karma.Entry, ok bool)

// Updater holds the live Q-table, epsilon, and dirty/time-based
// persistence triggers described in spec.md §4.4.
type Updater struct {
	mu sync.Mutex

	cfg     config.QLearnConfig
	table   qtable.Table
	epsilon float64
	karma   KarmaLookup
	backend state.PersistenceBackend
	metrics *metrics.Metrics

	dirty      int
	lastSaveAt time.Time
}

// New constructs an Updater with an empty table and ε = Epsilon0.
// Callers should follow with Load to recover persisted state.
func New(cfg config.QLearnConfig, backend state.PersistenceBackend, karmaLookup KarmaLookup, m *metrics.Metrics) *Updater {
	u := &Updater{
		cfg:        cfg,
		table:      make(qtable.Table),
		epsilon:    cfg.Epsilon0,
		karma:      karmaLookup,
		backend:    backend,
		metrics:    m,
		lastSaveAt: time.Now(),
	}
	if m != nil {
		m.Epsilon.Set(u.epsilon)
		m.QTableSize.Set(0)
	}
	return u
}

// Epsilon returns the current exploration rate.
func (u *Updater) Epsilon() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.epsilon
}

// Value returns Q(state, action), defaulting to 0 for unseen pairs.
func (u *Updater) Value(state, action string) float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.table[qtable.Key{State: state, Action: action}]
}

// Snapshot returns a read-only copy of the table, safe to persist or
// inspect without racing further updates.
func (u *Updater) Snapshot() qtable.Table {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.table.Snapshot()
}

// Reward computes the clamped raw reward for one feedback event
// (spec.md §4.4), before any karma smoothing.
func Reward(success bool, latencyMS float64, accuracy *float64, satisfaction *int) float64 {
	reward := -1.0
	if success {
		reward = 1.0
	}
	reward -= 0.1 * (latencyMS / 1000)
	if accuracy != nil {
		reward += 0.5 * *accuracy
	}
	if satisfaction != nil {
		reward += 0.3 * (float64(*satisfaction) - 3) / 2
	}
	return clamp(reward, -2.0, 2.0)
}

// Apply runs one tabular Q-learning update for (state, action),
// optionally blending in karma, decays ε, and triggers persistence if
// the dirty/time thresholds are crossed (spec.md §4.4). nextState is
// the state to bootstrap max_a' Q(s',a') from; pass state itself when
// the feedback carries no transition.
func (u *Updater) Apply(ctx context.Context, state, nextState, action string, reward float64) (newValue float64, sanitized bool) {
	u.mu.Lock()

	blended := reward
	if u.cfg.KarmaSmoothing && u.karma != nil {
		if entry, ok := u.karma(action); ok {
			blended = 0.75*reward + 0.25*entry.Normalized()
		}
	}

	key := qtable.Key{State: state, Action: action}
	current := u.table[key]
	maxNext, _ := u.table.MaxForState(nextState)

	updated := current + u.cfg.Alpha*(blended+u.cfg.Gamma*maxNext-current)
	if math.IsNaN(updated) || math.IsInf(updated, 0) {
		updated = 0
		sanitized = true
		if u.metrics != nil {
			u.metrics.QValueSanitations.Inc()
		}
	}
	u.table[key] = updated
	u.dirty++

	u.epsilon = math.Max(u.cfg.EpsilonMin, u.epsilon*u.cfg.EpsilonDecay)

	if u.metrics != nil {
		u.metrics.Epsilon.Set(u.epsilon)
		u.metrics.QTableSize.Set(float64(len(u.table)))
	}

	shouldSave := u.dirty > u.cfg.SaveThreshold || time.Since(u.lastSaveAt) > u.cfg.SaveInterval
	u.mu.Unlock()

	if shouldSave && u.backend != nil {
		_ = u.save(ctx)
	}

	return updated, sanitized
}

// ForceSave persists the table immediately regardless of the dirty
// and time thresholds. Always invoked at orderly shutdown (spec.md
// §4.4); abrupt termination may lose up to SaveInterval of updates.
func (u *Updater) ForceSave(ctx context.Context) error {
	return u.save(ctx)
}

func (u *Updater) save(ctx context.Context) error {
	u.mu.Lock()
	snapshot := u.table.Snapshot()
	u.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := u.backend.Save(ctx, persistenceKey, data); err != nil {
		return err
	}

	u.mu.Lock()
	u.dirty = 0
	u.lastSaveAt = time.Now()
	u.mu.Unlock()
	return nil
}

// Load recovers a previously persisted table. An absent or
// unparsable file yields an empty table, never an abort (spec.md
// §4.4) — the caller is expected to log the returned error, if any,
// as a warning rather than treat it as fatal.
func (u *Updater) Load(ctx context.Context) error {
	if u.backend == nil {
		return nil
	}
	data, err := u.backend.Load(ctx, persistenceKey)
	if err != nil {
		return err
	}
	var loaded qtable.Table
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.table = loaded
	if u.metrics != nil {
		u.metrics.QTableSize.Set(float64(len(u.table)))
	}
	return nil
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
