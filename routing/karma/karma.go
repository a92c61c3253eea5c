// Package karma is the routing-level Karma Client (spec.md §4.6): a
// pull-through cache over an external reputation source, with
// drift-based invalidation and a typed retry outcome in place of the
// exception-driven retries a naive port would carry over (spec.md §9
// REDESIGN FLAGS).
package karma

import (
	"context"
	"math"
	"time"

	domainkarma "github.com/nexarouter/core/domain/karma"
	"github.com/nexarouter/core/infrastructure/cache"
	"github.com/nexarouter/core/infrastructure/config"
	"github.com/nexarouter/core/infrastructure/metrics"
	"github.com/nexarouter/core/infrastructure/resilience"
)

// Outcome classifies an upstream failure so the retry loop can stop
// immediately on a Permanent error instead of burning attempts.
type Outcome int

const (
	OutcomeTransient Outcome = iota
	OutcomePermanent
)

// Source is the upstream reputation service. Classify tells the
// client whether an error from Fetch is retryable.
type Source interface {
	Fetch(ctx context.Context, agentID string) (score float64, err error)
	Classify(err error) Outcome
}

// PerformanceLookup resolves an agent's current performance score,
// used for the cache's drift test.
type PerformanceLookup func(agentID string) (score float64, ok bool)

// Client is a pull-through cache in front of Source with drift
// detection and bounded exponential-backoff retries.
type Client struct {
	cfg         config.KarmaConfig
	source      Source
	cache       *cache.KarmaCache
	redis       *redisTier
	breaker     *resilience.CircuitBreaker
	performance PerformanceLookup
	metrics     *metrics.Metrics

	baselines map[string]float64 // agent_id -> performance score at cache time
}

// New constructs a Client. performance may be nil if drift detection
// against live performance scores is not wired (drift then relies on
// window stddev alone). If cfg.RedisAddr is set, a shared cache tier
// sits between the in-process cache and Source so multiple router
// instances converge on the same karma score between upstream polls.
func New(cfg config.KarmaConfig, source Source, performance PerformanceLookup, m *metrics.Metrics) *Client {
	return &Client{
		cfg:         cfg,
		source:      source,
		cache:       cache.NewKarmaCache(cache.CacheConfig{DefaultTTL: cfg.CacheTTL}),
		redis:       newRedisTier(cfg.RedisAddr, cfg.CacheTTL),
		breaker:     resilience.New(resilience.DefaultConfig()),
		performance: performance,
		metrics:     m,
		baselines:   make(map[string]float64),
	}
}

// Score returns the cached or freshly fetched karma score for
// agentID, or ok=false (Unavailable per spec.md §4.6) if the cache is
// stale/drifted and every retry against the upstream failed.
func (c *Client) Score(ctx context.Context, agentID string) (float64, bool) {
	c.recordOutcome("requests", nil)

	if entry, ok := c.lookupValid(agentID); ok {
		c.recordOutcome("cache_hits", nil)
		return entry.Score, true
	}

	if c.redis != nil {
		if entry, ok := c.redis.get(ctx, agentID); ok {
			c.recordOutcome("cache_hits", nil)
			c.store(ctx, agentID, entry)
			return entry.Score, true
		}
	}
	c.recordOutcome("cache_misses", nil)

	if c.source == nil {
		c.recordOutcome("errors", nil)
		return 0, false
	}

	score, err := c.fetchWithRetry(ctx, agentID)
	if err != nil {
		c.recordOutcome("errors", nil)
		return 0, false
	}

	baseline, _ := c.currentPerformance(agentID)
	entry := domainkarma.Entry{
		AgentID:             agentID,
		Score:               score,
		CapturedAt:          time.Now(),
		BaselinePerformance: baseline,
	}
	c.store(ctx, agentID, entry)
	return score, true
}

// Entry returns the raw cached entry (used by reward blending in
// routing/qlearn), or ok=false if absent/stale/drifted.
func (c *Client) Entry(agentID string) (domainkarma.Entry, bool) {
	return c.lookupValid(agentID)
}

// ObservePerformance records a fresh performance sample for agentID
// and evicts the cache entry if it has drifted past the configured
// threshold (spec.md §4.6).
func (c *Client) ObservePerformance(agentID string, score float64) {
	v, ok := c.cache.Get(agentID)
	if !ok {
		return
	}
	entry := v.(domainkarma.Entry)
	entry.PushSample(score, c.cfg.WindowSize)
	c.store(context.Background(), agentID, entry)

	if c.drifted(entry, score) {
		c.cache.Invalidate(agentID)
		if c.redis != nil {
			c.redis.invalidate(context.Background(), agentID)
		}
	}
}

func (c *Client) lookupValid(agentID string) (domainkarma.Entry, bool) {
	v, ok := c.cache.Get(agentID)
	if !ok {
		return domainkarma.Entry{}, false
	}
	entry := v.(domainkarma.Entry)
	if time.Since(entry.CapturedAt) >= c.cfg.CacheTTL {
		c.cache.Invalidate(agentID)
		return domainkarma.Entry{}, false
	}

	current, hasCurrent := c.currentPerformance(agentID)
	if hasCurrent && c.drifted(entry, current) {
		c.cache.Invalidate(agentID)
		return domainkarma.Entry{}, false
	}
	return entry, true
}

// drifted implements spec.md §4.6's drift test: relative movement of
// the current performance score past InvalidationThreshold, or a
// sliding-window stddev past a configured bound.
func (c *Client) drifted(entry domainkarma.Entry, currentPerformance float64) bool {
	if entry.BaselinePerformance != 0 {
		relative := math.Abs(currentPerformance-entry.BaselinePerformance) / math.Abs(entry.BaselinePerformance)
		if relative > c.cfg.InvalidationThreshold {
			return true
		}
	}
	return entry.StdDev() > c.cfg.InvalidationThreshold
}

// Clear evicts cached karma entries (spec.md §6.5's admin
// clear_karma_cache(agent_id?)), forcing the next lookup to the
// upstream source. When agentID is empty every entry is evicted;
// otherwise only that agent's entry, in both the in-process cache and
// the Redis tier, is invalidated.
func (c *Client) Clear(agentID string) {
	if agentID == "" {
		c.cache.InvalidateOnDrift()
		return
	}
	c.cache.Invalidate(agentID)
	if c.redis != nil {
		c.redis.invalidate(context.Background(), agentID)
	}
}

func (c *Client) currentPerformance(agentID string) (float64, bool) {
	if c.performance == nil {
		return 0, false
	}
	return c.performance(agentID)
}

func (c *Client) store(ctx context.Context, agentID string, entry domainkarma.Entry) {
	c.cache.Set(agentID, entry, c.cfg.CacheTTL)
	if c.redis != nil {
		c.redis.set(ctx, agentID, entry)
	}
}

// fetchWithRetry retries Transient failures with exponential backoff,
// capped at MaxRetryAttempts, and stops immediately on a Permanent
// one: a Permanent classification makes fn report success to the
// underlying retry loop (so it does not sleep and re-attempt) while
// stashing the real error in permanentErr for the caller.
func (c *Client) fetchWithRetry(ctx context.Context, agentID string) (float64, error) {
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = c.cfg.MaxRetryAttempts

	var result float64
	var permanentErr error
	attempt := 0
	err := resilience.Retry(ctx, retryCfg, func() error {
		attempt++
		fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()

		ferr := c.breaker.Execute(fetchCtx, func() error {
			v, e := c.source.Fetch(fetchCtx, agentID)
			if e == nil {
				result = v
			}
			return e
		})
		if ferr == nil {
			return nil
		}
		if attempt > 1 {
			c.recordOutcome("retries", nil)
		}
		if c.source.Classify(ferr) == OutcomePermanent {
			c.recordOutcome("non_retryable_errors", nil)
			permanentErr = ferr
			return nil
		}
		return ferr
	})
	if permanentErr != nil {
		return 0, permanentErr
	}
	return result, err
}

func (c *Client) recordOutcome(outcome string, _ error) {
	if c.metrics == nil {
		return
	}
	switch outcome {
	case "cache_hits":
		c.metrics.KarmaCacheHits.Inc()
	case "cache_misses":
		c.metrics.KarmaCacheMisses.Inc()
	case "retries":
		c.metrics.KarmaRetries.Inc()
	default:
		c.metrics.KarmaRequestsTotal.WithLabelValues(outcome).Inc()
	}
}
