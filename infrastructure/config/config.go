package config

import (
	"time"

	routererrors "github.com/nexarouter/core/infrastructure/errors"
)

// ScoringWeights holds the four component weights of the Scoring Engine.
// They must sum to 1.0.
type ScoringWeights struct {
	Rule         float64
	Feedback     float64
	Availability float64
	Karma        float64
}

// ScoringConfig configures the Scoring Engine (spec.md §4.2) and the
// load-sensitive buckets the Decision Engine derives from it: the
// availability soft/hard caps feed Score's availability component,
// while the low/medium ceilings feed the state encoder's load bucket
// (spec.md §4.5). Neither pair is given a spec default, so these are
// implementer-chosen and validated only for internal consistency.
type ScoringConfig struct {
	Weights            ScoringWeights
	MinConfidence      float64
	MaxConfidence      float64
	LatencyReferenceMS float64
	SoftLoadCap        int
	HardLoadCap        int
	LoadLowCeiling     int
	LoadMediumCeiling  int
}

// QLearnConfig configures the Q-Learning Updater (spec.md §4.4).
type QLearnConfig struct {
	Epsilon0           float64
	EpsilonDecay       float64
	EpsilonMin         float64
	Alpha              float64
	Gamma              float64
	Beta               float64
	KarmaSmoothing     bool
	SaveThreshold      int
	SaveInterval       time.Duration
	PersistencePath    string
}

// KarmaConfig configures the Karma Client (spec.md §4.6).
type KarmaConfig struct {
	CacheTTL              time.Duration
	InvalidationThreshold float64
	WindowSize            int
	MaxRetryAttempts      int
	RequestTimeout        time.Duration

	// RedisAddr, if non-empty, enables a shared cache tier between the
	// in-process cache and the upstream source so multiple router
	// instances converge on the same karma score. Empty disables it.
	RedisAddr string
}

// STPConfig configures the Secure Packet Envelope (spec.md §4.7).
type STPConfig struct {
	Version          string
	TokenPrefix      string
	SigningEnabled   bool
	SharedSecret     []byte
	MaxDrift         time.Duration
	ReplayCapacity   int
	LenientChecksum  bool
	WarnFailureRate  float64
	CritFailureRate  float64
}

// BusConfig configures the Telemetry Bus (spec.md §4.8).
type BusConfig struct {
	BufferSize       int
	SubscriberQueue  int
	RateLimitPerSec  float64
	MaxSubscribers   int
	MaxPacketAge     time.Duration
}

// DecisionLogConfig configures the Decision Log Sink (spec.md §4.10).
type DecisionLogConfig struct {
	Path            string
	RetentionDays   int
}

// Config is the closed, validated configuration record for the entire
// routing core. Unknown knobs fail to load because there is no open map
// to put them in; every field here corresponds to a value spec.md names.
type Config struct {
	Scoring      ScoringConfig
	QLearn       QLearnConfig
	Karma        KarmaConfig
	STP          STPConfig
	Bus          BusConfig
	DecisionLog  DecisionLogConfig
	NumAlternatives int
	KarmaTimeout    time.Duration
	LogAppendTimeout time.Duration
}

// Default returns the configuration described by spec.md's default
// values throughout §4.
func Default() Config {
	return Config{
		Scoring: ScoringConfig{
			Weights: ScoringWeights{
				Rule:         0.30,
				Feedback:     0.35,
				Availability: 0.20,
				Karma:        0.15,
			},
			MinConfidence:      0.1,
			MaxConfidence:      1.0,
			LatencyReferenceMS: 1000,
			SoftLoadCap:        50,
			HardLoadCap:        100,
			LoadLowCeiling:     5,
			LoadMediumCeiling:  15,
		},
		QLearn: QLearnConfig{
			Epsilon0:        0.1,
			EpsilonDecay:    0.995,
			EpsilonMin:      0.01,
			Alpha:           0.1,
			Gamma:           0.95,
			Beta:            1.0,
			KarmaSmoothing:  true,
			SaveThreshold:   10,
			SaveInterval:    300 * time.Second,
			PersistencePath: "qtable.json",
		},
		Karma: KarmaConfig{
			CacheTTL:              60 * time.Second,
			InvalidationThreshold: 0.2,
			WindowSize:            10,
			MaxRetryAttempts:      3,
			RequestTimeout:        2 * time.Second,
		},
		STP: STPConfig{
			Version:        "1.0",
			TokenPrefix:    "stp",
			SigningEnabled: true,
			// Default secret is a placeholder: real deployments must
			// override it from a secrets store before construction.
			SharedSecret:    []byte("change-me-nexarouter-default-secret"),
			MaxDrift:        5 * time.Second,
			ReplayCapacity:  100000,
			LenientChecksum: false,
			WarnFailureRate: 0.10,
			CritFailureRate: 0.25,
		},
		Bus: BusConfig{
			BufferSize:      1000,
			SubscriberQueue: 256,
			RateLimitPerSec: 200,
			MaxSubscribers:  100,
			MaxPacketAge:    10 * time.Second,
		},
		DecisionLog: DecisionLogConfig{
			Path:          "decisions.log",
			RetentionDays: 30,
		},
		NumAlternatives:  3,
		KarmaTimeout:     2 * time.Second,
		LogAppendTimeout: 2 * time.Second,
	}
}

// Validate checks every invariant spec.md places on configuration values
// and returns a *routererrors.RouterError with code CodeConfigError on
// the first violation found. Validation happens at construction, never
// at use (spec.md §4.2, §7).
func (c Config) Validate() error {
	w := c.Scoring.Weights
	sum := w.Rule + w.Feedback + w.Availability + w.Karma
	if sum < 0.999 || sum > 1.001 {
		return routererrors.ConfigError("scoring.weights", "weights must sum to 1.0")
	}
	if c.Scoring.MinConfidence >= c.Scoring.MaxConfidence {
		return routererrors.ConfigError("scoring.min_confidence", "min_confidence must be < max_confidence")
	}
	if c.Scoring.MinConfidence < 0 || c.Scoring.MaxConfidence > 1 {
		return routererrors.ConfigError("scoring.confidence_bounds", "confidence bounds must lie within [0,1]")
	}
	if c.Scoring.LatencyReferenceMS <= 0 {
		return routererrors.ConfigError("scoring.latency_reference_ms", "must be positive")
	}
	if c.Scoring.HardLoadCap > 0 && c.Scoring.SoftLoadCap > c.Scoring.HardLoadCap {
		return routererrors.ConfigError("scoring.load_caps", "soft_load_cap must be <= hard_load_cap")
	}
	if c.Scoring.LoadMediumCeiling > 0 && c.Scoring.LoadLowCeiling > c.Scoring.LoadMediumCeiling {
		return routererrors.ConfigError("scoring.load_ceilings", "load_low_ceiling must be <= load_medium_ceiling")
	}

	if c.QLearn.Epsilon0 < 0 || c.QLearn.Epsilon0 > 1 {
		return routererrors.ConfigError("qlearn.epsilon0", "must lie within [0,1]")
	}
	if c.QLearn.EpsilonMin < 0 || c.QLearn.EpsilonMin > c.QLearn.Epsilon0 {
		return routererrors.ConfigError("qlearn.epsilon_min", "must lie within [0, epsilon0]")
	}
	if c.QLearn.EpsilonDecay <= 0 || c.QLearn.EpsilonDecay > 1 {
		return routererrors.ConfigError("qlearn.epsilon_decay", "must lie within (0,1]")
	}
	if c.QLearn.Alpha <= 0 || c.QLearn.Alpha > 1 {
		return routererrors.ConfigError("qlearn.alpha", "must lie within (0,1]")
	}
	if c.QLearn.Gamma < 0 || c.QLearn.Gamma > 1 {
		return routererrors.ConfigError("qlearn.gamma", "must lie within [0,1]")
	}
	if c.QLearn.SaveThreshold <= 0 {
		return routererrors.ConfigError("qlearn.save_threshold", "must be positive")
	}
	if c.QLearn.SaveInterval <= 0 {
		return routererrors.ConfigError("qlearn.save_interval", "must be positive")
	}

	if c.Karma.CacheTTL <= 0 {
		return routererrors.ConfigError("karma.cache_ttl", "must be positive")
	}
	if c.Karma.InvalidationThreshold <= 0 || c.Karma.InvalidationThreshold > 1 {
		return routererrors.ConfigError("karma.invalidation_threshold", "must lie within (0,1]")
	}
	if c.Karma.WindowSize <= 0 {
		return routererrors.ConfigError("karma.window_size", "must be positive")
	}
	if c.Karma.MaxRetryAttempts <= 0 {
		return routererrors.ConfigError("karma.max_retry_attempts", "must be positive")
	}

	if c.STP.Version == "" {
		return routererrors.ConfigError("stp.version", "must not be empty")
	}
	if c.STP.TokenPrefix == "" {
		return routererrors.ConfigError("stp.token_prefix", "must not be empty")
	}
	if c.STP.MaxDrift <= 0 {
		return routererrors.ConfigError("stp.max_drift", "must be positive")
	}
	if c.STP.ReplayCapacity <= 0 {
		return routererrors.ConfigError("stp.replay_capacity", "must be positive")
	}
	if c.STP.WarnFailureRate <= 0 || c.STP.CritFailureRate <= c.STP.WarnFailureRate {
		return routererrors.ConfigError("stp.failure_rate_thresholds", "critical threshold must exceed warning threshold")
	}
	if c.STP.SigningEnabled && len(c.STP.SharedSecret) == 0 {
		return routererrors.ConfigError("stp.shared_secret", "must not be empty when signing is enabled")
	}

	if c.Bus.BufferSize <= 0 {
		return routererrors.ConfigError("bus.buffer_size", "must be positive")
	}
	if c.Bus.SubscriberQueue <= 0 {
		return routererrors.ConfigError("bus.subscriber_queue", "must be positive")
	}
	if c.Bus.RateLimitPerSec <= 0 {
		return routererrors.ConfigError("bus.rate_limit_per_sec", "must be positive")
	}
	if c.Bus.MaxSubscribers <= 0 {
		return routererrors.ConfigError("bus.max_subscribers", "must be positive")
	}
	if c.Bus.MaxPacketAge <= 0 {
		return routererrors.ConfigError("bus.max_packet_age", "must be positive")
	}

	if c.DecisionLog.RetentionDays <= 0 {
		return routererrors.ConfigError("decision_log.retention_days", "must be positive")
	}

	if c.NumAlternatives < 0 {
		return routererrors.ConfigError("num_alternatives", "must be >= 0")
	}

	return nil
}
