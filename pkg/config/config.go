// Package config surfaces the typed runtime configuration spec §6.3
// recognizes, following the teacher's environment-variable-driven
// Load()/Validate() idiom.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable spec §6.3 names.
type Config struct {
	// SimulationSeed seeds RNG and logical time when the simulated effects
	// bundle is active (§6.3: "seeds RNG and logical time when the
	// test-mode effect is active").
	SimulationSeed uint64

	// SyncBatchSize is the number of facts fetched per anti-entropy round.
	SyncBatchSize int
	// SyncMaxAttempts bounds the retry count for a persistently failing batch.
	SyncMaxAttempts uint64
	// SyncInitialBackoff and SyncMaxBackoff bound the exponential-backoff
	// schedule between retry attempts.
	SyncInitialBackoff time.Duration
	SyncMaxBackoff     time.Duration

	// AMPLookbehind and AMPLookahead bound the accepted ratchet-generation
	// window (§6.3: "AMP window: lookbehind, lookahead").
	AMPLookbehind uint64
	AMPLookahead  uint64
	// FlowBudgetCeiling is the per-peer, per-window flow charge ceiling.
	FlowBudgetCeiling uint32

	// ConsensusFallbackTimeout is the number of epochs the fast path waits
	// before a coordination session falls back to the slower path.
	ConsensusFallbackTimeout uint64

	// ThresholdK and ThresholdN are the default guardian threshold (k, n).
	ThresholdK int
	ThresholdN int

	// DataDir is the base directory for local persisted state (§6.4).
	DataDir string
	// LogLevel is read from AURA_LOG_LEVEL; no component in this module
	// consults it (logging goes through the standard log package).
	LogLevel string
}

// Load reads configuration from environment variables, falling back to
// spec-reasonable defaults for every field — unlike the teacher's
// production validator config, nothing here is a hard-fail-if-unset
// secret, since the core has none: key material lives behind
// CryptoEffects/StorageEffects, never in an env var.
func Load() (*Config, error) {
	cfg := &Config{
		SimulationSeed: getEnvUint64("AURA_SIMULATION_SEED", 0),

		SyncBatchSize:      getEnvInt("AURA_SYNC_BATCH_SIZE", 64),
		SyncMaxAttempts:    getEnvUint64("AURA_SYNC_MAX_ATTEMPTS", 5),
		SyncInitialBackoff: getEnvDuration("AURA_SYNC_INITIAL_BACKOFF", 200*time.Millisecond),
		SyncMaxBackoff:     getEnvDuration("AURA_SYNC_MAX_BACKOFF", 10*time.Second),

		AMPLookbehind:     getEnvUint64("AURA_AMP_LOOKBEHIND", 2),
		AMPLookahead:      getEnvUint64("AURA_AMP_LOOKAHEAD", 2),
		FlowBudgetCeiling: uint32(getEnvInt("AURA_FLOW_BUDGET_CEILING", 10_000)),

		ConsensusFallbackTimeout: getEnvUint64("AURA_CONSENSUS_FALLBACK_TIMEOUT_EPOCHS", 3),

		ThresholdK: getEnvInt("AURA_GUARDIAN_THRESHOLD_K", 3),
		ThresholdN: getEnvInt("AURA_GUARDIAN_THRESHOLD_N", 5),

		DataDir:  getEnv("AURA_DATA_DIR", "./data"),
		LogLevel: getEnv("AURA_LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// Validate checks the invariants spec §6.3 and §4.4 place on these
// values (positive batch size, k <= n, etc).
func (c *Config) Validate() error {
	var errs []string

	if c.SyncBatchSize <= 0 {
		errs = append(errs, "AURA_SYNC_BATCH_SIZE must be positive")
	}
	if c.SyncMaxAttempts == 0 {
		errs = append(errs, "AURA_SYNC_MAX_ATTEMPTS must be at least 1")
	}
	if c.SyncInitialBackoff <= 0 || c.SyncMaxBackoff < c.SyncInitialBackoff {
		errs = append(errs, "AURA_SYNC_MAX_BACKOFF must be >= AURA_SYNC_INITIAL_BACKOFF > 0")
	}
	if c.FlowBudgetCeiling == 0 {
		errs = append(errs, "AURA_FLOW_BUDGET_CEILING must be positive")
	}
	if c.ThresholdK <= 0 || c.ThresholdN <= 0 || c.ThresholdK > c.ThresholdN {
		errs = append(errs, "AURA_GUARDIAN_THRESHOLD_K must satisfy 0 < k <= n")
	}
	if c.ConsensusFallbackTimeout == 0 {
		errs = append(errs, "AURA_CONSENSUS_FALLBACK_TIMEOUT_EPOCHS must be at least 1")
	}

	if len(errs) > 0 {
		msg := "config validation failed:"
		for _, e := range errs {
			msg += "\n  - " + e
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
