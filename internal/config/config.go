// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers an optional YAML file and env vars on top.
// - Durations are expressed as integer seconds or milliseconds in config keys.
package config

import "runtime"

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// EventQueueSize bounds each worker's in-memory event queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of pipeline workers. Events of one
	// session always hash to the same worker.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the event-id idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// AllowedEventTypes is the ingest allow-set for event_type.
	AllowedEventTypes []string `koanf:"allowed_event_types"`

	// SessionCapacity bounds each session's ring buffer.
	SessionCapacity int `koanf:"session_capacity"`

	// SessionMaxAgeS bounds the age of buffered events in seconds;
	// whichever of capacity and age is reached first evicts oldest.
	SessionMaxAgeS int `koanf:"session_max_age_s"`

	// SessionIdleTimeoutS closes sessions with no appends for this long.
	SessionIdleTimeoutS int `koanf:"session_idle_timeout_s"`

	// FeatureMinEvents overrides the minimum event count per feature name.
	FeatureMinEvents map[string]int `koanf:"feature_min_events"`

	// Rule thresholds for the built-in rule set.
	AccuracyFloor     float64 `koanf:"accuracy_floor"`
	ReactionCeilingMS float64 `koanf:"reaction_ceiling_ms"`
	EfficiencyFloor   float64 `koanf:"efficiency_floor"`
	PaceSurgeAPM      float64 `koanf:"pace_surge_apm"`

	// InsightTTLS sets the validity window of emitted insights in seconds.
	InsightTTLS int `koanf:"insight_ttl_s"`

	// DispatchCooldownS suppresses repeat (player, category) deliveries.
	DispatchCooldownS int `koanf:"dispatch_cooldown_s"`

	// DispatchMaxAttempts bounds delivery retries per insight.
	DispatchMaxAttempts int `koanf:"dispatch_max_attempts"`

	// DispatchTimeoutMS bounds a single delivery attempt in milliseconds.
	DispatchTimeoutMS int `koanf:"dispatch_timeout_ms"`

	// MaxInsightsLimit caps GET /insights responses.
	MaxInsightsLimit int `koanf:"max_insights_limit"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		EventQueueSize:      10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		DedupeSize:          500_000,
		AllowedEventTypes:   []string{"shot", "hit", "miss", "kill", "death", "resource", "objective", "action"},
		SessionCapacity:     500,
		SessionMaxAgeS:      900,
		SessionIdleTimeoutS: 300,
		FeatureMinEvents:    map[string]int{},
		AccuracyFloor:       0.35,
		ReactionCeilingMS:   420,
		EfficiencyFloor:     0.8,
		PaceSurgeAPM:        90,
		InsightTTLS:         120,
		DispatchCooldownS:   60,
		DispatchMaxAttempts: 3,
		DispatchTimeoutMS:   2_000,
		MaxInsightsLimit:    100,
	}
}
