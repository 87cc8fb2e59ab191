// Package model contains domain records passed between pipeline stages.
package model

import "time"

// TelemetryEvent is a single observed gameplay occurrence. Fields mirror
// the wire schema for POST /events. Events are immutable once ingested.
type TelemetryEvent struct {
	EventID   string             // unique id for idempotency
	PlayerID  string             // opaque player identifier
	SessionID string             // opaque session identifier
	EventType string             // e.g. "shot", "hit", "miss", "resource", "action"
	TS        time.Time          // event timestamp, monotonic per session
	Metrics   map[string]float64 // numeric payload values
	Tags      map[string]string  // string payload values
}

// SessionKey identifies one bounded period of play for one player.
type SessionKey struct {
	PlayerID  string
	SessionID string
}

// Key returns the event's session key.
func (e *TelemetryEvent) Key() SessionKey {
	return SessionKey{PlayerID: e.PlayerID, SessionID: e.SessionID}
}

// MetricStats carries incrementally maintained aggregates for one
// payload metric across the buffered window.
type MetricStats struct {
	Count int
	Sum   float64
	Min   float64
	Max   float64
}

// Mean returns the windowed mean, or 0 when the metric never occurred.
func (s MetricStats) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// SessionSnapshot is an isolated copy of one session's buffered state.
// Downstream aggregation reads only snapshots, never live buffers.
type SessionSnapshot struct {
	Key        SessionKey
	Events     []TelemetryEvent // oldest first, timestamps non-decreasing
	Stats      map[string]MetricStats
	EventTypes map[string]int // occurrences per event type in the window
	FirstTS    time.Time
	LastTS     time.Time
	TakenAt    time.Time
}

// FeatureVector is a read-only snapshot of named numeric features derived
// from one SessionSnapshot. Features that could not be computed (sparse
// metrics, insufficient events) are absent from Values, never zero-filled.
type FeatureVector struct {
	Key        SessionKey
	Values     map[string]float64
	EventCount int
	ComputedAt time.Time
}

// Has reports whether the named feature was computable.
func (v FeatureVector) Has(name string) bool {
	_, ok := v.Values[name]
	return ok
}

// Get returns the named feature value and whether it is present.
func (v FeatureVector) Get(name string) (float64, bool) {
	val, ok := v.Values[name]
	return val, ok
}

// Insight is a scored, time-bounded recommendation surfaced to a player.
// Insights are immutable; newer insights of the same category supersede
// older ones rather than mutating them.
type Insight struct {
	PlayerID   string
	SessionID  string
	Category   string
	Message    string
	Confidence float64 // always within [0,1]; enforced at rule registration
	RuleID     string
	CreatedAt  time.Time
	ValidUntil time.Time
}

// Expired reports whether the insight's validity window has passed.
func (i Insight) Expired(now time.Time) bool {
	return now.After(i.ValidUntil)
}
