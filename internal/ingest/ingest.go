// Package ingest validates and normalizes raw telemetry into canonical
// event records. The validator is stateless; per-session ordering is
// enforced downstream by the session store, which owns that state.
package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/rumidev445/erysa/internal/domain/model"
)

// Raw mirrors the wire shape of a telemetry event before normalization.
// Payload values arrive as JSON-decoded any: numbers as float64, the
// rest as strings.
type Raw struct {
	EventID   string
	PlayerID  string
	SessionID string
	EventType string
	TS        string
	Payload   map[string]any
}

// Validator checks raw events against the ingest schema.
type Validator struct {
	allowed map[string]struct{}
}

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithAllowedEventTypes sets the event type allow-set.
func WithAllowedEventTypes(types []string) Option {
	return func(v *Validator) {
		for _, t := range types {
			v.allowed[t] = struct{}{}
		}
	}
}

// NewValidator creates a validator. Without options every event type
// is rejected, so callers are expected to configure the allow-set.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{allowed: make(map[string]struct{})}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Normalize validates raw and converts it into a canonical TelemetryEvent.
// All failures wrap ErrMalformedEvent with a field-level detail.
func (v *Validator) Normalize(raw Raw) (model.TelemetryEvent, error) {
	switch {
	case strings.TrimSpace(raw.EventID) == "":
		return model.TelemetryEvent{}, fmt.Errorf("%w: missing event_id", ErrMalformedEvent)
	case strings.TrimSpace(raw.PlayerID) == "":
		return model.TelemetryEvent{}, fmt.Errorf("%w: missing player_id", ErrMalformedEvent)
	case strings.TrimSpace(raw.SessionID) == "":
		return model.TelemetryEvent{}, fmt.Errorf("%w: missing session_id", ErrMalformedEvent)
	case strings.TrimSpace(raw.EventType) == "":
		return model.TelemetryEvent{}, fmt.Errorf("%w: missing event_type", ErrMalformedEvent)
	case strings.TrimSpace(raw.TS) == "":
		return model.TelemetryEvent{}, fmt.Errorf("%w: missing ts", ErrMalformedEvent)
	case len(raw.Payload) == 0:
		return model.TelemetryEvent{}, fmt.Errorf("%w: empty payload", ErrMalformedEvent)
	}

	if _, ok := v.allowed[raw.EventType]; !ok {
		return model.TelemetryEvent{}, fmt.Errorf("%w: event_type %q not allowed", ErrMalformedEvent, raw.EventType)
	}

	ts, err := time.Parse(time.RFC3339, raw.TS)
	if err != nil {
		return model.TelemetryEvent{}, fmt.Errorf("%w: invalid ts; must be RFC3339", ErrMalformedEvent)
	}

	ev := model.TelemetryEvent{
		EventID:   raw.EventID,
		PlayerID:  raw.PlayerID,
		SessionID: raw.SessionID,
		EventType: raw.EventType,
		TS:        ts,
	}

	for name, val := range raw.Payload {
		switch x := val.(type) {
		case float64:
			if ev.Metrics == nil {
				ev.Metrics = make(map[string]float64)
			}
			ev.Metrics[name] = x
		case int:
			if ev.Metrics == nil {
				ev.Metrics = make(map[string]float64)
			}
			ev.Metrics[name] = float64(x)
		case string:
			if ev.Tags == nil {
				ev.Tags = make(map[string]string)
			}
			ev.Tags[name] = x
		case bool:
			// Booleans count as 0/1 metrics so rules can threshold them.
			if ev.Metrics == nil {
				ev.Metrics = make(map[string]float64)
			}
			if x {
				ev.Metrics[name] = 1
			} else {
				ev.Metrics[name] = 0
			}
		default:
			return model.TelemetryEvent{}, fmt.Errorf("%w: payload value %q is neither numeric nor string", ErrMalformedEvent, name)
		}
	}

	return ev, nil
}
