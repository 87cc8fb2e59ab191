// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rumidev445/erysa/internal/domain/model"
	"github.com/rumidev445/erysa/internal/ingest"
)

// Dependencies required by HTTP handlers. An interface bundle keeps the
// handler layer loosely coupled to the service implementation.
type Dependencies interface {
	// Normalize validates a raw telemetry record into a canonical event.
	Normalize(ctx context.Context, raw ingest.Raw) (model.TelemetryEvent, error)

	// SeenAndRecord / Unrecord implement event-id idempotency.
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)

	// Enqueue pushes an event for async processing. Returns false on
	// backpressure.
	Enqueue(ctx context.Context, ev model.TelemetryEvent) bool

	// Read operations over the insight board and live sessions.
	Insights(ctx context.Context, playerID string) []model.Insight
	Features(ctx context.Context, playerID, sessionID string) (model.FeatureVector, error)
	CloseSession(ctx context.Context, playerID, sessionID string) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	eventsHandler   *EventsHandler
	insightsHandler *InsightsHandler
	featuresHandler *FeaturesHandler
	sessionsHandler *SessionsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxInsights int) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		eventsHandler:   NewEventsHandler(deps),
		insightsHandler: NewInsightsHandler(deps, maxInsights),
		featuresHandler: NewFeaturesHandler(deps),
		sessionsHandler: NewSessionsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/insights/", MetricsMiddleware(s.insightsHandler.HandleGetInsights, "insights"))
	mux.HandleFunc("/features/", MetricsMiddleware(s.featuresHandler.HandleGetFeatures, "features"))
	mux.HandleFunc("/sessions/", MetricsMiddleware(s.sessionsHandler.HandleCloseSession, "sessions"))
}

// eventRequest mirrors the wire schema for POST /events.
type eventRequest struct {
	EventID   string         `json:"event_id"`
	PlayerID  string         `json:"player_id"`
	SessionID string         `json:"session_id"`
	EventType string         `json:"event_type"`
	TS        string         `json:"ts"`
	Payload   map[string]any `json:"payload"`
}

func (e eventRequest) raw() ingest.Raw {
	return ingest.Raw{
		EventID:   e.EventID,
		PlayerID:  e.PlayerID,
		SessionID: e.SessionID,
		EventType: e.EventType,
		TS:        e.TS,
		Payload:   e.Payload,
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// insightEntry mirrors the read shape returned by insight queries.
type insightEntry struct {
	PlayerID   string  `json:"player_id"`
	SessionID  string  `json:"session_id"`
	Category   string  `json:"category"`
	Message    string  `json:"message"`
	Confidence float64 `json:"confidence"`
	RuleID     string  `json:"rule_id"`
	CreatedAt  string  `json:"created_at"`
	ValidUntil string  `json:"valid_until"`
}

func toInsightEntry(in model.Insight) insightEntry {
	return insightEntry{
		PlayerID:   in.PlayerID,
		SessionID:  in.SessionID,
		Category:   in.Category,
		Message:    in.Message,
		Confidence: in.Confidence,
		RuleID:     in.RuleID,
		CreatedAt:  in.CreatedAt.UTC().Format(time.RFC3339),
		ValidUntil: in.ValidUntil.UTC().Format(time.RFC3339),
	}
}

// featureResponse mirrors the read shape for GET /features.
type featureResponse struct {
	PlayerID   string             `json:"player_id"`
	SessionID  string             `json:"session_id"`
	EventCount int                `json:"event_count"`
	ComputedAt string             `json:"computed_at"`
	Features   map[string]float64 `json:"features"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
