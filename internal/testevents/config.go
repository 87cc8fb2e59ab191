package testevents

import "time"

// Config holds configuration for the telemetry test
type Config struct {
	BaseURL          string        // Base URL of the service
	NumPlayers       int           // Number of simulated players
	EventsPerSession int           // Events generated per player session
	Workers          int           // Number of concurrent workers
	Timeout          time.Duration // HTTP request timeout
	OutputFile       string        // Output file for events
	LogFile          string        // Log file for test output
	Verbose          bool          // Enable verbose logging
}

// Event represents a telemetry event to be submitted
type Event struct {
	EventID   string         `json:"event_id"`
	PlayerID  string         `json:"player_id"`
	SessionID string         `json:"session_id"`
	EventType string         `json:"event_type"`
	TS        string         `json:"ts"`
	Payload   map[string]any `json:"payload"`
}

// Session groups one player's events in submission order
type Session struct {
	PlayerID  string
	SessionID string
	Archetype string
	Events    []Event
}

// AckResponse represents the response from event submission
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// InsightEntry represents one insight returned by the read API
type InsightEntry struct {
	PlayerID   string  `json:"player_id"`
	SessionID  string  `json:"session_id"`
	Category   string  `json:"category"`
	Message    string  `json:"message"`
	Confidence float64 `json:"confidence"`
	RuleID     string  `json:"rule_id"`
	CreatedAt  string  `json:"created_at"`
	ValidUntil string  `json:"valid_until"`
}

// Stats holds test statistics
type Stats struct {
	SessionsGenerated int
	EventsGenerated   int
	EventsSubmitted   int
	EventsSuccessful  int
	EventsDuplicate   int
	EventsFailed      int
	PlayersQueried    int
	InsightsRetrieved int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
