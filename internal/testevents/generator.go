package testevents

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rumidev445/erysa/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	archetypeDivisor   = 5
	eventIDDivisor     = 10000
)

// Constants for archetype metric ranges.
const (
	steadyAccuracy     = 0.60
	steadyReactionMin  = 200.0
	steadyReactionSpan = 100.0
	fatiguedAccuracy   = 0.25
	slowReactionMin    = 480.0
	slowReactionSpan   = 160.0
	wastefulGainedMin  = 5.0
	wastefulGainedSpan = 10.0
	wastefulSpentMin   = 25.0
	wastefulSpentSpan  = 15.0
	balancedGainedMin  = 20.0
	balancedGainedSpan = 15.0
	balancedSpentMin   = 15.0
	balancedSpentSpan  = 10.0
)

// Constants for inter-event pacing in milliseconds.
const (
	steadyGapMinMS   = 900
	steadyGapSpanMS  = 1500
	franticGapMinMS  = 200
	franticGapSpanMS = 300
)

// Player archetype names.
const (
	archetypeSteady     = "steady"
	archetypeFatigued   = "fatigued_aim"
	archetypeSlowReflex = "slow_reflex"
	archetypeWasteful   = "wasteful"
	archetypeFrantic    = "frantic"
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// generateSessions creates one session per simulated player. Each session's
// events carry strictly increasing timestamps so they replay in order.
func generateSessions(ctx context.Context, config *Config, stats *Stats) ([]Session, error) {
	logger.Get().Info(ctx, "generating player sessions",
		logger.Int("numPlayers", config.NumPlayers),
		logger.Int("eventsPerSession", config.EventsPerSession))

	sessions := make([]Session, config.NumPlayers)
	for i := 0; i < config.NumPlayers; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during session generation: %w", ctx.Err())
		default:
		}
		sessions[i] = generateSession(i, config.EventsPerSession)
	}

	stats.SessionsGenerated = len(sessions)
	for _, s := range sessions {
		stats.EventsGenerated += len(s.Events)
	}
	logger.Get().Info(ctx, "generated sessions successfully",
		logger.Int("sessions", len(sessions)),
		logger.Int("events", stats.EventsGenerated))

	return sessions, nil
}

// generateSession builds one gameplay session for a random archetype.
func generateSession(index, numEvents int) Session {
	playerID := uuid.New().String()
	sessionID := uuid.New().String()
	archetype := pickArchetype()

	ts := time.Now().UTC().Add(-time.Duration(numEvents) * 2 * time.Second)
	events := make([]Event, numEvents)
	for i := 0; i < numEvents; i++ {
		ts = ts.Add(gapFor(archetype))
		events[i] = generateSingleEvent(index, i, playerID, sessionID, archetype, ts)
	}

	return Session{
		PlayerID:  playerID,
		SessionID: sessionID,
		Archetype: archetype,
		Events:    events,
	}
}

func pickArchetype() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(archetypeDivisor))
	switch n.Int64() {
	case 0:
		return archetypeFatigued
	case 1:
		return archetypeSlowReflex
	case 2:
		return archetypeWasteful
	case 3:
		return archetypeFrantic
	default:
		return archetypeSteady
	}
}

// gapFor returns the inter-event gap for an archetype. Frantic players
// act fast enough to trip the pace threshold.
func gapFor(archetype string) time.Duration {
	if archetype == archetypeFrantic {
		return time.Duration(franticGapMinMS+int(getRandomFloat()*franticGapSpanMS)) * time.Millisecond
	}
	return time.Duration(steadyGapMinMS+int(getRandomFloat()*steadyGapSpanMS)) * time.Millisecond
}

// generateSingleEvent creates one telemetry event for the session.
func generateSingleEvent(sessionIndex, eventIndex int, playerID, sessionID, archetype string, ts time.Time) Event {
	randNum, _ := rand.Int(rand.Reader, big.NewInt(eventIDDivisor))
	eventID := "event_" + strconv.Itoa(sessionIndex) + "_" + strconv.Itoa(eventIndex) + "_" + strconv.FormatInt(randNum.Int64(), 10)

	eventType, payload := generateAction(archetype)

	return Event{
		EventID:   eventID,
		PlayerID:  playerID,
		SessionID: sessionID,
		EventType: eventType,
		TS:        ts.Format(time.RFC3339Nano),
		Payload:   payload,
	}
}

// generateAction picks an event type and payload shaped by the archetype.
// Every third event is a resource event; the rest are shot outcomes
// carrying reaction times.
func generateAction(archetype string) (string, map[string]any) {
	if getRandomFloat() < 1.0/3.0 {
		return "resource", resourcePayload(archetype)
	}

	accuracy := steadyAccuracy
	if archetype == archetypeFatigued {
		accuracy = fatiguedAccuracy
	}

	eventType := "miss"
	if getRandomFloat() < accuracy {
		eventType = "hit"
	}

	reaction := steadyReactionMin + getRandomFloat()*steadyReactionSpan
	if archetype == archetypeSlowReflex {
		reaction = slowReactionMin + getRandomFloat()*slowReactionSpan
	}

	return eventType, map[string]any{
		"reaction_time_ms": reaction,
		"weapon":           "rifle",
	}
}

func resourcePayload(archetype string) map[string]any {
	if archetype == archetypeWasteful {
		return map[string]any{
			"resources_gained": wastefulGainedMin + getRandomFloat()*wastefulGainedSpan,
			"resources_spent":  wastefulSpentMin + getRandomFloat()*wastefulSpentSpan,
		}
	}
	return map[string]any{
		"resources_gained": balancedGainedMin + getRandomFloat()*balancedGainedSpan,
		"resources_spent":  balancedSpentMin + getRandomFloat()*balancedSpentSpan,
	}
}
