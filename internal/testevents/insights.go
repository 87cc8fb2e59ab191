package testevents

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
)

// retrieveInsights queries the insight board for every simulated player
// concurrently.
func retrieveInsights(ctx context.Context, config *Config, sessions []Session, stats *Stats) (map[string][]InsightEntry, error) {
	log.Printf("🔎 Retrieving insights for %d players with %d workers...", len(sessions), config.Workers)

	client := newHTTPClient(config.Timeout)

	results := make([]([]InsightEntry), len(sessions))
	var (
		retrieved int64
		failed    int64
	)

	indexChan := make(chan int, config.Workers*SessionChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for index := range indexChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				playerID := sessions[index].PlayerID
				entries, err := retrievePlayerInsights(ctx, client, config.BaseURL, playerID)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Printf("⚠️  Failed to get insights for %s: %v", playerID, err)
					}
					continue
				}
				results[index] = entries
				atomic.AddInt64(&retrieved, 1)
			}
		}(i)
	}

	go func() {
		defer close(indexChan)
		for i := range sessions {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	byPlayer := make(map[string][]InsightEntry, len(sessions))
	totalInsights := 0
	for i, session := range sessions {
		byPlayer[session.PlayerID] = results[i]
		totalInsights += len(results[i])
	}

	stats.PlayersQueried = int(atomic.LoadInt64(&retrieved))
	stats.InsightsRetrieved = totalInsights

	log.Printf("✅ Insight retrieval completed: %d players queried, %d insights, %d failed",
		stats.PlayersQueried, totalInsights, atomic.LoadInt64(&failed))

	return byPlayer, nil
}

// retrievePlayerInsights fetches the board entries for one player.
func retrievePlayerInsights(ctx context.Context, client *HTTPClient, baseURL, playerID string) ([]InsightEntry, error) {
	url := baseURL + "/insights/" + playerID

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get insights: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var entries []InsightEntry
	if err := unmarshalJSON(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse insights: %w", err)
	}
	return entries, nil
}

// expectedCategories maps archetypes to the insight category their
// sessions are shaped to trigger.
var expectedCategories = map[string]string{
	archetypeFatigued:   "aim",
	archetypeSlowReflex: "reflex",
	archetypeWasteful:   "economy",
	archetypeFrantic:    "momentum",
}

// verifyInsights checks that each shaped archetype produced its expected
// insight category. Steady players are not expected to trigger anything.
func verifyInsights(ctx context.Context, config *Config, sessions []Session, byPlayer map[string][]InsightEntry) error {
	log.Printf("🔍 Verifying insight categories against player archetypes...")

	var matched, missed int
	for _, session := range sessions {
		want, ok := expectedCategories[session.Archetype]
		if !ok {
			continue
		}

		found := false
		for _, entry := range byPlayer[session.PlayerID] {
			if entry.Category == want {
				found = true
				break
			}
		}
		if found {
			matched++
			continue
		}
		missed++
		if config.Verbose {
			log.Printf("⚠️  Player %s (%s) missing expected category %q", session.PlayerID, session.Archetype, want)
		}
	}

	log.Printf("✅ Verification completed: %d archetypes matched, %d missed", matched, missed)

	if matched == 0 && missed > 0 {
		return fmt.Errorf("no shaped archetype produced its expected insight (%d missed)", missed)
	}
	return nil
}
