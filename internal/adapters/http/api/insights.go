package api

import (
	"net/http"
	"strconv"
	"strings"
)

// InsightsHandler handles insight board reads.
type InsightsHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(deps Dependencies, maxLimit int) *InsightsHandler {
	return &InsightsHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetInsights handles GET /insights/{player_id}?limit=N requests.
// Insights come back ordered by confidence descending.
func (h *InsightsHandler) HandleGetInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	playerID := strings.TrimPrefix(r.URL.Path, "/insights/")
	if playerID == "" || strings.Contains(playerID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	limit := h.maxLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		limit = n
	}

	insights := h.deps.Insights(r.Context(), playerID)
	if len(insights) > limit {
		insights = insights[:limit]
	}

	entries := make([]insightEntry, len(insights))
	for i, in := range insights {
		entries[i] = toInsightEntry(in)
	}
	writeJSON(w, http.StatusOK, entries)
}
