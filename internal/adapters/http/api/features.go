package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rumidev445/erysa/internal/domain/feature"
	"github.com/rumidev445/erysa/internal/session"
)

// FeaturesHandler serves on-demand feature vectors for live sessions.
type FeaturesHandler struct {
	deps Dependencies
}

// NewFeaturesHandler creates a new features handler.
func NewFeaturesHandler(deps Dependencies) *FeaturesHandler {
	return &FeaturesHandler{deps: deps}
}

// HandleGetFeatures handles GET /features/{player_id}/{session_id}.
func (h *FeaturesHandler) HandleGetFeatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	playerID, sessionID, ok := splitSessionPath(r.URL.Path, "/features/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	vec, err := h.deps.Features(r.Context(), playerID, sessionID)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionClosed):
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	case errors.Is(err, feature.ErrInsufficientData):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_data", err)
		return
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	writeJSON(w, http.StatusOK, featureResponse{
		PlayerID:   playerID,
		SessionID:  sessionID,
		EventCount: vec.EventCount,
		ComputedAt: vec.ComputedAt.UTC().Format(time.RFC3339),
		Features:   vec.Values,
	})
}

// splitSessionPath extracts {player_id}/{session_id} after prefix.
func splitSessionPath(path, prefix string) (playerID, sessionID string, ok bool) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
