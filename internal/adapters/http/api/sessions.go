package api

import (
	"errors"
	"net/http"

	"github.com/rumidev445/erysa/internal/session"
)

// SessionsHandler handles explicit end-of-game session closes.
type SessionsHandler struct {
	deps Dependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps Dependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// HandleCloseSession handles DELETE /sessions/{player_id}/{session_id}.
// Closing is terminal; in-flight pipeline work for the session drains
// before its resources are released.
func (h *SessionsHandler) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}

	playerID, sessionID, ok := splitSessionPath(r.URL.Path, "/sessions/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	err := h.deps.CloseSession(r.Context(), playerID, sessionID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ackResponse{Status: "closed"})
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, session.ErrSessionClosed):
		writeError(w, http.StatusConflict, "already_closed", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
