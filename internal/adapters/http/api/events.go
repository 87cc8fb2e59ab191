package api

import (
	"encoding/json"
	"net/http"

	"github.com/rumidev445/erysa/pkg/metrics"
)

// EventsHandler handles telemetry ingest requests.
type EventsHandler struct {
	deps Dependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordEventRejected("malformed")
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	ev, err := h.deps.Normalize(r.Context(), req.raw())
	if err != nil {
		metrics.RecordEventRejected("malformed")
		writeError(w, http.StatusBadRequest, "malformed_event", err)
		return
	}

	// Idempotency check: mark as seen first so concurrent duplicates
	// cannot both enter the pipeline.
	if h.deps.SeenAndRecord(r.Context(), ev.EventID) {
		metrics.RecordEventDuplicate()
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	if ok := h.deps.Enqueue(r.Context(), ev); !ok {
		// Roll back the seen mark so the client can retry.
		h.deps.Unrecord(r.Context(), ev.EventID)
		writeError(w, http.StatusTooManyRequests, "backpressure", ErrBackpressure)
		return
	}

	metrics.RecordEventIngested()
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
