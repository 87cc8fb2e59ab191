package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rumidev445/erysa/internal/adapters/http/api"
	"github.com/rumidev445/erysa/internal/domain/feature"
	"github.com/rumidev445/erysa/internal/domain/model"
	"github.com/rumidev445/erysa/internal/ingest"
	"github.com/rumidev445/erysa/internal/session"
	"github.com/rumidev445/erysa/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeDeps implements api.Dependencies with scriptable behavior.
type fakeDeps struct {
	validator *ingest.Validator

	seen        map[string]bool
	unrecorded  []string
	enqueueOK   bool
	enqueued    []model.TelemetryEvent
	insights    []model.Insight
	featuresErr error
	features    model.FeatureVector
	closeErr    error
	closed      []model.SessionKey
}

func newFakeDeps() *fakeDeps {
	return &fakeDeps{
		validator: ingest.NewValidator(
			ingest.WithAllowedEventTypes([]string{"shot", "hit", "miss", "resource", "action"}),
		),
		seen:      make(map[string]bool),
		enqueueOK: true,
	}
}

func (d *fakeDeps) Normalize(ctx context.Context, raw ingest.Raw) (model.TelemetryEvent, error) {
	return d.validator.Normalize(raw)
}

func (d *fakeDeps) SeenAndRecord(ctx context.Context, id string) bool {
	if d.seen[id] {
		return true
	}
	d.seen[id] = true
	return false
}

func (d *fakeDeps) Unrecord(ctx context.Context, id string) {
	delete(d.seen, id)
	d.unrecorded = append(d.unrecorded, id)
}

func (d *fakeDeps) Enqueue(ctx context.Context, ev model.TelemetryEvent) bool {
	if !d.enqueueOK {
		return false
	}
	d.enqueued = append(d.enqueued, ev)
	return true
}

func (d *fakeDeps) Insights(ctx context.Context, playerID string) []model.Insight {
	return d.insights
}

func (d *fakeDeps) Features(ctx context.Context, playerID, sessionID string) (model.FeatureVector, error) {
	if d.featuresErr != nil {
		return model.FeatureVector{}, d.featuresErr
	}
	return d.features, nil
}

func (d *fakeDeps) CloseSession(ctx context.Context, playerID, sessionID string) error {
	if d.closeErr != nil {
		return d.closeErr
	}
	d.closed = append(d.closed, model.SessionKey{PlayerID: playerID, SessionID: sessionID})
	return nil
}

type fakeStats struct{}

func (fakeStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newTestMux(deps *fakeDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, fakeStats{}, 100).Register(context.Background(), mux)
	return mux
}

func postEvent(mux *http.ServeMux, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func eventBody(id string) map[string]any {
	return map[string]any{
		"event_id":   id,
		"player_id":  "p1",
		"session_id": "s1",
		"event_type": "hit",
		"ts":         time.Now().UTC().Format(time.RFC3339),
		"payload":    map[string]any{"reaction_time_ms": 240.0},
	}
}

func TestEventsEndpoint(t *testing.T) {
	Convey("Given the events endpoint", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		Convey("When posting a valid event", func() {
			rec := postEvent(mux, eventBody("evt-1"))

			Convey("Then it is accepted asynchronously with 202", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)

				var ack struct {
					Status    string `json:"status"`
					Duplicate bool   `json:"duplicate"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &ack), ShouldBeNil)
				So(ack.Status, ShouldEqual, "accepted")
				So(ack.Duplicate, ShouldBeFalse)
				So(deps.enqueued, ShouldHaveLength, 1)
			})
		})

		Convey("When posting the same event twice", func() {
			So(postEvent(mux, eventBody("evt-1")).Code, ShouldEqual, http.StatusAccepted)
			rec := postEvent(mux, eventBody("evt-1"))

			Convey("Then the duplicate acks 200 without re-entering the pipeline", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var ack struct {
					Duplicate bool `json:"duplicate"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &ack), ShouldBeNil)
				So(ack.Duplicate, ShouldBeTrue)
				So(deps.enqueued, ShouldHaveLength, 1)
			})
		})

		Convey("When posting a malformed event", func() {
			body := eventBody("evt-1")
			body["event_type"] = "teleport"
			rec := postEvent(mux, body)

			Convey("Then it is rejected with 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.enqueued, ShouldBeEmpty)
			})
		})

		Convey("When posting a body that is not JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader([]byte("not json")))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it is rejected with 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the pipeline is saturated", func() {
			deps.enqueueOK = false
			rec := postEvent(mux, eventBody("evt-1"))

			Convey("Then the client gets 429 and the event id is rolled back", func() {
				So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
				So(deps.unrecorded, ShouldResemble, []string{"evt-1"})

				// A retry of the same id is not misreported as duplicate.
				deps.enqueueOK = true
				So(postEvent(mux, eventBody("evt-1")).Code, ShouldEqual, http.StatusAccepted)
			})
		})

		Convey("When using the wrong method", func() {
			req := httptest.NewRequest(http.MethodGet, "/events", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it is not found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestInsightsEndpoint(t *testing.T) {
	Convey("Given the insights endpoint", t, func() {
		deps := newFakeDeps()
		now := time.Now()
		for i := 0; i < 5; i++ {
			deps.insights = append(deps.insights, model.Insight{
				PlayerID:   "p1",
				SessionID:  "s1",
				Category:   fmt.Sprintf("cat-%d", i),
				Confidence: 1 - float64(i)/10,
				CreatedAt:  now,
				ValidUntil: now.Add(time.Minute),
			})
		}
		mux := newTestMux(deps)

		Convey("When fetching a player's insights", func() {
			req := httptest.NewRequest(http.MethodGet, "/insights/p1", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then all live insights come back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var entries []map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
				So(entries, ShouldHaveLength, 5)
				So(entries[0]["category"], ShouldEqual, "cat-0")
			})
		})

		Convey("When limiting the result count", func() {
			req := httptest.NewRequest(http.MethodGet, "/insights/p1?limit=2", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then only the top insights come back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var entries []map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
				So(entries, ShouldHaveLength, 2)
			})
		})

		Convey("When the limit is invalid", func() {
			for _, limit := range []string{"0", "-1", "abc", "101"} {
				req := httptest.NewRequest(http.MethodGet, "/insights/p1?limit="+limit, nil)
				rec := httptest.NewRecorder()
				mux.ServeHTTP(rec, req)
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When the player id is missing", func() {
			req := httptest.NewRequest(http.MethodGet, "/insights/", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestFeaturesEndpoint(t *testing.T) {
	Convey("Given the features endpoint", t, func() {
		deps := newFakeDeps()
		deps.features = model.FeatureVector{
			Key:        model.SessionKey{PlayerID: "p1", SessionID: "s1"},
			Values:     map[string]float64{"accuracy_ratio": 0.5},
			EventCount: 12,
			ComputedAt: time.Now(),
		}
		mux := newTestMux(deps)

		Convey("When fetching features for a live session", func() {
			req := httptest.NewRequest(http.MethodGet, "/features/p1/s1", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the vector is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var resp struct {
					PlayerID   string             `json:"player_id"`
					EventCount int                `json:"event_count"`
					Features   map[string]float64 `json:"features"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.PlayerID, ShouldEqual, "p1")
				So(resp.EventCount, ShouldEqual, 12)
				So(resp.Features["accuracy_ratio"], ShouldEqual, 0.5)
			})
		})

		Convey("When the session is unknown", func() {
			deps.featuresErr = session.ErrSessionNotFound
			req := httptest.NewRequest(http.MethodGet, "/features/p1/s1", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it returns 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the session lacks data", func() {
			deps.featuresErr = feature.ErrInsufficientData
			req := httptest.NewRequest(http.MethodGet, "/features/p1/s1", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it returns 422", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
			})
		})

		Convey("When the path is malformed", func() {
			req := httptest.NewRequest(http.MethodGet, "/features/p1", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it returns 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestSessionsEndpoint(t *testing.T) {
	Convey("Given the sessions endpoint", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		Convey("When closing a session", func() {
			req := httptest.NewRequest(http.MethodDelete, "/sessions/p1/s1", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it acknowledges the close", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.closed, ShouldResemble, []model.SessionKey{{PlayerID: "p1", SessionID: "s1"}})
			})
		})

		Convey("When the session does not exist", func() {
			deps.closeErr = session.ErrSessionNotFound
			req := httptest.NewRequest(http.MethodDelete, "/sessions/p1/s1", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it returns 404", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the session is already closed", func() {
			deps.closeErr = session.ErrSessionClosed
			req := httptest.NewRequest(http.MethodDelete, "/sessions/p1/s1", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it returns 409", func() {
				So(rec.Code, ShouldEqual, http.StatusConflict)
			})
		})
	})
}

func TestHealthAndStatsEndpoints(t *testing.T) {
	Convey("Given the operational endpoints", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		Convey("When probing /healthz", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then it reports healthy", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When fetching /stats", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the service stats come back as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var stats map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &stats), ShouldBeNil)
				So(stats["started"], ShouldEqual, true)
			})
		})
	})
}
