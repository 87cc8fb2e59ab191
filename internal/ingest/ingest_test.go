package ingest_test

import (
	"errors"
	"testing"
	"time"

	"github.com/rumidev445/erysa/internal/ingest"
	. "github.com/smartystreets/goconvey/convey"
)

func validRaw() ingest.Raw {
	return ingest.Raw{
		EventID:   "evt-1",
		PlayerID:  "player-1",
		SessionID: "session-1",
		EventType: "hit",
		TS:        "2026-08-30T12:00:00Z",
		Payload: map[string]any{
			"reaction_time_ms": 240.0,
			"weapon":           "rifle",
		},
	}
}

func TestNormalize(t *testing.T) {
	Convey("Given a validator allowing the standard event types", t, func() {
		v := ingest.NewValidator(
			ingest.WithAllowedEventTypes([]string{"shot", "hit", "miss", "resource"}),
		)

		Convey("When normalizing a valid event", func() {
			ev, err := v.Normalize(validRaw())

			Convey("Then it succeeds and splits the payload by type", func() {
				So(err, ShouldBeNil)
				So(ev.EventID, ShouldEqual, "evt-1")
				So(ev.EventType, ShouldEqual, "hit")
				So(ev.TS.Equal(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(ev.Metrics["reaction_time_ms"], ShouldEqual, 240.0)
				So(ev.Tags["weapon"], ShouldEqual, "rifle")
			})
		})

		Convey("When normalizing boolean payload values", func() {
			raw := validRaw()
			raw.Payload = map[string]any{"headshot": true, "blocked": false}
			ev, err := v.Normalize(raw)

			Convey("Then booleans become 0/1 metrics", func() {
				So(err, ShouldBeNil)
				So(ev.Metrics["headshot"], ShouldEqual, 1.0)
				So(ev.Metrics["blocked"], ShouldEqual, 0.0)
			})
		})

		Convey("When a required field is missing", func() {
			cases := []func(*ingest.Raw){
				func(r *ingest.Raw) { r.EventID = "" },
				func(r *ingest.Raw) { r.PlayerID = "  " },
				func(r *ingest.Raw) { r.SessionID = "" },
				func(r *ingest.Raw) { r.EventType = "" },
				func(r *ingest.Raw) { r.TS = "" },
				func(r *ingest.Raw) { r.Payload = nil },
			}

			Convey("Then each is rejected as malformed", func() {
				for _, mutate := range cases {
					raw := validRaw()
					mutate(&raw)
					_, err := v.Normalize(raw)
					So(errors.Is(err, ingest.ErrMalformedEvent), ShouldBeTrue)
				}
			})
		})

		Convey("When the event type is not in the allow-set", func() {
			raw := validRaw()
			raw.EventType = "teleport"
			_, err := v.Normalize(raw)

			Convey("Then it is rejected as malformed", func() {
				So(errors.Is(err, ingest.ErrMalformedEvent), ShouldBeTrue)
			})
		})

		Convey("When the timestamp is not RFC3339", func() {
			raw := validRaw()
			raw.TS = "30/08/2026 12:00"
			_, err := v.Normalize(raw)

			Convey("Then it is rejected as malformed", func() {
				So(errors.Is(err, ingest.ErrMalformedEvent), ShouldBeTrue)
			})
		})

		Convey("When a payload value is a nested object", func() {
			raw := validRaw()
			raw.Payload = map[string]any{"loadout": map[string]any{"primary": "rifle"}}
			_, err := v.Normalize(raw)

			Convey("Then it is rejected as malformed", func() {
				So(errors.Is(err, ingest.ErrMalformedEvent), ShouldBeTrue)
			})
		})
	})

	Convey("Given a validator with no allow-set configured", t, func() {
		v := ingest.NewValidator()

		Convey("When normalizing any event", func() {
			_, err := v.Normalize(validRaw())

			Convey("Then every event type is rejected", func() {
				So(errors.Is(err, ingest.ErrMalformedEvent), ShouldBeTrue)
			})
		})
	})
}
