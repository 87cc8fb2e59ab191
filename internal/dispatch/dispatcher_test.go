package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rumidev445/erysa/internal/dispatch"
	"github.com/rumidev445/erysa/internal/domain/model"
	"github.com/rumidev445/erysa/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// recordingSubscriber counts deliveries and optionally fails the first
// failFirst attempts.
type recordingSubscriber struct {
	mu        sync.Mutex
	delivered []model.Insight
	attempts  int
	failFirst int
}

func (s *recordingSubscriber) Deliver(ctx context.Context, in model.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failFirst {
		return fmt.Errorf("transport unavailable")
	}
	s.delivered = append(s.delivered, in)
	return nil
}

func (s *recordingSubscriber) deliveredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

type recordingFailureHandler struct {
	mu     sync.Mutex
	failed []model.Insight
}

func (h *recordingFailureHandler) Undelivered(ctx context.Context, in model.Insight, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = append(h.failed, in)
}

func insightFor(player, category string, confidence float64, ttl time.Duration) model.Insight {
	now := time.Now()
	return model.Insight{
		PlayerID:   player,
		SessionID:  "s1",
		Category:   category,
		Message:    "msg",
		Confidence: confidence,
		RuleID:     "rule",
		CreatedAt:  now,
		ValidUntil: now.Add(ttl),
	}
}

func TestDispatcherPublish(t *testing.T) {
	ctx := context.Background()

	Convey("Given a dispatcher with a healthy subscriber", t, func() {
		sub := &recordingSubscriber{}
		d := dispatch.NewDispatcher(sub, dispatch.WithCooldown(50*time.Millisecond))

		Convey("When publishing an insight", func() {
			err := d.Publish(ctx, insightFor("p1", "aim", 0.8, time.Minute))

			Convey("Then it is delivered and boarded", func() {
				So(err, ShouldBeNil)
				So(sub.deliveredCount(), ShouldEqual, 1)
				So(d.BoardSize(), ShouldEqual, 1)
			})
		})

		Convey("When publishing the same category within the cool-down", func() {
			So(d.Publish(ctx, insightFor("p1", "aim", 0.8, time.Minute)), ShouldBeNil)
			So(d.Publish(ctx, insightFor("p1", "aim", 0.9, time.Minute)), ShouldBeNil)

			Convey("Then the second delivery is suppressed but the board is superseded", func() {
				So(sub.deliveredCount(), ShouldEqual, 1)

				insights := d.Insights(ctx, "p1")
				So(insights, ShouldHaveLength, 1)
				So(insights[0].Confidence, ShouldEqual, 0.9)
			})
		})

		Convey("When the cool-down window elapses", func() {
			So(d.Publish(ctx, insightFor("p1", "aim", 0.8, time.Minute)), ShouldBeNil)
			time.Sleep(60 * time.Millisecond)
			So(d.Publish(ctx, insightFor("p1", "aim", 0.85, time.Minute)), ShouldBeNil)

			Convey("Then delivery resumes", func() {
				So(sub.deliveredCount(), ShouldEqual, 2)
			})
		})

		Convey("When distinct categories are published back to back", func() {
			So(d.Publish(ctx, insightFor("p1", "aim", 0.8, time.Minute)), ShouldBeNil)
			So(d.Publish(ctx, insightFor("p1", "reflex", 0.7, time.Minute)), ShouldBeNil)

			Convey("Then cool-downs do not interfere across categories", func() {
				So(sub.deliveredCount(), ShouldEqual, 2)
			})
		})

		Convey("When distinct players publish the same category", func() {
			So(d.Publish(ctx, insightFor("p1", "aim", 0.8, time.Minute)), ShouldBeNil)
			So(d.Publish(ctx, insightFor("p2", "aim", 0.8, time.Minute)), ShouldBeNil)

			Convey("Then cool-downs do not interfere across players", func() {
				So(sub.deliveredCount(), ShouldEqual, 2)
			})
		})
	})
}

func TestDispatcherRetry(t *testing.T) {
	ctx := context.Background()

	Convey("Given a subscriber that fails transiently", t, func() {
		sub := &recordingSubscriber{failFirst: 2}
		d := dispatch.NewDispatcher(sub,
			dispatch.WithMaxAttempts(3),
			dispatch.WithBaseBackoff(time.Millisecond),
		)

		Convey("When publishing an insight", func() {
			err := d.Publish(ctx, insightFor("p1", "aim", 0.8, time.Minute))

			Convey("Then retries eventually deliver it", func() {
				So(err, ShouldBeNil)
				So(sub.deliveredCount(), ShouldEqual, 1)
				So(sub.attempts, ShouldEqual, 3)
			})
		})
	})

	Convey("Given a subscriber that always fails", t, func() {
		sub := &recordingSubscriber{failFirst: 1 << 30}
		failures := &recordingFailureHandler{}
		d := dispatch.NewDispatcher(sub,
			dispatch.WithMaxAttempts(3),
			dispatch.WithBaseBackoff(time.Millisecond),
			dispatch.WithFailureHandler(failures),
		)

		Convey("When publishing an insight", func() {
			err := d.Publish(ctx, insightFor("p1", "aim", 0.8, time.Minute))

			Convey("Then the failure is surfaced, never swallowed", func() {
				So(errors.Is(err, dispatch.ErrDeliveryFailure), ShouldBeTrue)
				So(sub.attempts, ShouldEqual, 3)
				So(failures.failed, ShouldHaveLength, 1)
			})

			Convey("Then the insight still reached the board", func() {
				So(d.Insights(ctx, "p1"), ShouldHaveLength, 1)
			})
		})
	})
}

func TestDispatcherBoard(t *testing.T) {
	ctx := context.Background()

	Convey("Given a dispatcher with boarded insights", t, func() {
		sub := &recordingSubscriber{}
		d := dispatch.NewDispatcher(sub)

		Convey("When reading a player's insights", func() {
			So(d.Publish(ctx, insightFor("p1", "aim", 0.6, time.Minute)), ShouldBeNil)
			So(d.Publish(ctx, insightFor("p1", "reflex", 0.9, time.Minute)), ShouldBeNil)
			So(d.Publish(ctx, insightFor("p2", "aim", 0.7, time.Minute)), ShouldBeNil)

			insights := d.Insights(ctx, "p1")

			Convey("Then only that player's insights come back, confidence first", func() {
				So(insights, ShouldHaveLength, 2)
				So(insights[0].Category, ShouldEqual, "reflex")
				So(insights[1].Category, ShouldEqual, "aim")
			})
		})

		Convey("When an insight's validity window has passed", func() {
			So(d.Publish(ctx, insightFor("p1", "aim", 0.6, 10*time.Millisecond)), ShouldBeNil)
			time.Sleep(20 * time.Millisecond)

			Convey("Then reads prune it from the board", func() {
				So(d.Insights(ctx, "p1"), ShouldBeEmpty)
				So(d.BoardSize(), ShouldEqual, 0)
			})
		})

		Convey("When a session is dropped", func() {
			So(d.Publish(ctx, insightFor("p1", "aim", 0.6, time.Minute)), ShouldBeNil)
			So(d.Publish(ctx, insightFor("p2", "aim", 0.7, time.Minute)), ShouldBeNil)

			d.DropSession(ctx, model.SessionKey{PlayerID: "p1", SessionID: "s1"})

			Convey("Then its insights vanish while others survive", func() {
				So(d.Insights(ctx, "p1"), ShouldBeEmpty)
				So(d.Insights(ctx, "p2"), ShouldHaveLength, 1)
			})
		})

		Convey("When a player has no insights", func() {
			Convey("Then the read returns an empty slice, not nil panic", func() {
				So(d.Insights(ctx, "ghost"), ShouldBeEmpty)
			})
		})
	})
}
