package insight_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rumidev445/erysa/internal/domain/insight"
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

func vector(values map[string]float64) model.FeatureVector {
	return model.FeatureVector{
		Key:        model.SessionKey{PlayerID: "p1", SessionID: "s1"},
		Values:     values,
		EventCount: 50,
		ComputedAt: time.Now(),
	}
}

// staticRule triggers on every vector with a fixed candidate.
func staticRule(id, category string, priority int, confidence float64) insight.Rule {
	return insight.NewFuncRule(id, category, priority,
		func(_ context.Context, _ model.FeatureVector) (*insight.Candidate, error) {
			return &insight.Candidate{Message: "m-" + id, Confidence: confidence}, nil
		})
}

func TestEngineRegister(t *testing.T) {
	ctx := context.Background()

	Convey("Given an insight engine", t, func() {
		e := insight.NewEngine()

		Convey("When registering well-formed rules", func() {
			err := e.Register(ctx,
				staticRule("r1", "aim", 10, 0.5),
				staticRule("r2", "reflex", 20, 0.7),
			)

			Convey("Then both are registered in order", func() {
				So(err, ShouldBeNil)
				So(e.RuleIDs(), ShouldResemble, []string{"r1", "r2"})
			})
		})

		Convey("When registering a rule with an empty ID", func() {
			err := e.Register(ctx, staticRule("", "aim", 10, 0.5))

			Convey("Then registration fails", func() {
				So(errors.Is(err, insight.ErrInvalidRuleOutput), ShouldBeTrue)
			})
		})

		Convey("When registering a rule with an empty category", func() {
			err := e.Register(ctx, staticRule("r1", "", 10, 0.5))

			Convey("Then registration fails", func() {
				So(errors.Is(err, insight.ErrInvalidRuleOutput), ShouldBeTrue)
			})
		})

		Convey("When registering a duplicate rule ID", func() {
			So(e.Register(ctx, staticRule("r1", "aim", 10, 0.5)), ShouldBeNil)
			err := e.Register(ctx, staticRule("r1", "reflex", 20, 0.5))

			Convey("Then registration fails", func() {
				So(errors.Is(err, insight.ErrInvalidRuleOutput), ShouldBeTrue)
			})
		})

		Convey("When a rule emits confidence above 1 on a probe vector", func() {
			err := e.Register(ctx, staticRule("r1", "aim", 10, 1.5))

			Convey("Then it is rejected before it can ever run live", func() {
				So(errors.Is(err, insight.ErrInvalidRuleOutput), ShouldBeTrue)
				So(e.RuleIDs(), ShouldBeEmpty)
			})
		})

		Convey("When a rule emits negative confidence on a probe vector", func() {
			err := e.Register(ctx, staticRule("r1", "aim", 10, -0.1))

			Convey("Then it is rejected", func() {
				So(errors.Is(err, insight.ErrInvalidRuleOutput), ShouldBeTrue)
			})
		})
	})
}

func TestEngineScore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an engine with registered rules", t, func() {
		e := insight.NewEngine(insight.WithValidity(90 * time.Second))

		Convey("When rules in distinct categories trigger", func() {
			So(e.Register(ctx,
				staticRule("low", "aim", 10, 0.4),
				staticRule("high", "reflex", 20, 0.9),
				staticRule("mid", "economy", 30, 0.6),
			), ShouldBeNil)

			out := e.Score(ctx, vector(nil))

			Convey("Then insights come back ordered by confidence descending", func() {
				So(out, ShouldHaveLength, 3)
				So(out[0].RuleID, ShouldEqual, "high")
				So(out[1].RuleID, ShouldEqual, "mid")
				So(out[2].RuleID, ShouldEqual, "low")
			})

			Convey("Then each insight carries its scoring context", func() {
				So(out[0].PlayerID, ShouldEqual, "p1")
				So(out[0].SessionID, ShouldEqual, "s1")
				So(out[0].Category, ShouldEqual, "reflex")
				So(out[0].ValidUntil.Sub(out[0].CreatedAt), ShouldEqual, 90*time.Second)
			})
		})

		Convey("When two rules in the same category trigger", func() {
			So(e.Register(ctx,
				staticRule("weak", "aim", 10, 0.4),
				staticRule("strong", "aim", 20, 0.8),
			), ShouldBeNil)

			out := e.Score(ctx, vector(nil))

			Convey("Then the category dedupes to the higher confidence", func() {
				So(out, ShouldHaveLength, 1)
				So(out[0].RuleID, ShouldEqual, "strong")
			})
		})

		Convey("When same-category rules tie on confidence", func() {
			So(e.Register(ctx,
				staticRule("later", "aim", 30, 0.5),
				staticRule("urgent", "aim", 10, 0.5),
			), ShouldBeNil)

			out := e.Score(ctx, vector(nil))

			Convey("Then the higher priority rule wins", func() {
				So(out, ShouldHaveLength, 1)
				So(out[0].RuleID, ShouldEqual, "urgent")
			})
		})

		Convey("When a rule returns an error at runtime", func() {
			faulty := insight.NewFuncRule("faulty", "aim", 10,
				func(_ context.Context, _ model.FeatureVector) (*insight.Candidate, error) {
					return nil, fmt.Errorf("downstream lookup failed")
				})
			So(e.Register(ctx, faulty, staticRule("ok", "reflex", 20, 0.6)), ShouldBeNil)

			out := e.Score(ctx, vector(nil))

			Convey("Then the failure is isolated to that rule", func() {
				So(out, ShouldHaveLength, 1)
				So(out[0].RuleID, ShouldEqual, "ok")
			})
		})

		Convey("When a rule returns nil without error", func() {
			silent := insight.NewFuncRule("silent", "aim", 10,
				func(_ context.Context, _ model.FeatureVector) (*insight.Candidate, error) {
					return nil, nil
				})
			So(e.Register(ctx, silent), ShouldBeNil)

			out := e.Score(ctx, vector(nil))

			Convey("Then no insight is emitted", func() {
				So(out, ShouldBeEmpty)
			})
		})
	})
}

func TestBuiltInRules(t *testing.T) {
	ctx := context.Background()

	Convey("Given the built-in rule set", t, func() {
		e := insight.NewEngine()
		So(e.Register(ctx,
			insight.NewAimDegradationRule(0.35),
			insight.NewReactionSlowdownRule(420),
			insight.NewResourceWasteRule(0.8),
			insight.NewPaceSurgeRule(90),
		), ShouldBeNil)

		Convey("When a player shows degraded aim", func() {
			out := e.Score(ctx, vector(map[string]float64{
				"accuracy_ratio": 0.2,
			}))

			Convey("Then the aim insight fires with bounded confidence", func() {
				So(out, ShouldHaveLength, 1)
				So(out[0].Category, ShouldEqual, "aim")
				So(out[0].Confidence, ShouldBeBetweenOrEqual, 0, 1)
			})
		})

		Convey("When a player is slowing down and wasting resources", func() {
			out := e.Score(ctx, vector(map[string]float64{
				"reaction_time_avg_ms":   600,
				"reaction_time_trend_ms": 40,
				"resource_efficiency":    0.3,
			}))

			Convey("Then both categories fire", func() {
				So(out, ShouldHaveLength, 2)
				categories := []string{out[0].Category, out[1].Category}
				So(categories, ShouldContain, "reflex")
				So(categories, ShouldContain, "economy")
			})
		})

		Convey("When a player performs within all thresholds", func() {
			out := e.Score(ctx, vector(map[string]float64{
				"accuracy_ratio":       0.6,
				"reaction_time_avg_ms": 250,
				"resource_efficiency":  1.2,
				"actions_per_minute":   45,
			}))

			Convey("Then nothing fires", func() {
				So(out, ShouldBeEmpty)
			})
		})

		Convey("When a feature is absent from the vector", func() {
			out := e.Score(ctx, vector(map[string]float64{
				"actions_per_minute": 150,
			}))

			Convey("Then rules over absent features stay silent", func() {
				So(out, ShouldHaveLength, 1)
				So(out[0].Category, ShouldEqual, "momentum")
			})
		})
	})
}
