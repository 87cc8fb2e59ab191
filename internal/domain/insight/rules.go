package insight

import (
	"context"
	"fmt"
	"math"

	"github.com/rumidev445/erysa/internal/domain/feature"
	"github.com/rumidev445/erysa/internal/domain/model"
)

// Built-in rule priorities. Corrective insights outrank encouragement.
const (
	priorityAim      = 10
	priorityReflex   = 20
	priorityEconomy  = 30
	priorityMomentum = 40
)

// Confidence shaping constants for the built-in rules.
const (
	baseConfidence  = 0.4
	floorConfidence = 0.5
)

// aimDegradationRule flags accuracy below the configured floor.
type aimDegradationRule struct {
	floor float64
}

// NewAimDegradationRule creates the aim degradation rule. floor is the
// accuracy ratio below which the rule triggers.
func NewAimDegradationRule(floor float64) Rule {
	return &aimDegradationRule{floor: floor}
}

func (r *aimDegradationRule) ID() string       { return "aim_degradation" }
func (r *aimDegradationRule) Category() string { return "aim" }
func (r *aimDegradationRule) Priority() int    { return priorityAim }

func (r *aimDegradationRule) Evaluate(_ context.Context, vec model.FeatureVector) (*Candidate, error) {
	acc, ok := vec.Get(feature.AccuracyRatio)
	if !ok || r.floor <= 0 || acc >= r.floor {
		return nil, nil
	}
	shortfall := (r.floor - acc) / r.floor
	return &Candidate{
		Message:    fmt.Sprintf("Accuracy dropped to %.0f%%. Slow your shots and aim for center mass.", acc*100),
		Confidence: math.Min(1, floorConfidence+shortfall/2),
	}, nil
}

// reactionSlowdownRule flags average reaction time above the ceiling.
type reactionSlowdownRule struct {
	ceilingMS float64
}

// NewReactionSlowdownRule creates the reaction slowdown rule. ceilingMS
// is the average reaction time above which the rule triggers.
func NewReactionSlowdownRule(ceilingMS float64) Rule {
	return &reactionSlowdownRule{ceilingMS: ceilingMS}
}

func (r *reactionSlowdownRule) ID() string       { return "reaction_slowdown" }
func (r *reactionSlowdownRule) Category() string { return "reflex" }
func (r *reactionSlowdownRule) Priority() int    { return priorityReflex }

func (r *reactionSlowdownRule) Evaluate(_ context.Context, vec model.FeatureVector) (*Candidate, error) {
	avg, ok := vec.Get(feature.ReactionTimeAvg)
	if !ok || r.ceilingMS <= 0 || avg <= r.ceilingMS {
		return nil, nil
	}
	excess := (avg - r.ceilingMS) / r.ceilingMS
	msg := fmt.Sprintf("Reaction time is averaging %.0fms. Consider a short break.", avg)
	if trend, ok := vec.Get(feature.ReactionTimeTrend); ok && trend > 0 {
		msg = fmt.Sprintf("Reaction time is averaging %.0fms and trending slower. Consider a short break.", avg)
	}
	return &Candidate{
		Message:    msg,
		Confidence: math.Min(1, baseConfidence+excess),
	}, nil
}

// resourceWasteRule flags resource efficiency below the floor.
type resourceWasteRule struct {
	floor float64
}

// NewResourceWasteRule creates the resource waste rule. floor is the
// gained/spent ratio below which the rule triggers.
func NewResourceWasteRule(floor float64) Rule {
	return &resourceWasteRule{floor: floor}
}

func (r *resourceWasteRule) ID() string       { return "resource_waste" }
func (r *resourceWasteRule) Category() string { return "economy" }
func (r *resourceWasteRule) Priority() int    { return priorityEconomy }

func (r *resourceWasteRule) Evaluate(_ context.Context, vec model.FeatureVector) (*Candidate, error) {
	eff, ok := vec.Get(feature.ResourceEfficiency)
	if !ok || r.floor <= 0 || eff >= r.floor {
		return nil, nil
	}
	deficit := (r.floor - eff) / r.floor
	return &Candidate{
		Message:    fmt.Sprintf("You are spending more than you gain (efficiency %.2f). Hold resources for contested objectives.", eff),
		Confidence: math.Min(1, baseConfidence+deficit/2),
	}, nil
}

// paceSurgeRule rewards a high action rate with a momentum insight.
type paceSurgeRule struct {
	apmThreshold float64
}

// NewPaceSurgeRule creates the pace surge rule. apmThreshold is the
// actions-per-minute rate at which the rule triggers.
func NewPaceSurgeRule(apmThreshold float64) Rule {
	return &paceSurgeRule{apmThreshold: apmThreshold}
}

func (r *paceSurgeRule) ID() string       { return "pace_surge" }
func (r *paceSurgeRule) Category() string { return "momentum" }
func (r *paceSurgeRule) Priority() int    { return priorityMomentum }

func (r *paceSurgeRule) Evaluate(_ context.Context, vec model.FeatureVector) (*Candidate, error) {
	apm, ok := vec.Get(feature.ActionsPerMinute)
	if !ok || r.apmThreshold <= 0 || apm < r.apmThreshold {
		return nil, nil
	}
	return &Candidate{
		Message:    fmt.Sprintf("Strong tempo at %.0f actions per minute. Press the advantage.", apm),
		Confidence: math.Min(1, floorConfidence*apm/r.apmThreshold),
	}, nil
}
