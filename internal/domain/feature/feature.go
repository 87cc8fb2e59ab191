// Package feature computes windowed statistics from session snapshots.
//
// Compute is deterministic: the same snapshot content always yields the
// same feature vector. Features whose inputs are sparse or below their
// minimum sample count are omitted from the vector, never zero-filled,
// so downstream scoring is not biased by substituted defaults.
package feature

import (
	"context"
	"time"

	"github.com/rumidev445/erysa/internal/domain/model"
	"github.com/rumidev445/erysa/pkg/metrics"
)

// Feature names. These are the documented, fixed feature set.
const (
	ReactionTimeAvg    = "reaction_time_avg_ms"
	ReactionTimeTrend  = "reaction_time_trend_ms"
	AccuracyRatio      = "accuracy_ratio"
	ResourceEfficiency = "resource_efficiency"
	ActionsPerMinute   = "actions_per_minute"
)

// Payload metric and event type names the features read.
const (
	metricReactionTime   = "reaction_time_ms"
	metricResourceGained = "resources_gained"
	metricResourceSpent  = "resources_spent"
	typeHit              = "hit"
	typeMiss             = "miss"
)

// Default minimum sample counts per feature.
const (
	defaultMinReactionSamples = 10
	defaultMinShots           = 10
	defaultMinResourceSamples = 5
	defaultMinRateEvents      = 10
	defaultMinTrendSamples    = 20
	defaultTrendWindow        = 10
)

// Aggregator derives feature vectors from session snapshots.
type Aggregator struct {
	minEvents   map[string]int
	trendWindow int
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithMinEvents overrides minimum sample counts per feature name.
func WithMinEvents(overrides map[string]int) Option {
	return func(a *Aggregator) {
		for name, n := range overrides {
			if n > 0 {
				a.minEvents[name] = n
			}
		}
	}
}

// WithTrendWindow sets how many recent samples feed the trend feature.
func WithTrendWindow(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.trendWindow = n
		}
	}
}

// NewAggregator creates an aggregator with default thresholds.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		minEvents: map[string]int{
			ReactionTimeAvg:    defaultMinReactionSamples,
			ReactionTimeTrend:  defaultMinTrendSamples,
			AccuracyRatio:      defaultMinShots,
			ResourceEfficiency: defaultMinResourceSamples,
			ActionsPerMinute:   defaultMinRateEvents,
		},
		trendWindow: defaultTrendWindow,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MinEvents returns the configured minimum sample count for a feature.
func (a *Aggregator) MinEvents(name string) int {
	return a.minEvents[name]
}

// Compute derives the feature vector for snap. A feature below its
// minimum sample count is omitted. When no feature is computable the
// error is ErrInsufficientData and the vector carries no values.
func (a *Aggregator) Compute(ctx context.Context, snap model.SessionSnapshot) (model.FeatureVector, error) {
	start := time.Now()
	defer func() {
		metrics.RecordFeatureComputeLatency(float64(time.Since(start).Milliseconds()))
	}()

	vec := model.FeatureVector{
		Key:        snap.Key,
		Values:     make(map[string]float64),
		EventCount: len(snap.Events),
		ComputedAt: snap.TakenAt,
	}

	a.reactionTimeAvg(snap, &vec)
	a.reactionTimeTrend(snap, &vec)
	a.accuracyRatio(snap, &vec)
	a.resourceEfficiency(snap, &vec)
	a.actionsPerMinute(snap, &vec)

	if len(vec.Values) == 0 {
		return vec, ErrInsufficientData
	}
	metrics.RecordFeaturesComputed()
	return vec, nil
}

func (a *Aggregator) reactionTimeAvg(snap model.SessionSnapshot, vec *model.FeatureVector) {
	stats, ok := snap.Stats[metricReactionTime]
	if !ok || stats.Count < a.minEvents[ReactionTimeAvg] {
		metrics.RecordFeatureInsufficient(ReactionTimeAvg)
		return
	}
	vec.Values[ReactionTimeAvg] = stats.Mean()
}

// reactionTimeTrend is the mean of the most recent samples minus the
// session mean; positive values mean the player is slowing down.
func (a *Aggregator) reactionTimeTrend(snap model.SessionSnapshot, vec *model.FeatureVector) {
	stats, ok := snap.Stats[metricReactionTime]
	if !ok || stats.Count < a.minEvents[ReactionTimeTrend] {
		metrics.RecordFeatureInsufficient(ReactionTimeTrend)
		return
	}

	recent := make([]float64, 0, a.trendWindow)
	for i := len(snap.Events) - 1; i >= 0 && len(recent) < a.trendWindow; i-- {
		if v, ok := snap.Events[i].Metrics[metricReactionTime]; ok {
			recent = append(recent, v)
		}
	}
	if len(recent) < a.trendWindow {
		metrics.RecordFeatureInsufficient(ReactionTimeTrend)
		return
	}
	var sum float64
	for _, v := range recent {
		sum += v
	}
	vec.Values[ReactionTimeTrend] = sum/float64(len(recent)) - stats.Mean()
}

func (a *Aggregator) accuracyRatio(snap model.SessionSnapshot, vec *model.FeatureVector) {
	hits := snap.EventTypes[typeHit]
	misses := snap.EventTypes[typeMiss]
	if hits+misses < a.minEvents[AccuracyRatio] {
		metrics.RecordFeatureInsufficient(AccuracyRatio)
		return
	}
	vec.Values[AccuracyRatio] = float64(hits) / float64(hits+misses)
}

func (a *Aggregator) resourceEfficiency(snap model.SessionSnapshot, vec *model.FeatureVector) {
	gained, okG := snap.Stats[metricResourceGained]
	spent, okS := snap.Stats[metricResourceSpent]
	if !okG || !okS || spent.Count < a.minEvents[ResourceEfficiency] || spent.Sum <= 0 {
		metrics.RecordFeatureInsufficient(ResourceEfficiency)
		return
	}
	vec.Values[ResourceEfficiency] = gained.Sum / spent.Sum
}

func (a *Aggregator) actionsPerMinute(snap model.SessionSnapshot, vec *model.FeatureVector) {
	if len(snap.Events) < a.minEvents[ActionsPerMinute] {
		metrics.RecordFeatureInsufficient(ActionsPerMinute)
		return
	}
	window := snap.LastTS.Sub(snap.FirstTS)
	if window <= 0 {
		metrics.RecordFeatureInsufficient(ActionsPerMinute)
		return
	}
	vec.Values[ActionsPerMinute] = float64(len(snap.Events)) / window.Minutes()
}
