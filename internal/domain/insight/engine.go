package insight

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rumidev445/erysa/internal/domain/model"
	"github.com/rumidev445/erysa/pkg/logger"
	"github.com/rumidev445/erysa/pkg/metrics"
)

// defaultValidity is the insight validity window when none is configured.
const defaultValidity = 2 * time.Minute

// Engine applies every registered rule to a feature vector and emits a
// ranked, deduplicated sequence of insights.
type Engine struct {
	mu            sync.RWMutex
	rules         []Rule
	seen          map[string]struct{}  // registered rule IDs
	lastTriggered map[string]time.Time // category -> last emit time
	validity      time.Duration
	log           logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithValidity sets the validity window stamped onto emitted insights.
func WithValidity(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.validity = d
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine creates an engine with no rules registered.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		seen:          make(map[string]struct{}),
		lastTriggered: make(map[string]time.Time),
		validity:      defaultValidity,
		log:           logger.Get().Named("insight"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds rules to the engine after probe validation. A rule that
// emits confidence outside [0,1] on any probe vector is rejected with
// ErrInvalidRuleOutput so bad rules surface at startup, not mid-stream.
func (e *Engine) Register(ctx context.Context, rules ...Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range rules {
		switch {
		case r.ID() == "":
			return fmt.Errorf("%w: empty rule id", ErrInvalidRuleOutput)
		case r.Category() == "":
			return fmt.Errorf("%w: rule %s has empty category", ErrInvalidRuleOutput, r.ID())
		}
		if _, dup := e.seen[r.ID()]; dup {
			return fmt.Errorf("%w: duplicate rule id %s", ErrInvalidRuleOutput, r.ID())
		}

		for _, vec := range probeVectors() {
			cand, err := r.Evaluate(ctx, vec)
			if err != nil || cand == nil {
				// Probe errors are not output violations; runtime
				// isolation covers them.
				continue
			}
			if cand.Confidence < 0 || cand.Confidence > 1 {
				return fmt.Errorf("%w: rule %s returned confidence %v",
					ErrInvalidRuleOutput, r.ID(), cand.Confidence)
			}
		}

		e.seen[r.ID()] = struct{}{}
		e.rules = append(e.rules, r)
	}
	return nil
}

// RuleIDs returns the registered rule IDs in registration order.
func (e *Engine) RuleIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, len(e.rules))
	for i, r := range e.rules {
		ids[i] = r.ID()
	}
	return ids
}

// Score runs every registered rule over vec and returns the surviving
// insights ordered by confidence desc, ties broken by rule priority,
// then by most-recently-triggered category. A failing rule is logged
// and skipped; it never aborts the pass.
func (e *Engine) Score(ctx context.Context, vec model.FeatureVector) []model.Insight {
	start := time.Now()
	defer func() {
		metrics.RecordScoringLatency(float64(time.Since(start).Milliseconds()))
	}()

	e.mu.RLock()
	rules := make([]Rule, len(e.rules))
	copy(rules, e.rules)
	e.mu.RUnlock()

	now := time.Now()

	type scored struct {
		insight  model.Insight
		priority int
	}
	best := make(map[string]scored) // category -> highest-confidence survivor

	for _, r := range rules {
		metrics.RecordRuleEvaluation()
		cand, err := r.Evaluate(ctx, vec)
		if err != nil {
			metrics.RecordRuleError()
			e.log.Warn(ctx, "rule evaluation failed; skipping rule",
				logger.String("ruleID", r.ID()),
				logger.Error(err),
			)
			continue
		}
		if cand == nil {
			continue
		}
		if cand.Confidence < 0 || cand.Confidence > 1 {
			// Registration probing should have caught this; treat it as
			// an evaluation error rather than clamping silently.
			metrics.RecordRuleError()
			e.log.Warn(ctx, "rule returned out-of-range confidence; skipping rule",
				logger.String("ruleID", r.ID()),
				logger.Float64("confidence", cand.Confidence),
			)
			continue
		}

		cur := scored{
			insight: model.Insight{
				PlayerID:   vec.Key.PlayerID,
				SessionID:  vec.Key.SessionID,
				Category:   r.Category(),
				Message:    cand.Message,
				Confidence: cand.Confidence,
				RuleID:     r.ID(),
				CreatedAt:  now,
				ValidUntil: now.Add(e.validity),
			},
			priority: r.Priority(),
		}

		// Same-category candidates within one pass dedupe to the
		// highest confidence; equal confidence keeps the higher
		// priority rule.
		prev, ok := best[cur.insight.Category]
		if !ok || cur.insight.Confidence > prev.insight.Confidence ||
			(cur.insight.Confidence == prev.insight.Confidence && cur.priority < prev.priority) {
			best[cur.insight.Category] = cur
		}
	}

	e.mu.RLock()
	triggered := make(map[string]time.Time, len(best))
	for cat := range best {
		triggered[cat] = e.lastTriggered[cat]
	}
	e.mu.RUnlock()

	out := make([]scored, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.insight.Confidence != b.insight.Confidence {
			return a.insight.Confidence > b.insight.Confidence
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		ta, tb := triggered[a.insight.Category], triggered[b.insight.Category]
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return a.insight.Category < b.insight.Category
	})

	insights := make([]model.Insight, len(out))
	for i, s := range out {
		insights[i] = s.insight
		metrics.RecordInsightEmitted(s.insight.Category)
	}

	if len(insights) > 0 {
		e.mu.Lock()
		for _, in := range insights {
			e.lastTriggered[in.Category] = now
		}
		e.mu.Unlock()
	}

	return insights
}

// probeVectors returns fixture vectors used to smoke-test rule output
// ranges at registration time.
func probeVectors() []model.FeatureVector {
	mk := func(values map[string]float64) model.FeatureVector {
		return model.FeatureVector{
			Key:        model.SessionKey{PlayerID: "probe", SessionID: "probe"},
			Values:     values,
			EventCount: 100,
			ComputedAt: time.Unix(0, 0),
		}
	}
	return []model.FeatureVector{
		mk(map[string]float64{}),
		mk(map[string]float64{
			"accuracy_ratio": 0, "reaction_time_avg_ms": 0,
			"resource_efficiency": 0, "actions_per_minute": 0,
			"reaction_time_trend_ms": 0,
		}),
		mk(map[string]float64{
			"accuracy_ratio": 1, "reaction_time_avg_ms": 5000,
			"resource_efficiency": 10, "actions_per_minute": 600,
			"reaction_time_trend_ms": 1000,
		}),
		mk(map[string]float64{
			"accuracy_ratio": 0.01, "reaction_time_avg_ms": 100000,
			"resource_efficiency": 0.001, "actions_per_minute": 100000,
			"reaction_time_trend_ms": -100000,
		}),
		mk(map[string]float64{
			"accuracy_ratio": 0.5, "reaction_time_avg_ms": 250,
			"resource_efficiency": 1, "actions_per_minute": 60,
			"reaction_time_trend_ms": -20,
		}),
	}
}
