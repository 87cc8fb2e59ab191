// Package insight scores feature vectors into ranked, time-bounded
// insights. Scoring rules are externally supplied capabilities behind a
// single contract; new strategies are added by registration.
package insight

import (
	"context"

	"github.com/rumidev445/erysa/internal/domain/model"
)

// Candidate is a rule's raw output before the engine stamps identity
// and validity onto it.
type Candidate struct {
	Message    string
	Confidence float64 // must be within [0,1]; validated at registration
}

// Rule maps a feature vector to zero or one candidate insight.
type Rule interface {
	// ID uniquely names the rule for logging and attribution.
	ID() string

	// Category groups insights for dedupe, supersession and cool-down.
	Category() string

	// Priority breaks confidence ties; lower values rank earlier.
	Priority() int

	// Evaluate returns nil when the rule has nothing to say. An error
	// skips the rule for this pass without aborting the scoring pass.
	Evaluate(ctx context.Context, vec model.FeatureVector) (*Candidate, error)
}

// FuncRule adapts a plain function to the Rule contract.
type FuncRule struct {
	RuleID       string
	RuleCategory string
	RulePriority int
	Fn           func(ctx context.Context, vec model.FeatureVector) (*Candidate, error)
}

// NewFuncRule wraps fn as a Rule.
func NewFuncRule(id, category string, priority int, fn func(ctx context.Context, vec model.FeatureVector) (*Candidate, error)) *FuncRule {
	return &FuncRule{RuleID: id, RuleCategory: category, RulePriority: priority, Fn: fn}
}

func (r *FuncRule) ID() string       { return r.RuleID }
func (r *FuncRule) Category() string { return r.RuleCategory }
func (r *FuncRule) Priority() int    { return r.RulePriority }

func (r *FuncRule) Evaluate(ctx context.Context, vec model.FeatureVector) (*Candidate, error) {
	return r.Fn(ctx, vec)
}
