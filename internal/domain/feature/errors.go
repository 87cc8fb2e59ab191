package feature

import "errors"

// Sentinel kinds for aggregation errors.
var (
	// ErrInsufficientData means no feature reached its minimum sample
	// count. Non-fatal: callers skip scoring for this pass.
	ErrInsufficientData = errors.New("insufficient data for features")
)
