package insight

import "errors"

// Sentinel kinds for engine errors.
var (
	// ErrInvalidRuleOutput rejects a rule at registration time.
	ErrInvalidRuleOutput = errors.New("invalid rule output")
)
