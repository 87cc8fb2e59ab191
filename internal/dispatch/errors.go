package dispatch

import "errors"

// Sentinel kinds for dispatch errors.
var (
	ErrDeliveryFailure = errors.New("insight delivery failed")
)
