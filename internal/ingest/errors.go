package ingest

import "errors"

// Sentinel kinds for ingest errors.
var (
	ErrMalformedEvent = errors.New("malformed event")
)
