package config

import "errors"

// Sentinel kinds for configuration errors.
var (
	ErrEmptyAddr          = errors.New("addr must not be empty")
	ErrInvalidCapacity    = errors.New("session_capacity must be at least 1")
	ErrInvalidWorkerCount = errors.New("worker_count must be at least 1")
	ErrInvalidAttempts    = errors.New("dispatch_max_attempts must be at least 1")
	ErrNoEventTypes       = errors.New("allowed_event_types must not be empty")
)
