package dispatch

import (
	"time"

	"github.com/rumidev445/erysa/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithCooldown sets the per (player, category) delivery cool-down.
func WithCooldown(cooldown time.Duration) Option {
	return func(d *Dispatcher) {
		if cooldown > 0 {
			d.cooldown = cooldown
		}
	}
}

// WithMaxAttempts bounds delivery retries per insight.
func WithMaxAttempts(attempts int) Option {
	return func(d *Dispatcher) {
		if attempts > 0 {
			d.maxAttempts = attempts
		}
	}
}

// WithDeliveryTimeout bounds a single delivery attempt.
func WithDeliveryTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithBaseBackoff sets the initial retry backoff; it doubles per attempt.
func WithBaseBackoff(backoff time.Duration) Option {
	return func(d *Dispatcher) {
		if backoff > 0 {
			d.baseBackoff = backoff
		}
	}
}

// WithFailureHandler routes undeliverable insights to an external
// error-reporting collaborator.
func WithFailureHandler(h FailureHandler) Option {
	return func(d *Dispatcher) {
		if h != nil {
			d.failures = h
		}
	}
}

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(log logger.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}
