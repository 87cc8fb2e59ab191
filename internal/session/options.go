package session

import "time"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithCapacity bounds each session's ring buffer.
func WithCapacity(capacity int) Option {
	return func(s *Store) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

// WithMaxEventAge bounds the age of buffered events. Zero disables the
// age bound, leaving capacity as the only limit.
func WithMaxEventAge(age time.Duration) Option {
	return func(s *Store) {
		if age >= 0 {
			s.maxEventAge = age
		}
	}
}

// WithIdleTimeout closes sessions with no appends for the given duration.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.idleTimeout = timeout
		}
	}
}

// WithJanitorInterval sets how often the idle sweep runs.
func WithJanitorInterval(interval time.Duration) Option {
	return func(s *Store) {
		if interval > 0 {
			s.janitorInterval = interval
		}
	}
}

// WithShardCount sets the number of arena shards.
func WithShardCount(count int) Option {
	return func(s *Store) {
		if count > 0 {
			s.shardCount = count
		}
	}
}
