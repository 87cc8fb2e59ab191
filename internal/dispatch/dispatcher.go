// Package dispatch delivers insights to subscribers with per-category
// cool-down, bounded retry, and supersession of stale insights.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rumidev445/erysa/internal/domain/model"
	"github.com/rumidev445/erysa/pkg/logger"
	"github.com/rumidev445/erysa/pkg/metrics"
)

// Default dispatcher configuration constants.
const (
	defaultCooldown    = time.Minute
	defaultMaxAttempts = 3
	defaultTimeout     = 2 * time.Second
	defaultBaseBackoff = 100 * time.Millisecond

	// limiterPruneThreshold caps the cool-down limiter map before stale
	// entries are swept.
	limiterPruneThreshold = 16384
)

// Subscriber receives delivered insights. Transport is external; the
// dispatcher only guarantees at-least-once delivery within its retry
// budget.
type Subscriber interface {
	Deliver(ctx context.Context, in model.Insight) error
}

// FailureHandler receives insights that exhausted their retry budget.
type FailureHandler interface {
	Undelivered(ctx context.Context, in model.Insight, err error)
}

// cooldownEntry pairs a limiter with its last use for pruning.
type cooldownEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

type boardKey struct {
	playerID string
	category string
}

// Dispatcher publishes insights: it maintains the per-player insight
// board, suppresses repeat deliveries inside the cool-down window, and
// retries transient subscriber failures with exponential backoff.
type Dispatcher struct {
	sub      Subscriber
	failures FailureHandler

	cooldown    time.Duration
	maxAttempts int
	timeout     time.Duration
	baseBackoff time.Duration

	mu        sync.Mutex
	cooldowns map[boardKey]*cooldownEntry
	board     map[boardKey]model.Insight

	log logger.Logger
}

// NewDispatcher creates a dispatcher delivering to sub.
func NewDispatcher(sub Subscriber, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sub:         sub,
		cooldown:    defaultCooldown,
		maxAttempts: defaultMaxAttempts,
		timeout:     defaultTimeout,
		baseBackoff: defaultBaseBackoff,
		cooldowns:   make(map[boardKey]*cooldownEntry),
		board:       make(map[boardKey]model.Insight),
		log:         logger.Get().Named("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish records in on the insight board (newer insights supersede the
// category's previous one) and delivers it to the subscriber unless the
// (player, category) cool-down suppresses it. Delivery failures that
// exhaust the retry budget go to the FailureHandler and return
// ErrDeliveryFailure.
func (d *Dispatcher) Publish(ctx context.Context, in model.Insight) error {
	key := boardKey{playerID: in.PlayerID, category: in.Category}

	d.mu.Lock()
	d.board[key] = in

	entry, ok := d.cooldowns[key]
	if !ok {
		entry = &cooldownEntry{limiter: rate.NewLimiter(rate.Every(d.cooldown), 1)}
		d.cooldowns[key] = entry
		if len(d.cooldowns) > limiterPruneThreshold {
			d.pruneLocked(time.Now())
		}
	}
	entry.lastUsed = time.Now()
	allowed := entry.limiter.Allow()
	d.mu.Unlock()

	if !allowed {
		metrics.RecordInsightSuppressed()
		d.log.Debug(ctx, "delivery suppressed by cool-down",
			logger.String("playerID", in.PlayerID),
			logger.String("category", in.Category),
		)
		return nil
	}

	return d.deliver(ctx, in)
}

// deliver attempts delivery with bounded exponential backoff.
func (d *Dispatcher) deliver(ctx context.Context, in model.Insight) error {
	start := time.Now()
	var lastErr error

	backoff := d.baseBackoff
retry:
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.sub.Deliver(attemptCtx, in)
		cancel()
		if err == nil {
			metrics.RecordInsightDelivered()
			metrics.RecordDeliveryLatency(float64(time.Since(start).Milliseconds()))
			return nil
		}
		lastErr = err
		d.log.Warn(ctx, "insight delivery attempt failed",
			logger.String("playerID", in.PlayerID),
			logger.String("category", in.Category),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)

		if attempt == d.maxAttempts {
			break
		}
		metrics.RecordDeliveryRetry()
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			break retry
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	metrics.RecordDeliveryFailure()
	if d.failures != nil {
		d.failures.Undelivered(ctx, in, lastErr)
	}
	return fmt.Errorf("%w: %s/%s after %d attempts: %v",
		ErrDeliveryFailure, in.PlayerID, in.Category, d.maxAttempts, lastErr)
}

// Insights returns the player's current board, expired insights pruned,
// ordered by confidence descending.
func (d *Dispatcher) Insights(ctx context.Context, playerID string) []model.Insight {
	now := time.Now()

	d.mu.Lock()
	out := make([]model.Insight, 0, 4)
	for key, in := range d.board {
		if key.playerID != playerID {
			continue
		}
		if in.Expired(now) {
			delete(d.board, key)
			continue
		}
		out = append(out, in)
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// DropSession removes board entries derived from a closed session so an
// insight never outlives the session it came from.
func (d *Dispatcher) DropSession(ctx context.Context, key model.SessionKey) {
	d.mu.Lock()
	for bk, in := range d.board {
		if in.PlayerID == key.PlayerID && in.SessionID == key.SessionID {
			delete(d.board, bk)
		}
	}
	d.mu.Unlock()
}

// BoardSize returns the number of live board entries.
func (d *Dispatcher) BoardSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.board)
}

// pruneLocked drops limiters idle for two cool-down windows. Caller
// holds d.mu.
func (d *Dispatcher) pruneLocked(now time.Time) {
	cutoff := now.Add(-2 * d.cooldown)
	for key, entry := range d.cooldowns {
		if entry.lastUsed.Before(cutoff) {
			delete(d.cooldowns, key)
		}
	}
}
