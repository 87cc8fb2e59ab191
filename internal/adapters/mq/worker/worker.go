// Package worker runs the per-event insight pipeline: append, snapshot,
// aggregate, score, dispatch. Events are routed to workers by session
// key, so one session's events are always processed in order by a single
// goroutine while unrelated sessions run in parallel.
package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime"
	"strconv"
	"time"

	"github.com/rumidev445/erysa/internal/adapters/mq/queue"
	"github.com/rumidev445/erysa/internal/domain/feature"
	"github.com/rumidev445/erysa/internal/domain/model"
	"github.com/rumidev445/erysa/internal/session"
	"github.com/rumidev445/erysa/pkg/logger"
	"github.com/rumidev445/erysa/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Store is the slice of the session state store the pipeline needs.
type Store interface {
	Append(ctx context.Context, ev model.TelemetryEvent) error
	Snapshot(ctx context.Context, key model.SessionKey) (model.SessionSnapshot, error)
}

// Aggregator derives a feature vector from a session snapshot.
type Aggregator interface {
	Compute(ctx context.Context, snap model.SessionSnapshot) (model.FeatureVector, error)
}

// Scorer produces ranked insights for a feature vector.
type Scorer interface {
	Score(ctx context.Context, vec model.FeatureVector) []model.Insight
}

// Publisher delivers insights downstream.
type Publisher interface {
	Publish(ctx context.Context, in model.Insight) error
}

// Worker drains one queue and runs the pipeline pass per event.
type Worker struct {
	queue      queue.Queue
	store      Store
	aggregator Aggregator
	scorer     Scorer
	publisher  Publisher
	name       string

	shutdown chan struct{}
	done     chan struct{}

	log logger.Logger
}

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker name for logging.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
			w.log = logger.Get().Named(name)
		}
	}
}

// NewWorker creates a worker draining q.
func NewWorker(q queue.Queue, store Store, agg Aggregator, scorer Scorer, pub Publisher, opts ...Option) *Worker {
	w := &Worker{
		queue:      q,
		store:      store,
		aggregator: agg,
		scorer:     scorer,
		publisher:  pub,
		name:       "worker",
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		log:        logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop until ctx is canceled or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := w.processEvent(ctx, ev); err != nil {
				w.log.Warn(ctx, "event dropped from pipeline", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker, waiting for the in-flight event to finish.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.log.Warn(ctx, "worker shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processEvent runs one full pipeline pass. Failures affect only this
// event; other events, sessions and rules are untouched.
func (w *Worker) processEvent(ctx context.Context, ev queue.Event) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.store.Append(ctx, ev); err != nil {
		switch {
		case errors.Is(err, session.ErrOutOfOrder):
			metrics.RecordEventRejected("out_of_order")
		case errors.Is(err, session.ErrSessionClosed):
			metrics.RecordEventRejected("session_closed")
		default:
			metrics.RecordWorkerError()
		}
		return fmt.Errorf("append event %s: %w", ev.EventID, err)
	}

	snap, err := w.store.Snapshot(ctx, ev.Key())
	if err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("snapshot for event %s: %w", ev.EventID, err)
	}

	vec, err := w.aggregator.Compute(ctx, snap)
	if err != nil {
		if errors.Is(err, feature.ErrInsufficientData) {
			// Not enough buffered play yet; nothing to score this pass.
			return nil
		}
		metrics.RecordWorkerError()
		return fmt.Errorf("aggregate for event %s: %w", ev.EventID, err)
	}

	for _, in := range w.scorer.Score(ctx, vec) {
		if err := w.publisher.Publish(ctx, in); err != nil {
			// Already surfaced through the dispatcher's failure path;
			// keep publishing the remaining insights.
			w.log.Warn(ctx, "publish failed",
				logger.String("category", in.Category),
				logger.Error(err),
			)
		}
	}

	return nil
}

// Pool fans events out to session-affine workers.
type Pool struct {
	workers []*Worker
	queues  []*queue.InMemoryQueue

	log logger.Logger
}

// NewPool creates workerCount workers, each with its own bounded queue
// of queueSize events.
func NewPool(workerCount, queueSize int, store Store, agg Aggregator, scorer Scorer, pub Publisher) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers: make([]*Worker, workerCount),
		queues:  make([]*queue.InMemoryQueue, workerCount),
		log:     logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.queues[i] = queue.NewInMemoryQueue(queue.WithCapacity(queueSize))
		p.workers[i] = NewWorker(
			p.queues[i],
			store, agg, scorer, pub,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Dispatch routes ev to the worker owning its session. Returns false on
// backpressure.
func (p *Pool) Dispatch(ctx context.Context, ev model.TelemetryEvent) bool {
	return p.queues[p.indexFor(ev.Key())].Enqueue(ctx, ev)
}

// indexFor hashes the session key onto a worker so per-session order is
// preserved.
func (p *Pool) indexFor(key model.SessionKey) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.PlayerID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.SessionID))
	return int(h.Sum32()) % len(p.queues)
}

// Len returns the total number of queued events across workers.
func (p *Pool) Len(ctx context.Context) int {
	total := 0
	for _, q := range p.queues {
		total += q.Len(ctx)
	}
	return total
}

// Shutdown closes the queues and drains the workers with a timeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	for _, q := range p.queues {
		if err := q.Close(); err != nil {
			p.log.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.log.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
