// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	workerpool "github.com/rumidev445/erysa/internal/adapters/mq/worker"
	"github.com/rumidev445/erysa/internal/config"
	"github.com/rumidev445/erysa/internal/dispatch"
	"github.com/rumidev445/erysa/internal/domain/dedupe"
	"github.com/rumidev445/erysa/internal/domain/feature"
	"github.com/rumidev445/erysa/internal/domain/insight"
	"github.com/rumidev445/erysa/internal/domain/model"
	"github.com/rumidev445/erysa/internal/ingest"
	"github.com/rumidev445/erysa/internal/session"
	"github.com/rumidev445/erysa/pkg/logger"
	"github.com/rumidev445/erysa/pkg/metrics"
)

// Service implements the API dependencies for the insight pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	validator  *ingest.Validator
	deduper    dedupe.Deduper
	store      *session.Store
	aggregator *feature.Aggregator
	engine     *insight.Engine
	dispatcher *dispatch.Dispatcher
	pool       *workerpool.Pool

	// Configuration
	cfg        *config.Config
	subscriber dispatch.Subscriber

	// State
	started bool
	cancel  context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithSubscriber sets the downstream insight subscriber. Defaults to a
// log-only subscriber.
func WithSubscriber(sub dispatch.Subscriber) Option {
	return func(s *Service) {
		if sub != nil {
			s.subscriber = sub
		}
	}
}

// New constructs a new Service from cfg.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg:        cfg,
		subscriber: dispatch.NewLogSubscriber(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting insight service...")

	s.validator = ingest.NewValidator(
		ingest.WithAllowedEventTypes(s.cfg.AllowedEventTypes),
	)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.cfg.DedupeSize),
	)
	s.store = session.NewStore(
		session.WithCapacity(s.cfg.SessionCapacity),
		session.WithMaxEventAge(time.Duration(s.cfg.SessionMaxAgeS)*time.Second),
		session.WithIdleTimeout(time.Duration(s.cfg.SessionIdleTimeoutS)*time.Second),
	)
	s.aggregator = feature.NewAggregator(
		feature.WithMinEvents(s.cfg.FeatureMinEvents),
	)
	s.engine = insight.NewEngine(
		insight.WithValidity(time.Duration(s.cfg.InsightTTLS) * time.Second),
	)
	if err := s.engine.Register(ctx,
		insight.NewAimDegradationRule(s.cfg.AccuracyFloor),
		insight.NewReactionSlowdownRule(s.cfg.ReactionCeilingMS),
		insight.NewResourceWasteRule(s.cfg.EfficiencyFloor),
		insight.NewPaceSurgeRule(s.cfg.PaceSurgeAPM),
	); err != nil {
		return err
	}
	s.dispatcher = dispatch.NewDispatcher(
		s.subscriber,
		dispatch.WithCooldown(time.Duration(s.cfg.DispatchCooldownS)*time.Second),
		dispatch.WithMaxAttempts(s.cfg.DispatchMaxAttempts),
		dispatch.WithDeliveryTimeout(time.Duration(s.cfg.DispatchTimeoutMS)*time.Millisecond),
		dispatch.WithFailureHandler(dispatch.NewLogFailureHandler()),
	)

	workerCount := s.cfg.WorkerCount
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * 2
	}
	s.pool = workerpool.NewPool(workerCount, s.cfg.EventQueueSize, s.store, s.aggregator, s.engine, s.dispatcher)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.store.Start(runCtx)
	s.pool.Start(runCtx)

	metrics.UpdateQueueCapacity(workerCount * s.cfg.EventQueueSize)

	s.started = true
	s.logger.Info(ctx, "insight service started",
		logger.Int("workers", workerCount),
		logger.Int("queueSize", s.cfg.EventQueueSize),
		logger.Int("dedupeSize", s.cfg.DedupeSize),
		logger.Int("rules", len(s.engine.RuleIDs())),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping insight service...")

	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}
	if s.store != nil {
		s.store.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.started = false
	s.logger.Info(ctx, "insight service stopped")
}

// Normalize validates a raw telemetry record into a canonical event.
func (s *Service) Normalize(ctx context.Context, raw ingest.Raw) (model.TelemetryEvent, error) {
	return s.validator.Normalize(raw)
}

// SeenAndRecord atomically checks whether an event id was seen and
// records it if not. Returns true if the event was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes an event ID from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Enqueue submits an event for asynchronous processing. Returns false
// on backpressure.
func (s *Service) Enqueue(ctx context.Context, ev model.TelemetryEvent) bool {
	ok := s.pool.Dispatch(ctx, ev)
	if ok {
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(s.pool.Len(ctx))
	} else {
		metrics.RecordQueueEnqueueError()
		s.logger.Warn(ctx, "event rejected on backpressure",
			logger.String("eventID", ev.EventID),
			logger.String("playerID", ev.PlayerID),
		)
	}
	return ok
}

// Insights returns the current insight board entries for a player.
func (s *Service) Insights(ctx context.Context, playerID string) []model.Insight {
	return s.dispatcher.Insights(ctx, playerID)
}

// Features computes the current feature vector for a live session on
// demand, from the same buffered state the pipeline scores against.
func (s *Service) Features(ctx context.Context, playerID, sessionID string) (model.FeatureVector, error) {
	snap, err := s.store.Snapshot(ctx, model.SessionKey{PlayerID: playerID, SessionID: sessionID})
	if err != nil {
		return model.FeatureVector{}, err
	}
	return s.aggregator.Compute(ctx, snap)
}

// CloseSession terminally closes a session and drops its board entries.
func (s *Service) CloseSession(ctx context.Context, playerID, sessionID string) error {
	key := model.SessionKey{PlayerID: playerID, SessionID: sessionID}
	if err := s.store.CloseSession(ctx, key); err != nil {
		return err
	}
	s.dispatcher.DropSession(ctx, key)
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.cfg.WorkerCount,
		"queueSize":   s.cfg.EventQueueSize,
		"dedupeSize":  s.cfg.DedupeSize,
	}

	if s.started {
		queueLen := s.pool.Len(ctx)
		activeSessions := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["activeSessions"] = activeSessions
		stats["boardSize"] = s.dispatcher.BoardSize()
		stats["dedupeEntries"] = s.deduper.Size()
		stats["rules"] = s.engine.RuleIDs()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateSessionsActive(activeSessions)
		if capacity := s.cfg.WorkerCount * s.cfg.EventQueueSize; capacity > 0 {
			metrics.UpdateQueueUtilization(float64(queueLen) / float64(capacity))
		}
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
