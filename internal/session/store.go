package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rumidev445/erysa/internal/domain/model"
	"github.com/rumidev445/erysa/pkg/logger"
	"github.com/rumidev445/erysa/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultShardCount      = 16
	defaultCapacity        = 500
	defaultMaxEventAge     = 15 * time.Minute
	defaultIdleTimeout     = 5 * time.Minute
	defaultJanitorInterval = 30 * time.Second

	// closedRetention keeps closed sessions as tombstones so late appends
	// observe the terminal state instead of resurrecting the session.
	closedRetention = 2
)

// state holds everything owned by one session. Mutation happens only
// under mu, which also serializes Close against in-flight pipeline work.
type state struct {
	mu sync.Mutex

	key     model.SessionKey
	buf     *ring
	windows map[string]*metricWindow
	types   map[string]int
	nextSeq uint64

	firstTS      time.Time
	lastTS       time.Time
	lastActivity time.Time
	closed       bool
	idleStrikes  int
}

// shard is one lock-scoped slice of the session arena.
type shard struct {
	mu       sync.RWMutex
	sessions map[model.SessionKey]*state
}

// Store is the session state store: a sharded arena of independently
// locked sessions. Unrelated sessions never contend on one lock.
type Store struct {
	shards      []*shard
	shardCount  int
	capacity    int
	maxEventAge time.Duration
	idleTimeout time.Duration

	janitorInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once

	log logger.Logger
}

// NewStore creates a session store with configuration options.
func NewStore(opts ...Option) *Store {
	s := &Store{
		shardCount:      defaultShardCount,
		capacity:        defaultCapacity,
		maxEventAge:     defaultMaxEventAge,
		idleTimeout:     defaultIdleTimeout,
		janitorInterval: defaultJanitorInterval,
		stopCh:          make(chan struct{}),
		log:             logger.Get().Named("session"),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[model.SessionKey]*state)}
	}
	return s
}

// Start launches the idle janitor loop. It returns once the loop is
// scheduled; Stop or ctx cancellation terminates it.
func (s *Store) Start(ctx context.Context) {
	go s.janitor(ctx)
}

// Stop terminates the janitor loop.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Store) shardFor(key model.SessionKey) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.PlayerID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.SessionID))
	return s.shards[int(h.Sum32())%len(s.shards)]
}

// Append adds an accepted event to its session, creating the session on
// first contact. It enforces per-session timestamp order (ErrOutOfOrder)
// and the terminal closed state (ErrSessionClosed).
func (s *Store) Append(ctx context.Context, ev model.TelemetryEvent) error {
	key := ev.Key()
	sh := s.shardFor(key)

	sh.mu.RLock()
	st, ok := sh.sessions[key]
	sh.mu.RUnlock()

	if !ok {
		sh.mu.Lock()
		st, ok = sh.sessions[key]
		if !ok {
			st = &state{
				key:     key,
				buf:     newRing(s.capacity),
				windows: make(map[string]*metricWindow),
				types:   make(map[string]int),
			}
			sh.sessions[key] = st
			metrics.RecordSessionCreated()
		}
		sh.mu.Unlock()
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		return fmt.Errorf("%w: %s/%s", ErrSessionClosed, key.PlayerID, key.SessionID)
	}
	if st.buf.len() > 0 && ev.TS.Before(st.lastTS) {
		metrics.RecordAppendOutOfOrder()
		return fmt.Errorf("%w: ts %s precedes last accepted %s",
			ErrOutOfOrder, ev.TS.Format(time.RFC3339Nano), st.lastTS.Format(time.RFC3339Nano))
	}

	// Age bound first, then capacity; whichever applies evicts oldest-first.
	if s.maxEventAge > 0 {
		cutoff := ev.TS.Add(-s.maxEventAge)
		for st.buf.len() > 0 && st.buf.oldest().TS.Before(cutoff) {
			st.evictOldest()
		}
	}
	if st.buf.full() {
		st.evictOldest()
	}

	seq := st.nextSeq
	st.nextSeq++
	st.buf.push(ev)
	st.types[ev.EventType]++
	for name, val := range ev.Metrics {
		w, ok := st.windows[name]
		if !ok {
			w = &metricWindow{}
			st.windows[name] = w
		}
		w.push(seq, val)
	}

	if st.buf.len() == 1 || st.firstTS.IsZero() {
		st.firstTS = st.buf.oldest().TS
	}
	st.lastTS = ev.TS
	st.lastActivity = time.Now()
	st.idleStrikes = 0

	return nil
}

// evictOldest drops the oldest buffered event and unwinds its
// contribution to the streaming aggregates. Caller holds st.mu.
func (st *state) evictOldest() {
	oldestSeq := st.nextSeq - uint64(st.buf.len())
	ev := st.buf.pop()
	st.types[ev.EventType]--
	if st.types[ev.EventType] == 0 {
		delete(st.types, ev.EventType)
	}
	for name, val := range ev.Metrics {
		if w, ok := st.windows[name]; ok {
			w.drop(oldestSeq, val)
			if w.count == 0 {
				delete(st.windows, name)
			}
		}
	}
	if st.buf.len() > 0 {
		st.firstTS = st.buf.oldest().TS
	}
	metrics.RecordBufferEviction()
}

// Snapshot returns an isolated, internally consistent copy of one
// session's state. Returns ErrSessionNotFound for unknown keys and
// ErrSessionClosed for closed ones.
func (s *Store) Snapshot(ctx context.Context, key model.SessionKey) (model.SessionSnapshot, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	st, ok := sh.sessions[key]
	sh.mu.RUnlock()
	if !ok {
		return model.SessionSnapshot{}, fmt.Errorf("%w: %s/%s", ErrSessionNotFound, key.PlayerID, key.SessionID)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return model.SessionSnapshot{}, fmt.Errorf("%w: %s/%s", ErrSessionClosed, key.PlayerID, key.SessionID)
	}
	return st.snapshotLocked(), nil
}

// snapshotLocked deep-copies the session state. Caller holds st.mu.
func (st *state) snapshotLocked() model.SessionSnapshot {
	snap := model.SessionSnapshot{
		Key:        st.key,
		Events:     st.buf.copyOut(),
		Stats:      make(map[string]model.MetricStats, len(st.windows)),
		EventTypes: make(map[string]int, len(st.types)),
		FirstTS:    st.firstTS,
		LastTS:     st.lastTS,
		TakenAt:    time.Now(),
	}
	for name, w := range st.windows {
		snap.Stats[name] = w.stats()
	}
	for t, n := range st.types {
		snap.EventTypes[t] = n
	}
	return snap
}

// CloseSession transitions a session to its terminal Closed state, e.g.
// on an explicit end-of-game signal. Taking the session mutex drains any
// in-flight pipeline pass for the session before state is torn down.
func (s *Store) CloseSession(ctx context.Context, key model.SessionKey) error {
	sh := s.shardFor(key)
	sh.mu.RLock()
	st, ok := sh.sessions[key]
	sh.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrSessionNotFound, key.PlayerID, key.SessionID)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return fmt.Errorf("%w: %s/%s", ErrSessionClosed, key.PlayerID, key.SessionID)
	}
	st.closed = true
	st.buf = newRing(1)
	st.windows = make(map[string]*metricWindow)
	st.types = make(map[string]int)
	metrics.RecordSessionEvicted()
	return nil
}

// Count returns the number of open sessions.
func (s *Store) Count(ctx context.Context) int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, st := range sh.sessions {
			st.mu.Lock()
			if !st.closed {
				total++
			}
			st.mu.Unlock()
		}
		sh.mu.RUnlock()
	}
	return total
}

// janitor closes idle sessions and, on later passes, removes closed
// tombstones so the arena does not grow without bound.
func (s *Store) janitor(ctx context.Context) {
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Store) sweep(ctx context.Context) {
	now := time.Now()
	for _, sh := range s.shards {
		var remove []model.SessionKey

		sh.mu.RLock()
		for key, st := range sh.sessions {
			st.mu.Lock()
			switch {
			case st.closed:
				st.idleStrikes++
				if st.idleStrikes >= closedRetention {
					remove = append(remove, key)
				}
			case now.Sub(st.lastActivity) >= s.idleTimeout:
				st.closed = true
				st.buf = newRing(1)
				st.windows = make(map[string]*metricWindow)
				st.types = make(map[string]int)
				metrics.RecordSessionEvicted()
				s.log.Debug(ctx, "session closed by idle janitor",
					logger.String("playerID", key.PlayerID),
					logger.String("sessionID", key.SessionID),
				)
			}
			st.mu.Unlock()
		}
		sh.mu.RUnlock()

		if len(remove) > 0 {
			sh.mu.Lock()
			for _, key := range remove {
				delete(sh.sessions, key)
			}
			sh.mu.Unlock()
		}
	}
	metrics.UpdateSessionsActive(s.Count(ctx))
}
