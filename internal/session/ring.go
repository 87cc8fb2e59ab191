// Package session maintains bounded per-session state for the insight
// pipeline: one ring buffer of recent events per (player, session) key
// plus incrementally maintained aggregates over the buffered window.
package session

import "github.com/rumidev445/erysa/internal/domain/model"

// ring is a fixed-capacity FIFO buffer of telemetry events. Events carry
// monotonically increasing sequence numbers so the sliding-window metric
// aggregates can tell which samples fell out of the window.
type ring struct {
	events []model.TelemetryEvent
	head   int // index of the oldest event
	size   int
}

func newRing(capacity int) *ring {
	return &ring{events: make([]model.TelemetryEvent, capacity)}
}

func (r *ring) len() int { return r.size }

func (r *ring) full() bool { return r.size == len(r.events) }

// push appends an event. The caller evicts first when the ring is full.
func (r *ring) push(ev model.TelemetryEvent) {
	tail := (r.head + r.size) % len(r.events)
	r.events[tail] = ev
	r.size++
}

// pop removes and returns the oldest event.
func (r *ring) pop() model.TelemetryEvent {
	ev := r.events[r.head]
	r.events[r.head] = model.TelemetryEvent{}
	r.head = (r.head + 1) % len(r.events)
	r.size--
	return ev
}

// oldest returns the oldest buffered event without removing it.
func (r *ring) oldest() model.TelemetryEvent {
	return r.events[r.head]
}

// copyOut returns the buffered events oldest-first as a fresh slice.
func (r *ring) copyOut() []model.TelemetryEvent {
	out := make([]model.TelemetryEvent, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.events[(r.head+i)%len(r.events)]
	}
	return out
}

// metricSample ties a metric value to the sequence number of the event
// that carried it.
type metricSample struct {
	seq uint64
	val float64
}

// metricWindow keeps streaming aggregates for one payload metric across
// the buffered window. Count and sum update in O(1); min and max use
// monotonic deques so eviction never forces a recompute from scratch.
type metricWindow struct {
	count  int
	sum    float64
	minDeq []metricSample // values non-decreasing, front is the window min
	maxDeq []metricSample // values non-increasing, front is the window max
}

// push records a sample observed at seq.
func (w *metricWindow) push(seq uint64, val float64) {
	w.count++
	w.sum += val

	for n := len(w.minDeq); n > 0 && w.minDeq[n-1].val >= val; n-- {
		w.minDeq = w.minDeq[:n-1]
	}
	w.minDeq = append(w.minDeq, metricSample{seq: seq, val: val})

	for n := len(w.maxDeq); n > 0 && w.maxDeq[n-1].val <= val; n-- {
		w.maxDeq = w.maxDeq[:n-1]
	}
	w.maxDeq = append(w.maxDeq, metricSample{seq: seq, val: val})
}

// drop removes the sample that was recorded at seq with value val.
// Deque fronts only pop when they belong to the dropped sequence; later
// extrema keep the invariant intact.
func (w *metricWindow) drop(seq uint64, val float64) {
	w.count--
	w.sum -= val
	if len(w.minDeq) > 0 && w.minDeq[0].seq == seq {
		w.minDeq = w.minDeq[1:]
	}
	if len(w.maxDeq) > 0 && w.maxDeq[0].seq == seq {
		w.maxDeq = w.maxDeq[1:]
	}
}

// stats snapshots the window into an immutable value.
func (w *metricWindow) stats() model.MetricStats {
	s := model.MetricStats{Count: w.count, Sum: w.sum}
	if len(w.minDeq) > 0 {
		s.Min = w.minDeq[0].val
	}
	if len(w.maxDeq) > 0 {
		s.Max = w.maxDeq[0].val
	}
	return s
}
