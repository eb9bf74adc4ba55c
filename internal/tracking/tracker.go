// SPDX-License-Identifier: MIT

package tracking

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sarafrika/camp-ussd/internal/metrics"
)

// maxQueueDepth bounds memory when the writer falls behind or is disabled
// mid-flight. Producers drop beyond this point instead of backpressuring the
// request path.
const maxQueueDepth = 10000

// Tracker is the multi-producer event queue with its enable gate. Enqueue
// operations never block and never surface errors to the caller.
type Tracker struct {
	mu      sync.Mutex
	queue   []Event
	enabled atomic.Bool
	dropped atomic.Int64
	logger  zerolog.Logger
}

// NewTracker creates an enabled tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	t := &Tracker{logger: logger}
	t.enabled.Store(true)
	return t
}

// Interaction enqueues an interaction event.
func (t *Tracker) Interaction(ev Interaction) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	t.enqueue(ev)
}

// Session enqueues a session lifecycle event.
func (t *Tracker) Session(ev SessionEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	t.enqueue(ev)
}

// Navigation enqueues a menu transition event.
func (t *Tracker) Navigation(ev Navigation) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	t.enqueue(ev)
}

// Performance enqueues a performance metric event.
func (t *Tracker) Performance(ev Metric) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	t.enqueue(ev)
}

func (t *Tracker) enqueue(ev Event) {
	if t == nil || !t.enabled.Load() {
		return
	}

	t.mu.Lock()
	if len(t.queue) >= maxQueueDepth {
		t.mu.Unlock()
		t.dropped.Add(1)
		metrics.TrackingDropped()
		return
	}
	t.queue = append(t.queue, ev)
	depth := len(t.queue)
	t.mu.Unlock()

	metrics.TrackingQueueDepth(depth)
}

// Drain removes and returns up to max queued events, oldest first.
func (t *Tracker) Drain(max int) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := min(max, len(t.queue))
	if n == 0 {
		return nil
	}
	batch := make([]Event, n)
	copy(batch, t.queue[:n])
	t.queue = t.queue[n:]
	metrics.TrackingQueueDepth(len(t.queue))
	return batch
}

// QueueSize reports the number of pending events.
func (t *Tracker) QueueSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Dropped reports how many events were discarded due to queue overflow.
func (t *Tracker) Dropped() int64 {
	return t.dropped.Load()
}

// Disable turns tracking off. Producers keep calling in; their events are
// silently dropped.
func (t *Tracker) Disable() {
	t.enabled.Store(false)
	t.logger.Warn().Msg("tracking disabled due to persistent errors")
}

// Enable turns tracking back on.
func (t *Tracker) Enable() {
	t.enabled.Store(true)
	t.logger.Info().Msg("tracking enabled")
}

// IsEnabled reports whether producers currently enqueue events.
func (t *Tracker) IsEnabled() bool {
	return t.enabled.Load()
}
