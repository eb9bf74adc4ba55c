// SPDX-License-Identifier: MIT

package tracking

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sarafrika/camp-ussd/internal/metrics"
)

// WriterConfig tunes the drain cycle and the self-disable policy.
type WriterConfig struct {
	Interval         time.Duration
	BatchSize        int
	FailureThreshold int
	Retention        RetentionPolicy
}

// Writer drains the tracker on a timer and persists events one by one, so a
// poisoned event cannot block the rest of a batch. Sustained persistence
// failure trips the breaker and disables the tracker.
type Writer struct {
	tracker  *Tracker
	store    EventStore
	conf     WriterConfig
	logger   zerolog.Logger
	failures int
}

// NewWriter wires a writer to its queue and store. Zero config fields fall
// back to production defaults.
func NewWriter(tracker *Tracker, store EventStore, conf WriterConfig, logger zerolog.Logger) *Writer {
	if conf.Interval <= 0 {
		conf.Interval = 2 * time.Second
	}
	if conf.BatchSize <= 0 {
		conf.BatchSize = 50
	}
	if conf.FailureThreshold <= 0 {
		conf.FailureThreshold = 50
	}
	if conf.Retention == (RetentionPolicy{}) {
		conf.Retention = DefaultRetention()
	}
	return &Writer{tracker: tracker, store: store, conf: conf, logger: logger}
}

// Run drains the queue on a ticker until the context is cancelled. A final
// flush runs on shutdown so queued events are not lost on a clean exit.
func (w *Writer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.conf.Interval)
	defer ticker.Stop()

	w.logger.Info().
		Dur("interval", w.conf.Interval).
		Int("batch_size", w.conf.BatchSize).
		Msg("tracking writer started")

	for {
		select {
		case <-ctx.Done():
			w.FlushOnce(context.Background())
			w.logger.Info().Msg("tracking writer stopped")
			return
		case <-ticker.C:
			w.FlushOnce(ctx)
		}
	}
}

// FlushOnce performs exactly one drain-and-persist pass. Deterministic and
// suitable for unit testing.
func (w *Writer) FlushOnce(ctx context.Context) {
	batch := w.tracker.Drain(w.conf.BatchSize)
	for _, ev := range batch {
		if err := w.store.Persist(ctx, ev); err != nil {
			w.failures++
			metrics.TrackingPersist("failed")
			w.logger.Warn().Err(err).
				Int("consecutive_failures", w.failures).
				Msg("tracking persist failed")
			if w.failures >= w.conf.FailureThreshold && w.tracker.IsEnabled() {
				w.tracker.Disable()
			}
			continue
		}
		w.failures = 0
		metrics.TrackingPersist("ok")
	}
}

// RunRetention deletes expired telemetry rows on a long ticker. Housekeeping
// only; errors are logged and the loop keeps going.
func (w *Writer) RunRetention(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.PurgeOnce(ctx)
		}
	}
}

// PurgeOnce runs one retention pass.
func (w *Writer) PurgeOnce(ctx context.Context) {
	n, err := w.store.Purge(ctx, w.conf.Retention)
	if err != nil {
		w.logger.Warn().Err(err).Msg("tracking retention purge failed")
		return
	}
	if n > 0 {
		w.logger.Info().Int64("rows", n).Msg("tracking retention purge removed rows")
	}
}
