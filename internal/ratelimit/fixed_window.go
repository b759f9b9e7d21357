// Package ratelimit provides the two admission gates used against the
// upstream catalog APIs: a fixed-window counter and a minimum-delay spacer.
// Both are shared by all workers of one source and block until admission.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"game-catalog-pipeline/internal/observability"
)

// saturationThresholds are logged once per window when first crossed.
var saturationThresholds = []float64{0.25, 0.50, 0.75, 0.95}

// FixedWindow admits at most limit calls per window. The counter resets at
// the window boundary; saturated callers sleep until the boundary and
// re-contend. Take fails only when the caller's context is cancelled.
type FixedWindow struct {
	name   string
	limit  int
	window time.Duration

	clock clockwork.Clock
	log   zerolog.Logger

	mu          sync.Mutex
	windowStart time.Time
	count       int
	notified    int // index into saturationThresholds, per window
}

// Option configures a FixedWindow.
type Option func(*FixedWindow)

// WithClock replaces the wall clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(w *FixedWindow) {
		w.clock = clock
	}
}

// WithLogger replaces the package logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *FixedWindow) {
		w.log = logger
	}
}

// NewFixedWindow creates a fixed-window limiter admitting limit calls per
// window. limit must be positive and window non-zero.
func NewFixedWindow(name string, limit int, window time.Duration, opts ...Option) *FixedWindow {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	w := &FixedWindow{
		name:   name,
		limit:  limit,
		window: window,
		clock:  clockwork.NewRealClock(),
		log:    log.Logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Take blocks until the caller is admitted or ctx is done. The window rolls
// lazily: the first admission after a boundary starts the next window.
func (w *FixedWindow) Take(ctx context.Context) error {
	start := w.clock.Now()
	for {
		w.mu.Lock()
		now := w.clock.Now()
		if w.windowStart.IsZero() || !now.Before(w.windowStart.Add(w.window)) {
			w.windowStart = now
			w.count = 0
			w.notified = 0
		}
		if w.count < w.limit {
			w.count++
			w.checkSaturationLocked()
			w.mu.Unlock()
			observability.ObserveLimiterWait(w.name, w.clock.Since(start).Seconds())
			return nil
		}
		boundary := w.windowStart.Add(w.window)
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter %s: %w", w.name, ctx.Err())
		case <-w.clock.After(boundary.Sub(now)):
		}
	}
}

// checkSaturationLocked logs each saturation threshold the first time the
// current window crosses it. Caller holds w.mu.
func (w *FixedWindow) checkSaturationLocked() {
	occupancy := float64(w.count) / float64(w.limit)
	for w.notified < len(saturationThresholds) {
		threshold := saturationThresholds[w.notified]
		if occupancy < threshold {
			return
		}
		w.notified++

		pct := fmt.Sprintf("%.0f%%", threshold*100)
		evt := w.log.Info()
		if threshold >= 0.95 {
			evt = w.log.Warn()
		}
		evt.Str("limiter", w.name).
			Str("threshold", pct).
			Int("count", w.count).
			Int("limit", w.limit).
			Msg("rate limit window saturation")
		observability.RecordLimiterSaturation(w.name, pct)
	}
}

// Remaining reports how many admissions are left in the current window.
func (w *FixedWindow) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.clock.Now()
	if w.windowStart.IsZero() || !now.Before(w.windowStart.Add(w.window)) {
		return w.limit
	}
	return w.limit - w.count
}
