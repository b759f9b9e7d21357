package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"game-catalog-pipeline/internal/observability"
)

// Spacer enforces a minimum delay of roughly D between admissions, jittered
// by up to D/4 in each direction: the token bucket guarantees a floor of
// 3D/4, and a random extra sleep of [0, D/2] centers the spacing on D.
type Spacer struct {
	name      string
	limiter   *rate.Limiter
	maxJitter time.Duration
	clock     clockwork.Clock
}

// SpacerOption configures a Spacer.
type SpacerOption func(*Spacer)

// WithSpacerClock replaces the clock used for the jitter sleep, for tests.
// The token bucket itself runs on wall time.
func WithSpacerClock(clock clockwork.Clock) SpacerOption {
	return func(s *Spacer) {
		s.clock = clock
	}
}

// NewSpacer creates a minimum-delay spacer with target spacing delay.
func NewSpacer(name string, delay time.Duration, opts ...SpacerOption) *Spacer {
	if delay <= 0 {
		delay = time.Millisecond
	}
	floor := delay - delay/4
	s := &Spacer{
		name:      name,
		limiter:   rate.NewLimiter(rate.Every(floor), 1),
		maxJitter: delay / 2,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Take blocks until the spacing floor has elapsed plus a random jitter, or
// until ctx is done.
func (s *Spacer) Take(ctx context.Context) error {
	start := s.clock.Now()
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("spacer %s: %w", s.name, err)
	}
	if s.maxJitter > 0 {
		jitter := time.Duration(rand.Int64N(int64(s.maxJitter) + 1))
		select {
		case <-ctx.Done():
			return fmt.Errorf("spacer %s: %w", s.name, ctx.Err())
		case <-s.clock.After(jitter):
		}
	}
	observability.ObserveLimiterWait(s.name, s.clock.Since(start).Seconds())
	return nil
}
