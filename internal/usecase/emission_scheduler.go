package usecase

import (
	"context"
	"time"

	"TradePulse/pkg/logger"
)

// Ticker receives emission ticks.
type Ticker interface {
	Tick(now time.Time)
}

type SchedulerOption func(*EmissionScheduler)

// WithSchedulerClock replaces time.Now for the tick timestamps.
func WithSchedulerClock(clock func() time.Time) SchedulerOption {
	return func(s *EmissionScheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTickSource replaces the wall-clock ticker channel, mostly for tests.
func WithTickSource(ch <-chan time.Time) SchedulerOption {
	return func(s *EmissionScheduler) { s.source = ch }
}

// EmissionScheduler drives emission at a fixed cadence independent of the
// input rate.
type EmissionScheduler struct {
	interval time.Duration
	target   Ticker
	clock    func() time.Time
	source   <-chan time.Time
	log      *logger.Logger
}

func NewEmissionScheduler(interval time.Duration, target Ticker, log *logger.Logger, opts ...SchedulerOption) *EmissionScheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	s := &EmissionScheduler{
		interval: interval,
		target:   target,
		clock:    time.Now,
		log:      log.With(logger.String("component", "scheduler")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until ctx is done.
func (s *EmissionScheduler) Run(ctx context.Context) error {
	source := s.source
	if source == nil {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		source = t.C
	}

	s.log.Info("emission scheduler started", logger.Duration("interval_ms", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("emission scheduler stopped")
			return nil
		case _, ok := <-source:
			if !ok {
				return nil
			}
			s.target.Tick(s.clock())
		}
	}
}
