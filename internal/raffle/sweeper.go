package raffle

import (
	"context"
	"log/slog"
	"time"
)

// SweepRunner performs one reconciliation pass.
type SweepRunner interface {
	Sweep(ctx context.Context) (SweepReport, error)
}

// Sweeper drives periodic reconciliation on a ticker.
type Sweeper struct {
	runner       SweepRunner
	stale        *StaleReporter
	interval     time.Duration
	initialDelay time.Duration
	log          *slog.Logger
}

// NewSweeper constructs a Sweeper. stale may be nil.
func NewSweeper(runner SweepRunner, stale *StaleReporter, interval, initialDelay time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		runner:       runner,
		stale:        stale,
		interval:     interval,
		initialDelay: initialDelay,
		log:          log.With(slog.String("component", "sweeper")),
	}
}

// Run waits for the initial delay, then sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("sweeper started",
		slog.Duration("interval", s.interval),
		slog.Duration("initial_delay", s.initialDelay),
	)

	if s.initialDelay > 0 {
		timer := time.NewTimer(s.initialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("sweeper stopped", slog.Any("reason", ctx.Err()))
			return
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped", slog.Any("reason", ctx.Err()))
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single sweep followed by the stale payment report.
func (s *Sweeper) RunOnce(ctx context.Context) SweepReport {
	report, err := s.runner.Sweep(ctx)
	if err != nil && ctx.Err() == nil {
		s.log.Error("sweep failed", slog.Any("error", err))
	}

	if s.stale != nil && ctx.Err() == nil {
		if _, err := s.stale.Report(ctx); err != nil {
			s.log.Warn("stale payment report failed", slog.Any("error", err))
		}
	}

	return report
}
