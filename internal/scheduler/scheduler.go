package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Runner is one unit of periodic work, such as draining the build queue or
// a full property sync.
type Runner interface {
	Run(ctx context.Context) error
}

type Scheduler struct {
	name       string
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

// NewScheduler runs runner immediately and then every interval. Each run is
// bounded by runTimeout; zero means the run inherits ctx unbounded.
func NewScheduler(name string, runner Runner, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		name:       name,
		runner:     runner,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger.With("job", name),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "run_timeout", s.runTimeout)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.runner.Run(runCtx); err != nil {
		s.logger.Error("scheduled run failed", "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Debug("scheduled run finished", "duration", time.Since(start))
}
