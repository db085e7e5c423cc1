package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

type SchedulerTestSuite struct {
	suite.Suite
	logger *slog.Logger
}

func (s *SchedulerTestSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (s *SchedulerTestSuite) TestStart_RunsImmediatelyAndOnTicks() {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := runnerFunc(func(context.Context) error {
		if runs.Add(1) == 3 {
			cancel()
		}
		return nil
	})

	err := NewScheduler("builder", runner, 10*time.Millisecond, 0, s.logger).Start(ctx)

	s.ErrorIs(err, context.Canceled)
	s.GreaterOrEqual(runs.Load(), int32(3))
}

func (s *SchedulerTestSuite) TestStart_FailedRunKeepsScheduling() {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := runnerFunc(func(context.Context) error {
		if runs.Add(1) == 2 {
			cancel()
		}
		return errors.New("database unavailable")
	})

	err := NewScheduler("sync", runner, 10*time.Millisecond, 0, s.logger).Start(ctx)

	s.ErrorIs(err, context.Canceled)
	s.GreaterOrEqual(runs.Load(), int32(2))
}

func (s *SchedulerTestSuite) TestRunOnce_AppliesRunTimeout() {
	var deadline time.Time
	var hasDeadline bool

	runner := runnerFunc(func(ctx context.Context) error {
		deadline, hasDeadline = ctx.Deadline()
		<-ctx.Done()
		return ctx.Err()
	})

	sched := NewScheduler("builder", runner, time.Hour, 20*time.Millisecond, s.logger)
	start := time.Now()
	sched.runOnce(context.Background())

	s.True(hasDeadline)
	s.WithinDuration(start.Add(20*time.Millisecond), deadline, 50*time.Millisecond)
}

func (s *SchedulerTestSuite) TestRunOnce_NoTimeoutInheritsContext() {
	var hasDeadline bool

	runner := runnerFunc(func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	})

	NewScheduler("sync", runner, time.Hour, 0, s.logger).runOnce(context.Background())

	s.False(hasDeadline)
}
