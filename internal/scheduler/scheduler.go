// Package scheduler runs the calendar jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named unit of scheduled work
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler wraps a cron runner. Runs of one job never overlap.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// New creates a scheduler evaluating specs in loc
func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Add registers job. An empty spec leaves the job disabled.
func (s *Scheduler) Add(job Job) error {
	if job.Spec == "" {
		s.logger.Info("scheduled job disabled", zap.String("job", job.Name))
		return nil
	}

	_, err := s.cron.AddFunc(job.Spec, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", job.Name, job.Spec, err)
	}

	s.logger.Info("scheduled job registered", zap.String("job", job.Name), zap.String("spec", job.Spec))
	return nil
}

func (s *Scheduler) run(job Job) {
	ctx := s.ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("scheduled job failed",
			zap.String("job", job.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("scheduled job finished",
		zap.String("job", job.Name),
		zap.Duration("duration", time.Since(start)),
	)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or ctx to end
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, zap.Error(err), zap.Any("details", keysAndValues))
}
