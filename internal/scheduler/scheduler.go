package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one pipeline run.
type Job func(ctx context.Context) error

// Scheduler triggers pipeline runs on a cron spec (with seconds field).
type Scheduler struct {
	Cron *cron.Cron
	Job  Job
	Log  *zap.Logger
	Ctx  context.Context

	running sync.Mutex
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, job Job, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLogger{log.Sugar()})),
		),
		Job: job,
		Log: log,
		Ctx: ctx,
	}
}

// Register adds the pipeline run under the given spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("register pipeline task %q: %w", spec, err)
	}
	s.Log.Info("pipeline task registered", zap.String("cron", spec))
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Log.Info("scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Log.Info("scheduler stopped")
}

// RunNow executes the pipeline immediately (RUN_ON_START / manual trigger).
func (s *Scheduler) RunNow() {
	s.run()
}

// run skips a trigger that fires while the previous run is still going.
func (s *Scheduler) run() {
	if !s.running.TryLock() {
		s.Log.Warn("previous pipeline run still in progress, skipping")
		return
	}
	defer s.running.Unlock()

	if err := s.Ctx.Err(); err != nil {
		return
	}
	if err := s.Job(s.Ctx); err != nil {
		s.Log.Error("scheduled pipeline run failed", zap.Error(err))
		return
	}
	s.Log.Info("scheduled pipeline run finished")
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
