// Package scheduler runs the periodic sync, reconcile and auto-fix cycle.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	appConfig "github.com/festy23/code_janitor/internal/config"
	fixModel "github.com/festy23/code_janitor/internal/fixer/model"
	"github.com/festy23/code_janitor/internal/telemetry"
)

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Runner is the subset of the fix orchestrator a cycle drives.
type Runner interface {
	SyncIssues(ctx context.Context) (int, error)
	ReconcilePullRequests(ctx context.Context) (int, error)
	FixPending(ctx context.Context) (*fixModel.SweepResult, error)
}

// Scheduler triggers RunCycle every poll interval.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	autoFix  bool
	metrics  *telemetry.Metrics
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	initial sync.WaitGroup
}

// New creates a scheduler for runner using the janitor settings.
func New(runner Runner, cfg appConfig.JanitorConfig, metrics *telemetry.Metrics, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: cfg.PollInterval,
		autoFix:  cfg.AutoFix,
		metrics:  metrics,
		logger:   logger,
	}
}

// RunCycle performs one sync, reconcile and optional fix sweep.
// A failing step is logged and does not stop later steps.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	start := time.Now()
	var errs []error

	added, err := s.runner.SyncIssues(ctx)
	if err != nil {
		s.logger.Errorw("cycle sync failed", "error", err)
		errs = append(errs, fmt.Errorf("sync: %w", err))
	} else if added > 0 {
		s.logger.Infow("cycle synced new issues", "count", added)
	}

	merged, err := s.runner.ReconcilePullRequests(ctx)
	if err != nil {
		s.logger.Errorw("cycle reconcile failed", "error", err)
		errs = append(errs, fmt.Errorf("reconcile: %w", err))
	} else if merged > 0 {
		s.logger.Infow("cycle detected merged pull requests", "count", merged)
	}

	if s.autoFix && ctx.Err() == nil {
		res, err := s.runner.FixPending(ctx)
		if err != nil {
			s.logger.Errorw("cycle fix sweep failed", "error", err)
			errs = append(errs, fmt.Errorf("fix sweep: %w", err))
		} else if res.Attempted > 0 {
			s.logger.Infow("cycle fix sweep finished",
				"attempted", res.Attempted,
				"succeeded", res.Succeeded,
				"failed", res.Failed,
				"rejected", res.Rejected,
			)
		}
	}

	err = errors.Join(errs...)
	s.metrics.ObserveCycle(err, time.Since(start))
	s.logger.Debugw("cycle finished", "elapsed", time.Since(start), "failed_steps", len(errs))
	return err
}

// Start runs one cycle immediately and then one per interval until Stop.
// Overlapping runs are skipped rather than queued.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	cronLogger := newCronLogger(s.logger)
	job := cron.NewChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	).Then(cron.FuncJob(func() {
		_ = s.RunCycle(runCtx)
	}))

	c := cron.New(cron.WithLogger(cronLogger))
	c.Schedule(cron.Every(s.interval), job)
	c.Start()
	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		job.Run()
	}()

	s.cron = c
	s.cancel = cancel
	s.logger.Infow("scheduler started", "interval", s.interval, "auto_fix", s.autoFix)
	return nil
}

// Stop cancels the running cycle and waits for it to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	cancel()
	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		s.initial.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for scheduler cycle: %w", ctx.Err())
	}
}

// cronLogger routes cron's internal logging through zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func newCronLogger(logger *zap.SugaredLogger) cron.Logger {
	return cronLogger{logger: logger.With("component", "cron")}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
