// Package scheduler runs the coverage watch on a cron schedule with gocron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const watchJobName = "coverage_watch"

// Scheduler owns the gocron scheduler and the single watch job.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	schedule  string
	watch     *Watch

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler that runs watch on the cron expression
// schedule, which carries a seconds field.
func NewScheduler(schedule string, watch *Watch, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "scheduler")

	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		schedule:  schedule,
		watch:     watch,
	}, nil
}

// Start registers the watch job and starts ticking. Jobs run with a context
// derived from ctx that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}

	jobCtx, cancel := context.WithCancel(ctx)

	_, err := s.scheduler.NewJob(
		gocron.CronJob(s.schedule, true),
		gocron.NewTask(func() { s.runWatch(jobCtx) }),
		gocron.WithName(watchJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		s.logger.Error("Failed to schedule task", "task_name", watchJobName, "schedule", s.schedule, "error", err)
		return fmt.Errorf("failed to schedule %s: %w", watchJobName, err)
	}

	s.scheduler.Start()
	s.cancel = cancel
	s.running = true
	s.logger.Info("Scheduler started", "task_name", watchJobName, "schedule", s.schedule)
	return nil
}

func (s *Scheduler) runWatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Info("Running scheduled task", "task_name", watchJobName)
	start := time.Now()
	if _, err := s.watch.Check(ctx); err != nil {
		s.logger.Error("Scheduled task failed", "task_name", watchJobName, "error", err)
	}
	s.logger.Info("Finished scheduled task", "task_name", watchJobName, "duration", time.Since(start))
}

// Stop cancels a running check and waits for it to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	s.cancel()
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}
