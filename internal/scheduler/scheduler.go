// Package scheduler runs named maintenance tasks on cron expressions. A task
// still running when its next firing comes due is skipped with a warning, and
// panics are recovered so a single bad run never wedges the schedule.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron *cron.Cron
}

// New returns a stopped scheduler. Register tasks with Add, then call Start.
func New() *Scheduler {
	logger := cronLogger{}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(logger),
			cron.Recover(logger),
		)),
	}
}

// Add registers a task under a cron expression (standard 5-field specs and
// descriptors like "@every 30s" are accepted).
func (s *Scheduler) Add(name, expr string, task func() error) error {
	_, err := s.cron.AddFunc(expr, func() {
		start := time.Now()
		slog.Info("task started", "task", name)

		err := task()
		if err != nil {
			slog.Error("task failed",
				"task", name,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
			return
		}

		slog.Info("task finished",
			"task", name,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule task %q: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "tasks", len(s.cron.Entries()))
}

// Stop halts scheduling and waits for any running task to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("scheduler stopped")
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Warn("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	keysAndValues = append(keysAndValues, "error", err)
	slog.Error("cron: "+msg, keysAndValues...)
}
