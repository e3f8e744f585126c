package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"LearningCurator/internal/ports"
)

// Scheduler triggers pipeline runs from a time-based driver.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduler binds pipeline to driver. log may be nil.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, log *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, logger: log}
}

// Start hands the driver a job that runs the pipeline without dry-run.
// A scheduler with no driver is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}
	return s.driver.Start(ctx, func(fired time.Time) { s.runOnce(ctx, fired) })
}

func (s *Scheduler) runOnce(ctx context.Context, fired time.Time) {
	summary, err := s.pipeline.Run(ctx, RunOptions{})
	if s.logger == nil {
		return
	}
	switch {
	case errors.Is(err, ports.ErrRunInProgress):
		s.logger.Info("scheduled run skipped: another run holds the lease", "fired_at", fired)
	case err != nil:
		s.logger.Error("scheduled run failed", "fired_at", fired, "error", err)
	default:
		s.logger.Info("scheduled run completed", "fired_at", fired, "items", len(summary.Items), "written", summary.Written)
	}
}

// Stop waits for an in-flight scheduled run, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
