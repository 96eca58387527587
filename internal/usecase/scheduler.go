package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"NewsDigest/internal/ports"
	"NewsDigest/internal/runlock"
)

// ScheduledRunner executes the pipeline on the cadence the scheduler
// dictates. A run that loses the lock race is logged, not treated as a
// failure.
type ScheduledRunner struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduledRunner wires the scheduler driver to the pipeline.
func NewScheduledRunner(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *ScheduledRunner {
	return &ScheduledRunner{driver: driver, pipeline: pipeline, logger: logger}
}

// Start launches recurring runs until the context is cancelled.
func (r *ScheduledRunner) Start(ctx context.Context) error {
	return r.driver.Start(ctx, func(t time.Time) {
		r.logger.Info("scheduled run starting", "fired_at", t.Format(time.RFC3339))

		summary, err := r.pipeline.Run(ctx)
		switch {
		case errors.Is(err, runlock.ErrAlreadyRunning):
			r.logger.Info("scheduled run skipped, lock held", "error", err)
		case err != nil:
			r.logger.Error("scheduled run failed", "error", err)
		default:
			r.logger.Info("scheduled run finished",
				"ingested", summary.Ingested,
				"after_dedup", summary.AfterDedup,
				"evaluations_created", summary.EvaluationsCreated)
		}
	})
}

// Stop halts the underlying scheduler.
func (r *ScheduledRunner) Stop(ctx context.Context) error {
	return r.driver.Stop(ctx)
}
