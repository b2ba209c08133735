package usecase

import (
	"context"
	"log/slog"
	"time"

	"MangaVote/internal/ports"
)

// Scheduler wires the monthly driver with the synchronization pipeline.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring catalog syncs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if s.logger != nil {
			s.logger.Info("scheduled catalog sync", "trigger", trigger)
		}
		if _, err := s.pipeline.Synchronize(ctx); err != nil && s.logger != nil {
			s.logger.Error("catalog sync failed", "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
