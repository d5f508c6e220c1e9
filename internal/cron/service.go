package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const defaultInterval = time.Hour

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service executes registered cron jobs on a fixed cadence.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// RunOnce executes a single locked cycle and reports job failures. Used by
// the worker's --once mode.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.runCycle(ctx)
}

// Run executes a cycle immediately and then on every tick until ctx is
// canceled. Job failures are logged and do not stop the loop.
func (s *Service) Run(ctx context.Context) error {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "cron cycle finished with failures", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "cron cycle finished with failures", err)
			}
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.metrics.IncSkippedCycle()
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	ctx = s.logg.WithField(ctx, "cycle_id", uuid.NewString())
	s.logg.Info(ctx, "cron cycle starting")
	var errs error
	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		if err := s.runJob(ctx, job); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("job %s: %w", job.Name(), err))
		}
	}
	s.logg.Info(s.logg.WithField(ctx, "failed_jobs", len(multierr.Errors(errs))), "cron cycle complete")
	return errs
}

// runJob executes one job. A panic is converted into an error so one broken
// job cannot take the worker down.
func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		duration := time.Since(start)
		s.metrics.ObserveRun(job.Name(), duration, err)
		jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
		if err != nil {
			s.logg.Error(jobCtx, "job failed", err)
			return
		}
		s.logg.Info(jobCtx, "job completed")
	}()

	s.logg.Info(jobCtx, "job start")
	return job.Run(jobCtx)
}
