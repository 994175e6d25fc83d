package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
	"github.com/angelmondragon/ghanadude-checkout/pkg/metrics"
)

const defaultInterval = 6 * time.Hour

// ErrLockHeld is returned by RunOnce when another worker owns the cycle.
var ErrLockHeld = errors.New("retention lock held by another worker")

// ServiceParams configure the retention service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.RetentionJobMetrics
	Interval time.Duration
}

// Report summarises one retention cycle.
type Report struct {
	Jobs   int
	Failed int
	Purged int64
	Took   time.Duration
}

// Service runs the registered purge jobs on a fixed cadence. The lock keeps
// concurrent workers from purging the same tables at once.
type Service struct {
	logg     *logger.Logger
	jobs     *Registry
	lock     Lock
	metrics  *metrics.RetentionJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	svc := &Service{
		logg:     params.Logger,
		jobs:     params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
	}
	if svc.jobs == nil {
		svc.jobs = NewRegistry()
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	return svc, nil
}

// Run performs a cycle straight away and then once per interval until ctx is
// done. Cycle failures are logged, never returned.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.cycle(ctx)
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "retention service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single cycle. Job failures are combined into the
// returned error; ErrLockHeld means nothing ran.
func (s *Service) RunOnce(ctx context.Context) (Report, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		return Report{}, ErrLockHeld
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release retention lock", relErr)
		}
	}()

	var (
		report Report
		errs   error
		start  = time.Now()
	)
	for _, job := range s.jobs.Jobs() {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		report.Jobs++
		rows, err := s.runJob(ctx, job)
		if err != nil {
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
			continue
		}
		report.Purged += rows
	}
	report.Took = time.Since(start)
	return report, errs
}

func (s *Service) cycle(ctx context.Context) {
	report, err := s.RunOnce(ctx)
	if errors.Is(err, ErrLockHeld) {
		s.logg.Info(ctx, "another retention worker holds the lock; skipping cycle")
		return
	}
	summary := s.logg.WithFields(ctx, map[string]any{
		"jobs":        report.Jobs,
		"failed":      report.Failed,
		"purged":      report.Purged,
		"duration_ms": report.Took.Milliseconds(),
	})
	if err != nil {
		s.logg.Error(summary, "retention cycle finished with errors", err)
		return
	}
	s.logg.Info(summary, "retention cycle complete")
}

func (s *Service) runJob(ctx context.Context, job Job) (int64, error) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "retention.job"})
	start := time.Now()
	rows, err := job.Run(jobCtx)
	took := time.Since(start)

	s.metrics.ObserveDuration(job.Name(), took)
	s.metrics.IncRun(job.Name(), err)
	if err != nil {
		return 0, err
	}
	s.metrics.AddPurged(job.Name(), rows)
	s.logg.Debug(s.logg.WithFields(jobCtx, map[string]any{"rows": rows, "duration_ms": took.Milliseconds()}), "job completed")
	return rows, nil
}
