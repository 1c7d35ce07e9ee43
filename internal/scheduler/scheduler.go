// Package scheduler wires up the cron job that periodically runs duplicate
// detection over the jobs currently in the store.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"job-dedup-go/internal/dedup"
	"job-dedup-go/internal/models"
)

// DefaultSpec runs detection every six hours.
const DefaultSpec = "@every 6h"

// JobSource loads the jobs a run works on.
type JobSource func(ctx context.Context) ([]models.JobRecord, error)

// Detector is the part of dedup.Service the scheduler drives.
type Detector interface {
	DetectDuplicates(ctx context.Context, scope string, jobs []models.JobRecord) (*dedup.RunSummary, error)
}

// Scheduler wraps robfig/cron and manages the detection loop.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	scope    string
	source   JobSource
	detector Detector
	logger   *zap.Logger
}

// New creates a Scheduler for one scope. An empty spec means DefaultSpec.
func New(spec, scope string, source JobSource, detector Detector, logger *zap.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
		),
		spec:     spec,
		scope:    scope,
		source:   source,
		detector: detector,
		logger:   logger,
	}
}

// Start registers the job and starts the scheduler. One run also starts
// immediately so results exist without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec), zap.String("scope", s.scope))

	go s.RunOnce(ctx)

	return nil
}

// Stop halts the scheduler and returns a context that is done once the
// running job, if any, has finished.
func (s *Scheduler) Stop() context.Context {
	done := s.cron.Stop()
	s.logger.Info("scheduler stopped")
	return done
}

// RunOnce loads the jobs and runs one detection. Failures are logged.
func (s *Scheduler) RunOnce(ctx context.Context) *dedup.RunSummary {
	if ctx.Err() != nil {
		return nil
	}
	s.logger.Info("detection cycle started", zap.String("scope", s.scope))

	jobs, err := s.source(ctx)
	if err != nil {
		s.logger.Error("failed to load jobs", zap.String("scope", s.scope), zap.Error(err))
		return nil
	}
	if len(jobs) == 0 {
		s.logger.Info("no jobs to deduplicate", zap.String("scope", s.scope))
		return nil
	}

	summary, err := s.detector.DetectDuplicates(ctx, s.scope, jobs)
	switch {
	case errors.Is(err, dedup.ErrRunInProgress):
		s.logger.Info("detection skipped, run already in progress", zap.String("scope", s.scope))
		return nil
	case err != nil:
		s.logger.Error("detection failed", zap.String("scope", s.scope), zap.Error(err))
		return nil
	}

	if summary.PartialFailure() {
		s.logger.Warn("detection cycle completed with failed batches",
			zap.String("run_id", summary.RunID),
			zap.Ints("failed_batches", summary.FailedBatches),
		)
	}
	return summary
}
