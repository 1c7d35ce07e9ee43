package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"job-dedup-go/internal/events"
	"job-dedup-go/internal/lock"
	"job-dedup-go/internal/models"
	"job-dedup-go/internal/quality"
	"job-dedup-go/internal/storage"
)

// Service is the entry point the rest of the application calls.
type Service struct {
	store     storage.Store
	scorer    *quality.Scorer
	locker    lock.Locker
	publisher events.Publisher
	runner    *Runner
	logger    *zap.Logger
	now       func() time.Time
}

// ServiceConfig wires a Service. Zero values fall back to defaults.
type ServiceConfig struct {
	Options   Options
	Scorer    *quality.Scorer
	Locker    lock.Locker
	Publisher events.Publisher
	Retry     *RetryConfig
	Logger    *zap.Logger
	Clock     func() time.Time
}

// NewService validates cfg.Options and builds a Service on store.
func NewService(store storage.Store, cfg ServiceConfig) (*Service, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Scorer == nil {
		cfg.Scorer = quality.NewScorer()
	}
	if cfg.Locker == nil {
		cfg.Locker = lock.NewLocalLocker()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.Nop{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	s := &Service{
		store:     store,
		scorer:    cfg.Scorer,
		locker:    cfg.Locker,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		now:       cfg.Clock,
	}

	runner, err := s.newRunner(cfg.Options, cfg.Retry)
	if err != nil {
		return nil, err
	}
	s.runner = runner
	return s, nil
}

func (s *Service) newRunner(opts Options, retry *RetryConfig) (*Runner, error) {
	detector, err := NewDetector(opts, s.scorer, s.logger)
	if err != nil {
		return nil, err
	}

	runnerOpts := []RunnerOption{
		WithLocker(s.locker),
		WithPublisher(s.publisher),
		WithLogger(s.logger),
	}
	if retry != nil {
		runnerOpts = append(runnerOpts, WithRetry(*retry))
	}
	return NewRunner(detector, s.store, runnerOpts...), nil
}

// Runner returns the runner used by DetectDuplicates.
func (s *Service) Runner() *Runner {
	return s.runner
}

// DetectDuplicates runs detection over jobs with the service options and
// persists the result.
func (s *Service) DetectDuplicates(ctx context.Context, scope string, jobs []models.JobRecord) (*RunSummary, error) {
	return s.runner.Run(ctx, scope, jobs)
}

// DetectDuplicatesWith runs one detection with per-call options. The options
// are validated before any comparison work starts.
func (s *Service) DetectDuplicatesWith(ctx context.Context, scope string, jobs []models.JobRecord, opts Options) (*RunSummary, error) {
	runner, err := s.newRunner(opts, &s.runner.retryConfig)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx, scope, jobs)
}

// Preview detects duplicates without touching the store.
func (s *Service) Preview(ctx context.Context, jobs []models.JobRecord) (*Detection, error) {
	return s.runner.detector.Detect(ctx, jobs)
}

// ScoreJob computes quality metadata for one job.
func (s *Service) ScoreJob(job models.JobRecord) models.QualityMetadata {
	return s.scorer.ScoreJob(job)
}

// ManualMerge records canonicalID as the canonical job of duplicateID,
// whatever their quality scores. An existing relationship for the pair is
// replaced.
func (s *Service) ManualMerge(ctx context.Context, canonicalID, duplicateID, confirmedBy string) (models.DuplicateRelationship, error) {
	canonicalID, duplicateID, err := checkPair(canonicalID, duplicateID)
	if err != nil {
		return models.DuplicateRelationship{}, err
	}

	rel := models.NewManualRelationship(canonicalID, duplicateID, confirmedBy, s.now())
	if err := s.store.ReplaceRelationship(ctx, rel); err != nil {
		return models.DuplicateRelationship{}, fmt.Errorf("failed to save manual merge: %w", err)
	}

	if err := s.refreshCanonicalState(ctx, canonicalID, duplicateID); err != nil {
		return rel, err
	}

	s.logger.Info("manual merge",
		zap.String("canonical_job_id", canonicalID),
		zap.String("duplicate_job_id", duplicateID),
		zap.String("confirmed_by", confirmedBy),
	)
	return rel, nil
}

// RemoveDuplicateRelationship deletes the relationship between the two jobs.
// It returns storage.ErrNotFound when none exists.
func (s *Service) RemoveDuplicateRelationship(ctx context.Context, canonicalID, duplicateID string) error {
	canonicalID, duplicateID, err := checkPair(canonicalID, duplicateID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteRelationship(ctx, canonicalID, duplicateID); err != nil {
		return fmt.Errorf("failed to remove relationship: %w", err)
	}

	if err := s.refreshCanonicalState(ctx, canonicalID, duplicateID); err != nil {
		return err
	}

	s.logger.Info("relationship removed",
		zap.String("canonical_job_id", canonicalID),
		zap.String("duplicate_job_id", duplicateID),
	)
	return nil
}

// ConfirmRelationship marks a detected relationship as manually confirmed so
// later runs leave it alone.
func (s *Service) ConfirmRelationship(ctx context.Context, canonicalID, duplicateID, confirmedBy string) (models.DuplicateRelationship, error) {
	canonicalID, duplicateID, err := checkPair(canonicalID, duplicateID)
	if err != nil {
		return models.DuplicateRelationship{}, err
	}

	rel, err := s.store.ConfirmRelationship(ctx, canonicalID, duplicateID, confirmedBy, s.now().UTC())
	if err != nil {
		return models.DuplicateRelationship{}, fmt.Errorf("failed to confirm relationship: %w", err)
	}
	return rel, nil
}

// DuplicatesOf returns every relationship that involves jobID.
func (s *Service) DuplicatesOf(ctx context.Context, jobID string) ([]models.DuplicateRelationship, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, &InputError{Index: -1, Reason: "missing id"}
	}
	return s.store.GetRelationshipsFor(ctx, jobID)
}

// ListCanonical keeps the ids that are not the duplicate side of any stored
// relationship, in input order.
func (s *Service) ListCanonical(ctx context.Context, jobIDs []string) ([]string, error) {
	return s.store.ListCanonicalJobIDs(ctx, jobIDs)
}

func (s *Service) refreshCanonicalState(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if err := s.store.UpdateCanonicalState(ctx, id); err != nil {
			return fmt.Errorf("failed to update canonical state of %s: %w", id, err)
		}
	}
	return nil
}

func checkPair(canonicalID, duplicateID string) (string, string, error) {
	canonicalID = strings.TrimSpace(canonicalID)
	duplicateID = strings.TrimSpace(duplicateID)

	if canonicalID == "" {
		return "", "", &InputError{Index: -1, Reason: "missing canonical id"}
	}
	if duplicateID == "" {
		return "", "", &InputError{Index: -1, Reason: "missing duplicate id"}
	}
	if canonicalID == duplicateID {
		return "", "", &ConflictError{JobID: canonicalID, Message: "cannot merge a job with itself"}
	}
	return canonicalID, duplicateID, nil
}
