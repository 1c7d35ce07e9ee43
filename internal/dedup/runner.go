package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"job-dedup-go/internal/events"
	"job-dedup-go/internal/lock"
	"job-dedup-go/internal/models"
	"job-dedup-go/internal/storage"
)

// Runner executes full deduplication runs: it takes the scope lock, detects,
// persists in batches with partial-success semantics and announces the result.
type Runner struct {
	detector    *Detector
	store       storage.Store
	locker      lock.Locker
	publisher   events.Publisher
	limiter     *WriteLimiter
	retryConfig RetryConfig
	metrics     *RunnerMetrics
	logger      *zap.Logger
}

// RetryConfig defines retry behavior for batch writes
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// RunnerMetrics tracks runner activity across runs
type RunnerMetrics struct {
	TotalRuns          int64
	TotalJobsProcessed int64
	TotalDuplicates    int64
	TotalFailedBatches int64
	LastRunDuration    time.Duration
	ScopePerformance   map[string]ScopeMetrics
	mu                 sync.RWMutex
}

// ScopeMetrics tracks the last run of one scope
type ScopeMetrics struct {
	JobsProcessed   int
	DuplicatesFound int
	FailedBatches   int
	Duration        time.Duration
	LastRun         time.Time
}

// RunSummary is reported to the caller after every run.
type RunSummary struct {
	RunID                   string        `json:"run_id"`
	Scope                   string        `json:"scope"`
	TotalJobsProcessed      int           `json:"total_jobs_processed"`
	SkippedJobs             int           `json:"skipped_jobs"`
	Comparisons             int           `json:"comparisons"`
	DuplicatesFound         int           `json:"duplicates_found"`
	CanonicalJobsIdentified int           `json:"canonical_jobs_identified"`
	UniqueJobs              int           `json:"unique_jobs"`
	HighConfidence          int           `json:"high_confidence"`
	MediumConfidence        int           `json:"medium_confidence"`
	LowConfidence           int           `json:"low_confidence"`
	URLMatches              int           `json:"url_matches"`
	SucceededBatches        []int         `json:"succeeded_batches"`
	FailedBatches           []int         `json:"failed_batches"`
	BatchErrors             []error       `json:"-"`
	StartedAt               time.Time     `json:"started_at"`
	Duration                time.Duration `json:"duration"`
}

// PartialFailure reports whether any batch failed to persist.
func (s *RunSummary) PartialFailure() bool {
	return len(s.FailedBatches) > 0
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLocker sets the scope locker. Defaults to an in-process locker.
func WithLocker(l lock.Locker) RunnerOption {
	return func(r *Runner) { r.locker = l }
}

// WithPublisher sets the completion event publisher.
func WithPublisher(p events.Publisher) RunnerOption {
	return func(r *Runner) { r.publisher = p }
}

// WithRetry overrides the batch retry policy.
func WithRetry(rc RetryConfig) RunnerOption {
	return func(r *Runner) { r.retryConfig = rc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner. A failed batch is retried once by default.
func NewRunner(detector *Detector, store storage.Store, opts ...RunnerOption) *Runner {
	r := &Runner{
		detector:  detector,
		store:     store,
		locker:    lock.NewLocalLocker(),
		publisher: events.Nop{},
		limiter:   NewWriteLimiter(detector.Options().WritesPerSecond),
		retryConfig: RetryConfig{
			MaxRetries:    1,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
		},
		metrics: &RunnerMetrics{
			ScopePerformance: make(map[string]ScopeMetrics),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run deduplicates jobs for scope. A batch that still fails after its retry
// is listed in FailedBatches; the run itself only fails on a held lock, a
// cancelled context or a store that cannot be reached at all.
func (r *Runner) Run(ctx context.Context, scope string, jobs []models.JobRecord) (*RunSummary, error) {
	startTime := time.Now()

	lease, err := r.locker.Acquire(ctx, scope)
	if errors.Is(err, lock.ErrLocked) {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, scope)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire scope lock: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			r.logger.Warn("failed to release scope lock", zap.String("scope", scope), zap.Error(err))
		}
	}()

	det, err := r.detector.Detect(ctx, jobs)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}

	summary := summarize(det)
	summary.RunID = uuid.NewString()
	summary.Scope = scope
	summary.StartedAt = startTime.UTC()

	if err := r.persist(ctx, scope, det, summary); err != nil {
		summary.Duration = time.Since(startTime)
		return summary, err
	}
	summary.Duration = time.Since(startTime)

	r.recordMetrics(summary)

	r.logger.Info("deduplication run completed",
		zap.String("run_id", summary.RunID),
		zap.String("scope", scope),
		zap.Int("total_jobs_processed", summary.TotalJobsProcessed),
		zap.Int("skipped_jobs", summary.SkippedJobs),
		zap.Int("comparisons", summary.Comparisons),
		zap.Int("duplicates_found", summary.DuplicatesFound),
		zap.Int("canonical_jobs_identified", summary.CanonicalJobsIdentified),
		zap.Ints("succeeded_batches", summary.SucceededBatches),
		zap.Ints("failed_batches", summary.FailedBatches),
		zap.Duration("duration", summary.Duration),
	)

	// Publish DEDUP_COMPLETED for downstream listeners (non-fatal).
	ev := events.RunCompleted{
		RunID:            summary.RunID,
		Scope:            scope,
		TotalJobs:        summary.TotalJobsProcessed,
		DuplicatesFound:  summary.DuplicatesFound,
		CanonicalJobs:    summary.CanonicalJobsIdentified,
		SucceededBatches: summary.SucceededBatches,
		FailedBatches:    summary.FailedBatches,
		FinishedAt:       time.Now().UTC(),
	}
	if err := r.publisher.PublishRunCompleted(ctx, ev); err != nil {
		r.logger.Warn("publish run completed failed", zap.String("run_id", summary.RunID), zap.Error(err))
	}

	return summary, nil
}

func summarize(det *Detection) *RunSummary {
	s := &RunSummary{
		TotalJobsProcessed: len(det.Jobs),
		SkippedJobs:        len(det.Skipped),
		Comparisons:        det.Comparisons,
		DuplicatesFound:    len(det.Relationships),
		UniqueJobs:         len(det.CanonicalIDs),
		SucceededBatches:   []int{},
		FailedBatches:      []int{},
	}

	for _, rel := range det.Relationships {
		switch rel.ConfidenceLevel {
		case models.ConfidenceHigh:
			s.HighConfidence++
		case models.ConfidenceMedium:
			s.MediumConfidence++
		case models.ConfidenceLow:
			s.LowConfidence++
		}
		if rel.DetectionMethod == models.MethodURLMatch {
			s.URLMatches++
		}
	}

	for _, q := range det.Quality {
		if q.IsCanonical && q.DuplicateCount > 0 {
			s.CanonicalJobsIdentified++
		}
	}

	return s
}

// persist writes the detection in batches of BatchSize jobs, in input order.
// Each batch carries the quality rows of its jobs and the relationships whose
// duplicate side is one of them.
func (r *Runner) persist(ctx context.Context, scope string, det *Detection, summary *RunSummary) error {
	defer r.limiter.Forget(scope)

	byDuplicate := make(map[string][]models.DuplicateRelationship)
	for _, rel := range det.Relationships {
		byDuplicate[rel.DuplicateJobID] = append(byDuplicate[rel.DuplicateJobID], rel)
	}

	batchSize := r.detector.Options().BatchSize
	batch := 0
	for start := 0; start < len(det.Jobs); start += batchSize {
		batch++
		end := start + batchSize
		if end > len(det.Jobs) {
			end = len(det.Jobs)
		}

		quality := make([]models.QualityMetadata, 0, end-start)
		var rels []models.DuplicateRelationship
		for _, job := range det.Jobs[start:end] {
			quality = append(quality, det.Quality[job.ID])
			rels = append(rels, byDuplicate[job.ID]...)
		}

		err := r.writeBatch(ctx, scope, batch, quality, rels)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			r.logger.Error("batch failed",
				zap.String("scope", scope),
				zap.Int("batch", batch),
				zap.Error(err),
			)
			summary.FailedBatches = append(summary.FailedBatches, batch)
			summary.BatchErrors = append(summary.BatchErrors, err)
			continue
		}
		summary.SucceededBatches = append(summary.SucceededBatches, batch)
	}

	return nil
}

// writeBatch writes one batch with rate limiting and retries
func (r *Runner) writeBatch(ctx context.Context, scope string, batch int, quality []models.QualityMetadata, rels []models.DuplicateRelationship) error {
	var lastError error
	attempts := 0

	for attempt := 0; attempt <= r.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateBackoffDelay(attempt)
			r.logger.Warn("retrying batch",
				zap.Int("batch", batch),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastError),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := r.limiter.Wait(ctx, scope); err != nil {
			return fmt.Errorf("write limiter: %w", err)
		}

		attempts++
		lastError = r.write(ctx, quality, rels)
		if lastError == nil {
			return nil
		}
	}

	return &PersistenceError{Batch: batch, Attempts: attempts, Cause: lastError}
}

func (r *Runner) write(ctx context.Context, quality []models.QualityMetadata, rels []models.DuplicateRelationship) error {
	if bw, ok := r.store.(storage.BatchWriter); ok {
		if err := bw.WriteBatch(ctx, quality, rels); err != nil {
			return err
		}
	} else {
		if err := r.store.UpsertQuality(ctx, quality); err != nil {
			return err
		}
		if err := r.store.UpsertRelationships(ctx, rels); err != nil {
			return err
		}
	}

	return r.refreshCanonicalState(ctx, quality, rels)
}

// refreshCanonicalState recomputes the canonical flag and duplicate count of
// every job a batch touched from the stored relationships, which include
// manual merges this run did not detect.
func (r *Runner) refreshCanonicalState(ctx context.Context, quality []models.QualityMetadata, rels []models.DuplicateRelationship) error {
	seen := make(map[string]bool, len(quality)+len(rels))
	ids := make([]string, 0, len(quality)+len(rels))
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, q := range quality {
		add(q.JobID)
	}
	for _, rel := range rels {
		add(rel.CanonicalJobID)
	}

	for _, id := range ids {
		if err := r.store.UpdateCanonicalState(ctx, id); err != nil {
			return fmt.Errorf("failed to update canonical state of %s: %w", id, err)
		}
	}
	return nil
}

// calculateBackoffDelay calculates exponential backoff delay
func (r *Runner) calculateBackoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(r.retryConfig.InitialDelay) *
		float64(attempt) * r.retryConfig.BackoffFactor)

	if delay > r.retryConfig.MaxDelay {
		delay = r.retryConfig.MaxDelay
	}

	return delay
}

func (r *Runner) recordMetrics(s *RunSummary) {
	r.metrics.mu.Lock()
	defer r.metrics.mu.Unlock()

	r.metrics.TotalRuns++
	r.metrics.TotalJobsProcessed += int64(s.TotalJobsProcessed)
	r.metrics.TotalDuplicates += int64(s.DuplicatesFound)
	r.metrics.TotalFailedBatches += int64(len(s.FailedBatches))
	r.metrics.LastRunDuration = s.Duration
	r.metrics.ScopePerformance[s.Scope] = ScopeMetrics{
		JobsProcessed:   s.TotalJobsProcessed,
		DuplicatesFound: s.DuplicatesFound,
		FailedBatches:   len(s.FailedBatches),
		Duration:        s.Duration,
		LastRun:         s.StartedAt,
	}
}

// GetMetrics returns current runner metrics
func (r *Runner) GetMetrics() RunnerMetrics {
	r.metrics.mu.RLock()
	defer r.metrics.mu.RUnlock()

	// Copy without the mutex
	scopePerformance := make(map[string]ScopeMetrics, len(r.metrics.ScopePerformance))
	for k, v := range r.metrics.ScopePerformance {
		scopePerformance[k] = v
	}

	return RunnerMetrics{
		TotalRuns:          r.metrics.TotalRuns,
		TotalJobsProcessed: r.metrics.TotalJobsProcessed,
		TotalDuplicates:    r.metrics.TotalDuplicates,
		TotalFailedBatches: r.metrics.TotalFailedBatches,
		LastRunDuration:    r.metrics.LastRunDuration,
		ScopePerformance:   scopePerformance,
	}
}

// Detector returns the detector the runner uses.
func (r *Runner) Detector() *Detector {
	return r.detector
}
