package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"job-dedup-go/internal/models"
)

// PostgresStore persists relationships and quality rows with pgx. Every
// batch is written in one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and verifies the connection.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS jobs (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  company TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  url TEXT NOT NULL DEFAULT '',
  salary_min INTEGER,
  salary_max INTEGER,
  job_type TEXT NOT NULL DEFAULT '',
  experience_level TEXT NOT NULL DEFAULT '',
  work_arrangement TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS job_duplicates (
  pair_key TEXT PRIMARY KEY,
  canonical_job_id TEXT NOT NULL,
  duplicate_job_id TEXT NOT NULL,
  title_similarity DOUBLE PRECISION NOT NULL DEFAULT 0,
  company_similarity DOUBLE PRECISION NOT NULL DEFAULT 0,
  location_similarity DOUBLE PRECISION NOT NULL DEFAULT 0,
  description_similarity DOUBLE PRECISION NOT NULL DEFAULT 0,
  overall_similarity DOUBLE PRECISION NOT NULL,
  confidence_level TEXT NOT NULL,
  detection_method TEXT NOT NULL,
  manually_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
  confirmed_by TEXT,
  confirmed_at TIMESTAMPTZ,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT job_duplicates_distinct CHECK (canonical_job_id <> duplicate_job_id)
);

CREATE INDEX IF NOT EXISTS idx_job_duplicates_canonical ON job_duplicates(canonical_job_id);
CREATE INDEX IF NOT EXISTS idx_job_duplicates_duplicate ON job_duplicates(duplicate_job_id);

CREATE TABLE IF NOT EXISTS job_quality_metadata (
  job_id TEXT PRIMARY KEY,
  completeness_score DOUBLE PRECISION NOT NULL,
  source_reliability_score DOUBLE PRECISION NOT NULL,
  freshness_score DOUBLE PRECISION NOT NULL,
  overall_quality_score DOUBLE PRECISION NOT NULL,
  is_canonical BOOLEAN NOT NULL DEFAULT TRUE,
  duplicate_count INTEGER NOT NULL DEFAULT 0,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

const relationshipColumns = `canonical_job_id, duplicate_job_id, title_similarity, company_similarity,
  location_similarity, description_similarity, overall_similarity, confidence_level,
  detection_method, manually_confirmed, confirmed_by, confirmed_at`

const pgInsertRelationship = `
INSERT INTO job_duplicates (pair_key, ` + relationshipColumns + `, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
ON CONFLICT (pair_key) DO UPDATE SET
  canonical_job_id = EXCLUDED.canonical_job_id,
  duplicate_job_id = EXCLUDED.duplicate_job_id,
  title_similarity = EXCLUDED.title_similarity,
  company_similarity = EXCLUDED.company_similarity,
  location_similarity = EXCLUDED.location_similarity,
  description_similarity = EXCLUDED.description_similarity,
  overall_similarity = EXCLUDED.overall_similarity,
  confidence_level = EXCLUDED.confidence_level,
  detection_method = EXCLUDED.detection_method,
  manually_confirmed = EXCLUDED.manually_confirmed,
  confirmed_by = EXCLUDED.confirmed_by,
  confirmed_at = EXCLUDED.confirmed_at,
  updated_at = NOW()`

const pgUpsertDetected = pgInsertRelationship + `
WHERE job_duplicates.manually_confirmed = FALSE`

const pgUpsertQuality = `
INSERT INTO job_quality_metadata (job_id, completeness_score, source_reliability_score,
  freshness_score, overall_quality_score, is_canonical, duplicate_count, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (job_id) DO UPDATE SET
  completeness_score = EXCLUDED.completeness_score,
  source_reliability_score = EXCLUDED.source_reliability_score,
  freshness_score = EXCLUDED.freshness_score,
  overall_quality_score = EXCLUDED.overall_quality_score,
  is_canonical = EXCLUDED.is_canonical,
  duplicate_count = EXCLUDED.duplicate_count,
  updated_at = EXCLUDED.updated_at`

func relationshipArgs(r models.DuplicateRelationship) []any {
	return []any{
		r.Key(), r.CanonicalJobID, r.DuplicateJobID,
		r.TitleSimilarity, r.CompanySimilarity, r.LocationSimilarity, r.DescriptionSimilarity,
		r.OverallSimilarity, string(r.ConfidenceLevel), string(r.DetectionMethod),
		r.ManuallyConfirmed, nullIfEmpty(r.ConfirmedBy), r.ConfirmedAt,
	}
}

func qualityArgs(q models.QualityMetadata) []any {
	updated := q.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return []any{
		q.JobID, q.CompletenessScore, q.SourceReliabilityScore, q.FreshnessScore,
		q.OverallQualityScore, q.IsCanonical, q.DuplicateCount, updated,
	}
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// WriteBatch writes quality rows and relationships in one transaction.
func (s *PostgresStore) WriteBatch(ctx context.Context, quality []models.QualityMetadata, rels []models.DuplicateRelationship) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, q := range quality {
		batch.Queue(pgUpsertQuality, qualityArgs(q)...)
	}
	for _, r := range rels {
		batch.Queue(pgUpsertDetected, relationshipArgs(r)...)
	}
	if err := execBatch(ctx, tx, batch); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to execute batch statement %d: %w", i, err)
		}
	}
	return br.Close()
}

func (s *PostgresStore) UpsertRelationships(ctx context.Context, rels []models.DuplicateRelationship) error {
	return s.WriteBatch(ctx, nil, rels)
}

func (s *PostgresStore) UpsertQuality(ctx context.Context, rows []models.QualityMetadata) error {
	return s.WriteBatch(ctx, rows, nil)
}

func (s *PostgresStore) ReplaceRelationship(ctx context.Context, rel models.DuplicateRelationship) error {
	if _, err := s.pool.Exec(ctx, pgInsertRelationship, relationshipArgs(rel)...); err != nil {
		return fmt.Errorf("failed to replace relationship: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRelationshipsFor(ctx context.Context, jobID string) ([]models.DuplicateRelationship, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+relationshipColumns+`
		 FROM job_duplicates
		 WHERE canonical_job_id = $1 OR duplicate_job_id = $1
		 ORDER BY pair_key`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var out []models.DuplicateRelationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRelationship(row pgx.Row) (models.DuplicateRelationship, error) {
	var (
		r           models.DuplicateRelationship
		level       string
		method      string
		confirmedBy *string
	)
	err := row.Scan(&r.CanonicalJobID, &r.DuplicateJobID,
		&r.TitleSimilarity, &r.CompanySimilarity, &r.LocationSimilarity, &r.DescriptionSimilarity,
		&r.OverallSimilarity, &level, &method, &r.ManuallyConfirmed, &confirmedBy, &r.ConfirmedAt)
	if err != nil {
		return r, fmt.Errorf("failed to scan relationship: %w", err)
	}
	r.ConfidenceLevel = models.ConfidenceLevel(level)
	r.DetectionMethod = models.DetectionMethod(method)
	if confirmedBy != nil {
		r.ConfirmedBy = *confirmedBy
	}
	return r, nil
}

func (s *PostgresStore) DeleteRelationship(ctx context.Context, canonicalID, duplicateID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM job_duplicates WHERE pair_key = $1`,
		models.PairKey(canonicalID, duplicateID))
	if err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ConfirmRelationship(ctx context.Context, canonicalID, duplicateID, confirmedBy string, at time.Time) (models.DuplicateRelationship, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE job_duplicates
		 SET manually_confirmed = TRUE, confirmed_by = $2, confirmed_at = $3, updated_at = NOW()
		 WHERE pair_key = $1
		 RETURNING `+relationshipColumns,
		models.PairKey(canonicalID, duplicateID), nullIfEmpty(confirmedBy), at.UTC(),
	)
	r, err := scanRelationship(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func (s *PostgresStore) ListCanonicalJobIDs(ctx context.Context, jobIDs []string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT duplicate_job_id FROM job_duplicates WHERE duplicate_job_id = ANY($1)`,
		jobIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect duplicate ids: %w", err)
	}

	duplicates := make(map[string]bool, len(ids))
	for _, id := range ids {
		duplicates[id] = true
	}
	return filterCanonical(jobIDs, duplicates), nil
}

func (s *PostgresStore) GetQuality(ctx context.Context, jobID string) (models.QualityMetadata, error) {
	var q models.QualityMetadata
	err := s.pool.QueryRow(ctx,
		`SELECT job_id, completeness_score, source_reliability_score, freshness_score,
		        overall_quality_score, is_canonical, duplicate_count, updated_at
		 FROM job_quality_metadata WHERE job_id = $1`,
		jobID,
	).Scan(&q.JobID, &q.CompletenessScore, &q.SourceReliabilityScore, &q.FreshnessScore,
		&q.OverallQualityScore, &q.IsCanonical, &q.DuplicateCount, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return q, ErrNotFound
	}
	if err != nil {
		return q, fmt.Errorf("failed to get quality: %w", err)
	}
	return q, nil
}

func (s *PostgresStore) UpdateCanonicalState(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE job_quality_metadata SET
		   is_canonical = NOT EXISTS (SELECT 1 FROM job_duplicates WHERE duplicate_job_id = $1),
		   duplicate_count = (SELECT COUNT(*) FROM job_duplicates WHERE canonical_job_id = $1),
		   updated_at = NOW()
		 WHERE job_id = $1`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to update canonical state: %w", err)
	}
	return nil
}

// SaveJobs upserts job records by id.
func (s *PostgresStore) SaveJobs(ctx context.Context, jobs []models.JobRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, j := range jobs {
		batch.Queue(
			`INSERT INTO jobs (id, title, company, location, description, url, salary_min, salary_max,
			   job_type, experience_level, work_arrangement, source, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 ON CONFLICT (id) DO UPDATE SET
			   title = EXCLUDED.title, company = EXCLUDED.company, location = EXCLUDED.location,
			   description = EXCLUDED.description, url = EXCLUDED.url,
			   salary_min = EXCLUDED.salary_min, salary_max = EXCLUDED.salary_max,
			   job_type = EXCLUDED.job_type, experience_level = EXCLUDED.experience_level,
			   work_arrangement = EXCLUDED.work_arrangement, source = EXCLUDED.source,
			   created_at = EXCLUDED.created_at`,
			j.ID, j.Title, j.Company, j.Location, j.Description, j.URL, j.SalaryMin, j.SalaryMax,
			j.JobType, j.ExperienceLevel, j.WorkArrangement, j.Source, nullTime(j.CreatedAt),
		)
	}
	if err := execBatch(ctx, tx, batch); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit jobs: %w", err)
	}
	return nil
}

// GetJobs returns every stored job ordered by id.
func (s *PostgresStore) GetJobs(ctx context.Context) ([]models.JobRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, company, location, description, url, salary_min, salary_max,
		        job_type, experience_level, work_arrangement, source, created_at
		 FROM jobs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var out []models.JobRecord
	for rows.Next() {
		var (
			j       models.JobRecord
			created *time.Time
		)
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.Description, &j.URL,
			&j.SalaryMin, &j.SalaryMax, &j.JobType, &j.ExperienceLevel, &j.WorkArrangement,
			&j.Source, &created); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if created != nil {
			j.CreatedAt = created.UTC()
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
