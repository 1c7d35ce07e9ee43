package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"job-dedup-go/internal/models"
)

// SQLiteStore is the embedded store used by the CLI and single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // sqlite wants a single writer
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

var sqliteSchemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
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
  created_at TEXT NOT NULL DEFAULT ''
);`,
	`CREATE TABLE IF NOT EXISTS job_duplicates (
  pair_key TEXT PRIMARY KEY,
  canonical_job_id TEXT NOT NULL,
  duplicate_job_id TEXT NOT NULL,
  title_similarity REAL NOT NULL DEFAULT 0,
  company_similarity REAL NOT NULL DEFAULT 0,
  location_similarity REAL NOT NULL DEFAULT 0,
  description_similarity REAL NOT NULL DEFAULT 0,
  overall_similarity REAL NOT NULL,
  confidence_level TEXT NOT NULL,
  detection_method TEXT NOT NULL,
  manually_confirmed INTEGER NOT NULL DEFAULT 0,
  confirmed_by TEXT NOT NULL DEFAULT '',
  confirmed_at TEXT NOT NULL DEFAULT '',
  updated_at TEXT NOT NULL,
  CHECK (canonical_job_id <> duplicate_job_id)
);`,
	`CREATE INDEX IF NOT EXISTS idx_job_duplicates_canonical ON job_duplicates(canonical_job_id);`,
	`CREATE INDEX IF NOT EXISTS idx_job_duplicates_duplicate ON job_duplicates(duplicate_job_id);`,
	`CREATE TABLE IF NOT EXISTS job_quality_metadata (
  job_id TEXT PRIMARY KEY,
  completeness_score REAL NOT NULL,
  source_reliability_score REAL NOT NULL,
  freshness_score REAL NOT NULL,
  overall_quality_score REAL NOT NULL,
  is_canonical INTEGER NOT NULL DEFAULT 1,
  duplicate_count INTEGER NOT NULL DEFAULT 0,
  updated_at TEXT NOT NULL
);`,
}

// Migrate applies the schema and records its version in PRAGMA user_version.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if v >= 1 {
		return tx.Commit()
	}

	for _, stmt := range sqliteSchemaV1 {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}

const sqliteInsertRelationship = `
INSERT INTO job_duplicates (pair_key, ` + relationshipColumns + `, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (pair_key) DO UPDATE SET
  canonical_job_id = excluded.canonical_job_id,
  duplicate_job_id = excluded.duplicate_job_id,
  title_similarity = excluded.title_similarity,
  company_similarity = excluded.company_similarity,
  location_similarity = excluded.location_similarity,
  description_similarity = excluded.description_similarity,
  overall_similarity = excluded.overall_similarity,
  confidence_level = excluded.confidence_level,
  detection_method = excluded.detection_method,
  manually_confirmed = excluded.manually_confirmed,
  confirmed_by = excluded.confirmed_by,
  confirmed_at = excluded.confirmed_at,
  updated_at = excluded.updated_at`

const sqliteUpsertDetected = sqliteInsertRelationship + `
WHERE job_duplicates.manually_confirmed = 0`

const sqliteUpsertQuality = `
INSERT INTO job_quality_metadata (job_id, completeness_score, source_reliability_score,
  freshness_score, overall_quality_score, is_canonical, duplicate_count, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (job_id) DO UPDATE SET
  completeness_score = excluded.completeness_score,
  source_reliability_score = excluded.source_reliability_score,
  freshness_score = excluded.freshness_score,
  overall_quality_score = excluded.overall_quality_score,
  is_canonical = excluded.is_canonical,
  duplicate_count = excluded.duplicate_count,
  updated_at = excluded.updated_at`

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func sqliteRelationshipArgs(r models.DuplicateRelationship) []any {
	confirmedAt := ""
	if r.ConfirmedAt != nil {
		confirmedAt = formatTime(*r.ConfirmedAt)
	}
	return []any{
		r.Key(), r.CanonicalJobID, r.DuplicateJobID,
		r.TitleSimilarity, r.CompanySimilarity, r.LocationSimilarity, r.DescriptionSimilarity,
		r.OverallSimilarity, string(r.ConfidenceLevel), string(r.DetectionMethod),
		r.ManuallyConfirmed, r.ConfirmedBy, confirmedAt, formatTime(time.Now()),
	}
}

func sqliteQualityArgs(q models.QualityMetadata) []any {
	updated := q.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return []any{
		q.JobID, q.CompletenessScore, q.SourceReliabilityScore, q.FreshnessScore,
		q.OverallQualityScore, q.IsCanonical, q.DuplicateCount, formatTime(updated),
	}
}

// WriteBatch writes quality rows and relationships in one transaction.
func (s *SQLiteStore) WriteBatch(ctx context.Context, quality []models.QualityMetadata, rels []models.DuplicateRelationship) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range quality {
		if _, err := tx.ExecContext(ctx, sqliteUpsertQuality, sqliteQualityArgs(q)...); err != nil {
			return fmt.Errorf("failed to upsert quality for %s: %w", q.JobID, err)
		}
	}
	for _, r := range rels {
		if _, err := tx.ExecContext(ctx, sqliteUpsertDetected, sqliteRelationshipArgs(r)...); err != nil {
			return fmt.Errorf("failed to upsert relationship %s: %w", r.Key(), err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) UpsertRelationships(ctx context.Context, rels []models.DuplicateRelationship) error {
	return s.WriteBatch(ctx, nil, rels)
}

func (s *SQLiteStore) UpsertQuality(ctx context.Context, rows []models.QualityMetadata) error {
	return s.WriteBatch(ctx, rows, nil)
}

func (s *SQLiteStore) ReplaceRelationship(ctx context.Context, rel models.DuplicateRelationship) error {
	if _, err := s.db.ExecContext(ctx, sqliteInsertRelationship, sqliteRelationshipArgs(rel)...); err != nil {
		return fmt.Errorf("failed to replace relationship: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRelationship(row rowScanner) (models.DuplicateRelationship, error) {
	var (
		r           models.DuplicateRelationship
		level       string
		method      string
		confirmedAt string
	)
	err := row.Scan(&r.CanonicalJobID, &r.DuplicateJobID,
		&r.TitleSimilarity, &r.CompanySimilarity, &r.LocationSimilarity, &r.DescriptionSimilarity,
		&r.OverallSimilarity, &level, &method, &r.ManuallyConfirmed, &r.ConfirmedBy, &confirmedAt)
	if err != nil {
		return r, err
	}
	r.ConfidenceLevel = models.ConfidenceLevel(level)
	r.DetectionMethod = models.DetectionMethod(method)

	if confirmedAt != "" {
		t, err := parseTime(confirmedAt)
		if err != nil {
			return r, fmt.Errorf("failed to parse confirmed_at: %w", err)
		}
		r.ConfirmedAt = &t
	}
	return r, nil
}

func (s *SQLiteStore) GetRelationshipsFor(ctx context.Context, jobID string) ([]models.DuplicateRelationship, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+relationshipColumns+`
		 FROM job_duplicates
		 WHERE canonical_job_id = ? OR duplicate_job_id = ?
		 ORDER BY pair_key`,
		jobID, jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var out []models.DuplicateRelationship
	for rows.Next() {
		r, err := scanSQLiteRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteRelationship(ctx context.Context, canonicalID, duplicateID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_duplicates WHERE pair_key = ?`,
		models.PairKey(canonicalID, duplicateID))
	if err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ConfirmRelationship(ctx context.Context, canonicalID, duplicateID, confirmedBy string, at time.Time) (models.DuplicateRelationship, error) {
	key := models.PairKey(canonicalID, duplicateID)
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_duplicates
		 SET manually_confirmed = 1, confirmed_by = ?, confirmed_at = ?, updated_at = ?
		 WHERE pair_key = ?`,
		confirmedBy, formatTime(at), formatTime(time.Now()), key,
	)
	if err != nil {
		return models.DuplicateRelationship{}, fmt.Errorf("failed to confirm relationship: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.DuplicateRelationship{}, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+relationshipColumns+` FROM job_duplicates WHERE pair_key = ?`, key)
	r, err := scanSQLiteRelationship(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

// sqliteMaxVars keeps IN lists under SQLite's bound-variable limit.
const sqliteMaxVars = 500

func (s *SQLiteStore) ListCanonicalJobIDs(ctx context.Context, jobIDs []string) ([]string, error) {
	duplicates := make(map[string]bool)

	for start := 0; start < len(jobIDs); start += sqliteMaxVars {
		end := start + sqliteMaxVars
		if end > len(jobIDs) {
			end = len(jobIDs)
		}
		chunk := jobIDs[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := s.db.QueryContext(ctx,
			`SELECT DISTINCT duplicate_job_id FROM job_duplicates WHERE duplicate_job_id IN (`+placeholders+`)`,
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query duplicate ids: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			duplicates[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return filterCanonical(jobIDs, duplicates), nil
}

func (s *SQLiteStore) GetQuality(ctx context.Context, jobID string) (models.QualityMetadata, error) {
	var (
		q       models.QualityMetadata
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id, completeness_score, source_reliability_score, freshness_score,
		        overall_quality_score, is_canonical, duplicate_count, updated_at
		 FROM job_quality_metadata WHERE job_id = ?`,
		jobID,
	).Scan(&q.JobID, &q.CompletenessScore, &q.SourceReliabilityScore, &q.FreshnessScore,
		&q.OverallQualityScore, &q.IsCanonical, &q.DuplicateCount, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return q, ErrNotFound
	}
	if err != nil {
		return q, fmt.Errorf("failed to get quality: %w", err)
	}

	if q.UpdatedAt, err = parseTime(updated); err != nil {
		return q, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return q, nil
}

func (s *SQLiteStore) UpdateCanonicalState(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE job_quality_metadata SET
		   is_canonical = NOT EXISTS (SELECT 1 FROM job_duplicates WHERE duplicate_job_id = ?),
		   duplicate_count = (SELECT COUNT(*) FROM job_duplicates WHERE canonical_job_id = ?),
		   updated_at = ?
		 WHERE job_id = ?`,
		jobID, jobID, formatTime(time.Now()), jobID,
	)
	if err != nil {
		return fmt.Errorf("failed to update canonical state: %w", err)
	}
	return nil
}

// SaveJobs upserts job records by id.
func (s *SQLiteStore) SaveJobs(ctx context.Context, jobs []models.JobRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, j := range jobs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (id, title, company, location, description, url, salary_min, salary_max,
			   job_type, experience_level, work_arrangement, source, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   title = excluded.title, company = excluded.company, location = excluded.location,
			   description = excluded.description, url = excluded.url,
			   salary_min = excluded.salary_min, salary_max = excluded.salary_max,
			   job_type = excluded.job_type, experience_level = excluded.experience_level,
			   work_arrangement = excluded.work_arrangement, source = excluded.source,
			   created_at = excluded.created_at`,
			j.ID, j.Title, j.Company, j.Location, j.Description, j.URL,
			nullInt(j.SalaryMin), nullInt(j.SalaryMax),
			j.JobType, j.ExperienceLevel, j.WorkArrangement, j.Source, formatTime(j.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to save job %s: %w", j.ID, err)
		}
	}

	return tx.Commit()
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// GetJobs returns every stored job ordered by id.
func (s *SQLiteStore) GetJobs(ctx context.Context) ([]models.JobRecord, error) {
	rows, err := s.db.QueryContext(ctx,
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
			j                    models.JobRecord
			salaryMin, salaryMax sql.NullInt64
			created              string
		)
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.Description, &j.URL,
			&salaryMin, &salaryMax, &j.JobType, &j.ExperienceLevel, &j.WorkArrangement, &j.Source, &created); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if salaryMin.Valid {
			j.SalaryMin = models.IntPtr(int(salaryMin.Int64))
		}
		if salaryMax.Valid {
			j.SalaryMax = models.IntPtr(int(salaryMax.Int64))
		}
		if j.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("failed to parse created_at for %s: %w", j.ID, err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
