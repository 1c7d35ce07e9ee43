package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	supabase "github.com/nedpals/supabase-go"

	"job-dedup-go/internal/models"
)

const (
	jobsTable          = "jobs"
	relationshipsTable = "job_duplicates"
	qualityTable       = "job_quality_metadata"
)

// SupabaseStore uses the nedpals/supabase-go SDK to persist relationships,
// quality rows and jobs over PostgREST. Writes are not transactional.
type SupabaseStore struct {
	client *supabase.Client
}

// supabaseRelationship is the row shape of job_duplicates.
type supabaseRelationship struct {
	PairKey string `json:"pair_key"`
	models.DuplicateRelationship
	UpdatedAt time.Time `json:"updated_at"`
}

func toRow(r models.DuplicateRelationship) supabaseRelationship {
	return supabaseRelationship{PairKey: r.Key(), DuplicateRelationship: r, UpdatedAt: time.Now().UTC()}
}

// NewSupabaseStore creates a SupabaseStore. It reads SUPABASE_URL and SUPABASE_KEY
// from environment variables if empty values are provided.
func NewSupabaseStore(supabaseURL, supabaseKey string) (*SupabaseStore, error) {
	if supabaseURL == "" {
		supabaseURL = os.Getenv("SUPABASE_URL")
	}
	if supabaseKey == "" {
		supabaseKey = os.Getenv("SUPABASE_KEY")
	}
	if supabaseURL == "" || supabaseKey == "" {
		return nil, fmt.Errorf("supabase URL and key must be provided via args or SUPABASE_URL / SUPABASE_KEY env vars")
	}

	client := supabase.CreateClient(supabaseURL, supabaseKey)
	return &SupabaseStore{client: client}, nil
}

// UpsertRelationships skips pairs that are already manually confirmed, then
// upserts the rest in one request.
func (s *SupabaseStore) UpsertRelationships(ctx context.Context, rels []models.DuplicateRelationship) error {
	if len(rels) == 0 {
		return ctx.Err()
	}

	keys := make([]string, len(rels))
	for i, r := range rels {
		keys[i] = r.Key()
	}

	var existing []supabaseRelationship
	err := s.client.DB.From(relationshipsTable).
		Select("pair_key", "manually_confirmed").
		In("pair_key", keys).
		Execute(&existing)
	if err != nil {
		return fmt.Errorf("failed to load existing relationships: %w", err)
	}

	confirmed := make(map[string]bool, len(existing))
	for _, e := range existing {
		if e.ManuallyConfirmed {
			confirmed[e.PairKey] = true
		}
	}

	rows := make([]supabaseRelationship, 0, len(rels))
	for _, r := range rels {
		if !confirmed[r.Key()] {
			rows = append(rows, toRow(r))
		}
	}
	if len(rows) == 0 {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var results []supabaseRelationship
	if err := s.client.DB.From(relationshipsTable).Upsert(rows).Execute(&results); err != nil {
		return fmt.Errorf("failed to upsert relationships: %w", err)
	}
	return nil
}

func (s *SupabaseStore) ReplaceRelationship(ctx context.Context, rel models.DuplicateRelationship) error {
	var results []supabaseRelationship
	if err := s.client.DB.From(relationshipsTable).Upsert(toRow(rel)).Execute(&results); err != nil {
		return fmt.Errorf("failed to replace relationship: %w", err)
	}
	return nil
}

func (s *SupabaseStore) GetRelationshipsFor(ctx context.Context, jobID string) ([]models.DuplicateRelationship, error) {
	seen := make(map[string]bool)
	var out []models.DuplicateRelationship

	for _, column := range []string{"canonical_job_id", "duplicate_job_id"} {
		var rows []supabaseRelationship
		if err := s.client.DB.From(relationshipsTable).Select("*").Eq(column, jobID).Execute(&rows); err != nil {
			return nil, fmt.Errorf("failed to query relationships: %w", err)
		}
		for _, r := range rows {
			if seen[r.PairKey] {
				continue
			}
			seen[r.PairKey] = true
			out = append(out, r.DuplicateRelationship)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (s *SupabaseStore) findRelationship(key string) (supabaseRelationship, error) {
	var rows []supabaseRelationship
	if err := s.client.DB.From(relationshipsTable).Select("*").Eq("pair_key", key).Execute(&rows); err != nil {
		return supabaseRelationship{}, fmt.Errorf("failed to query relationship: %w", err)
	}
	if len(rows) == 0 {
		return supabaseRelationship{}, ErrNotFound
	}
	return rows[0], nil
}

func (s *SupabaseStore) DeleteRelationship(ctx context.Context, canonicalID, duplicateID string) error {
	key := models.PairKey(canonicalID, duplicateID)
	if _, err := s.findRelationship(key); err != nil {
		return err
	}

	var results []supabaseRelationship
	if err := s.client.DB.From(relationshipsTable).Delete().Eq("pair_key", key).Execute(&results); err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}
	return nil
}

func (s *SupabaseStore) ConfirmRelationship(ctx context.Context, canonicalID, duplicateID, confirmedBy string, at time.Time) (models.DuplicateRelationship, error) {
	row, err := s.findRelationship(models.PairKey(canonicalID, duplicateID))
	if err != nil {
		return models.DuplicateRelationship{}, err
	}

	at = at.UTC()
	row.ManuallyConfirmed = true
	row.ConfirmedBy = confirmedBy
	row.ConfirmedAt = &at
	row.UpdatedAt = time.Now().UTC()

	var results []supabaseRelationship
	if err := s.client.DB.From(relationshipsTable).Update(row).Eq("pair_key", row.PairKey).Execute(&results); err != nil {
		return models.DuplicateRelationship{}, fmt.Errorf("failed to confirm relationship: %w", err)
	}
	return row.DuplicateRelationship, nil
}

func (s *SupabaseStore) ListCanonicalJobIDs(ctx context.Context, jobIDs []string) ([]string, error) {
	duplicates := make(map[string]bool)
	if len(jobIDs) > 0 {
		var rows []supabaseRelationship
		err := s.client.DB.From(relationshipsTable).
			Select("pair_key", "duplicate_job_id").
			In("duplicate_job_id", jobIDs).
			Execute(&rows)
		if err != nil {
			return nil, fmt.Errorf("failed to query duplicate ids: %w", err)
		}
		for _, r := range rows {
			duplicates[r.DuplicateJobID] = true
		}
	}
	return filterCanonical(jobIDs, duplicates), nil
}

func (s *SupabaseStore) UpsertQuality(ctx context.Context, rows []models.QualityMetadata) error {
	if len(rows) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for i := range rows {
		if rows[i].UpdatedAt.IsZero() {
			rows[i].UpdatedAt = now
		}
	}

	var results []models.QualityMetadata
	if err := s.client.DB.From(qualityTable).Upsert(rows).Execute(&results); err != nil {
		return fmt.Errorf("failed to upsert quality: %w", err)
	}
	return nil
}

func (s *SupabaseStore) GetQuality(ctx context.Context, jobID string) (models.QualityMetadata, error) {
	var rows []models.QualityMetadata
	if err := s.client.DB.From(qualityTable).Select("*").Eq("job_id", jobID).Execute(&rows); err != nil {
		return models.QualityMetadata{}, fmt.Errorf("failed to get quality: %w", err)
	}
	if len(rows) == 0 {
		return models.QualityMetadata{}, ErrNotFound
	}
	return rows[0], nil
}

func (s *SupabaseStore) UpdateCanonicalState(ctx context.Context, jobID string) error {
	q, err := s.GetQuality(ctx, jobID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	rels, err := s.GetRelationshipsFor(ctx, jobID)
	if err != nil {
		return err
	}

	q.IsCanonical, q.DuplicateCount = canonicalState(jobID, rels)
	q.UpdatedAt = time.Now().UTC()

	var results []models.QualityMetadata
	if err := s.client.DB.From(qualityTable).Update(q).Eq("job_id", jobID).Execute(&results); err != nil {
		return fmt.Errorf("failed to update canonical state: %w", err)
	}
	return nil
}

// SaveJobs upserts multiple jobs in a single request.
func (s *SupabaseStore) SaveJobs(ctx context.Context, jobs []models.JobRecord) error {
	if len(jobs) == 0 {
		return nil
	}

	var results []models.JobRecord
	if err := s.client.DB.From(jobsTable).Upsert(jobs).Execute(&results); err != nil {
		return fmt.Errorf("failed to save jobs: %w", err)
	}
	return nil
}

func (s *SupabaseStore) GetJobs(ctx context.Context) ([]models.JobRecord, error) {
	var res []models.JobRecord
	err := s.client.DB.From(jobsTable).Select("*").Execute(&res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SupabaseStore) Close() error {
	return nil
}
