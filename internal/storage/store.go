package storage

import (
	"context"
	"errors"
	"time"

	"job-dedup-go/internal/models"
)

// ErrNotFound is returned when a relationship or quality row does not exist.
var ErrNotFound = errors.New("not found")

// Store persists duplicate relationships and per-job quality metadata.
//
// A relationship is identified by its unordered job pair. Detected upserts
// never overwrite a manually confirmed relationship.
type Store interface {
	UpsertRelationships(ctx context.Context, rels []models.DuplicateRelationship) error
	GetRelationshipsFor(ctx context.Context, jobID string) ([]models.DuplicateRelationship, error)
	DeleteRelationship(ctx context.Context, canonicalID, duplicateID string) error
	// ReplaceRelationship writes rel whatever exists for its pair.
	ReplaceRelationship(ctx context.Context, rel models.DuplicateRelationship) error
	ConfirmRelationship(ctx context.Context, canonicalID, duplicateID, confirmedBy string, at time.Time) (models.DuplicateRelationship, error)
	// ListCanonicalJobIDs keeps the ids, in input order, that are never the
	// duplicate side of a relationship.
	ListCanonicalJobIDs(ctx context.Context, jobIDs []string) ([]string, error)

	UpsertQuality(ctx context.Context, rows []models.QualityMetadata) error
	GetQuality(ctx context.Context, jobID string) (models.QualityMetadata, error)
	// UpdateCanonicalState recomputes IsCanonical and DuplicateCount of a job
	// from its stored relationships. Jobs without a quality row are ignored.
	UpdateCanonicalState(ctx context.Context, jobID string) error

	Close() error
}

// BatchWriter is implemented by stores that can write one batch atomically.
type BatchWriter interface {
	WriteBatch(ctx context.Context, quality []models.QualityMetadata, rels []models.DuplicateRelationship) error
}

// JobReader is implemented by stores that also hold the job records.
type JobReader interface {
	GetJobs(ctx context.Context) ([]models.JobRecord, error)
}

// JobWriter is implemented by stores that accept imported job records.
type JobWriter interface {
	SaveJobs(ctx context.Context, jobs []models.JobRecord) error
}

// canonicalState derives the canonical flag and duplicate count of jobID.
func canonicalState(jobID string, rels []models.DuplicateRelationship) (bool, int) {
	isCanonical := true
	count := 0
	for _, r := range rels {
		if r.DuplicateJobID == jobID {
			isCanonical = false
		}
		if r.CanonicalJobID == jobID {
			count++
		}
	}
	return isCanonical, count
}

// filterCanonical keeps ids not in duplicates, in order, without repeats.
func filterCanonical(jobIDs []string, duplicates map[string]bool) []string {
	out := make([]string, 0, len(jobIDs))
	seen := make(map[string]bool, len(jobIDs))
	for _, id := range jobIDs {
		if seen[id] || duplicates[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
