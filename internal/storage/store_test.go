package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-dedup-go/internal/models"
)

func detected(canonical, duplicate string, overall float64) models.DuplicateRelationship {
	return models.DuplicateRelationship{
		CanonicalJobID:    canonical,
		DuplicateJobID:    duplicate,
		TitleSimilarity:   overall,
		OverallSimilarity: overall,
		ConfidenceLevel:   models.ConfidenceHigh,
		DetectionMethod:   models.MethodFuzzyMatch,
	}
}

// runStoreContract exercises the behaviour every Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("upsert and query", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertRelationships(ctx, []models.DuplicateRelationship{
			detected("a", "b", 90),
			detected("a", "c", 75),
		}))

		rels, err := s.GetRelationshipsFor(ctx, "a")
		require.NoError(t, err)
		assert.Len(t, rels, 2)

		rels, err = s.GetRelationshipsFor(ctx, "b")
		require.NoError(t, err)
		require.Len(t, rels, 1)
		assert.Equal(t, "a", rels[0].CanonicalJobID)
		assert.Equal(t, 90.0, rels[0].OverallSimilarity)

		rels, err = s.GetRelationshipsFor(ctx, "z")
		require.NoError(t, err)
		assert.Empty(t, rels)
	})

	t.Run("pair identity is unordered", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertRelationships(ctx, []models.DuplicateRelationship{detected("a", "b", 90)}))
		require.NoError(t, s.UpsertRelationships(ctx, []models.DuplicateRelationship{detected("b", "a", 80)}))

		rels, err := s.GetRelationshipsFor(ctx, "a")
		require.NoError(t, err)
		require.Len(t, rels, 1)
		assert.Equal(t, "b", rels[0].CanonicalJobID)
		assert.Equal(t, 80.0, rels[0].OverallSimilarity)
	})

	t.Run("detected upsert keeps confirmed relationship", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertRelationships(ctx, []models.DuplicateRelationship{detected("a", "b", 90)}))

		at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		rel, err := s.ConfirmRelationship(ctx, "b", "a", "reviewer", at)
		require.NoError(t, err)
		assert.True(t, rel.ManuallyConfirmed)
		assert.Equal(t, "reviewer", rel.ConfirmedBy)
		require.NotNil(t, rel.ConfirmedAt)
		assert.True(t, rel.ConfirmedAt.Equal(at))

		require.NoError(t, s.UpsertRelationships(ctx, []models.DuplicateRelationship{detected("b", "a", 55)}))

		rels, err := s.GetRelationshipsFor(ctx, "a")
		require.NoError(t, err)
		require.Len(t, rels, 1)
		assert.Equal(t, "a", rels[0].CanonicalJobID)
		assert.Equal(t, 90.0, rels[0].OverallSimilarity)
		assert.True(t, rels[0].ManuallyConfirmed)
	})

	t.Run("replace overwrites any orientation", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertRelationships(ctx, []models.DuplicateRelationship{detected("a", "b", 90)}))

		manual := models.NewManualRelationship("b", "a", "alice", time.Now())
		require.NoError(t, s.ReplaceRelationship(ctx, manual))

		rels, err := s.GetRelationshipsFor(ctx, "b")
		require.NoError(t, err)
		require.Len(t, rels, 1)
		assert.Equal(t, "b", rels[0].CanonicalJobID)
		assert.Equal(t, "a", rels[0].DuplicateJobID)
		assert.Equal(t, models.MethodManual, rels[0].DetectionMethod)
		assert.Equal(t, "alice", rels[0].ConfirmedBy)
	})

	t.Run("list canonical", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertRelationships(ctx, []models.DuplicateRelationship{
			detected("a", "b", 90),
			detected("c", "d", 90),
		}))

		ids, err := s.ListCanonicalJobIDs(ctx, []string{"d", "a", "b", "e", "a", "c"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "e", "c"}, ids)

		ids, err = s.ListCanonicalJobIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.UpsertRelationships(ctx, []models.DuplicateRelationship{detected("a", "b", 90)}))

		require.NoError(t, s.DeleteRelationship(ctx, "a", "b"))
		assert.ErrorIs(t, s.DeleteRelationship(ctx, "a", "b"), ErrNotFound)

		_, err := s.ConfirmRelationship(ctx, "a", "b", "x", time.Now())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("quality and canonical state", func(t *testing.T) {
		s := newStore(t)
		now := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.UpsertQuality(ctx, []models.QualityMetadata{
			{JobID: "a", CompletenessScore: 90, SourceReliabilityScore: 100, FreshnessScore: 100, OverallQualityScore: 95, IsCanonical: true, UpdatedAt: now},
			{JobID: "b", CompletenessScore: 50, SourceReliabilityScore: 85, FreshnessScore: 75, OverallQualityScore: 65, IsCanonical: true, UpdatedAt: now},
		}))
		require.NoError(t, s.UpsertRelationships(ctx, []models.DuplicateRelationship{detected("a", "b", 90)}))

		require.NoError(t, s.UpdateCanonicalState(ctx, "a"))
		require.NoError(t, s.UpdateCanonicalState(ctx, "b"))
		require.NoError(t, s.UpdateCanonicalState(ctx, "missing"))

		qa, err := s.GetQuality(ctx, "a")
		require.NoError(t, err)
		assert.True(t, qa.IsCanonical)
		assert.Equal(t, 1, qa.DuplicateCount)
		assert.Equal(t, 95.0, qa.OverallQualityScore)

		qb, err := s.GetQuality(ctx, "b")
		require.NoError(t, err)
		assert.False(t, qb.IsCanonical)
		assert.Zero(t, qb.DuplicateCount)

		_, err = s.GetQuality(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("batch writer", func(t *testing.T) {
		s := newStore(t)
		bw, ok := s.(BatchWriter)
		require.True(t, ok)

		require.NoError(t, bw.WriteBatch(ctx,
			[]models.QualityMetadata{{JobID: "a", OverallQualityScore: 80, IsCanonical: true, DuplicateCount: 1}},
			[]models.DuplicateRelationship{detected("a", "b", 88)},
		))

		q, err := s.GetQuality(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1, q.DuplicateCount)

		rels, err := s.GetRelationshipsFor(ctx, "b")
		require.NoError(t, err)
		assert.Len(t, rels, 1)
	})

	t.Run("jobs round trip", func(t *testing.T) {
		s := newStore(t)
		w, ok := s.(JobWriter)
		require.True(t, ok)
		r, ok := s.(JobReader)
		require.True(t, ok)

		created := time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)
		jobs := []models.JobRecord{
			{ID: "j1", Title: "Go Engineer", Company: "Acme", SalaryMin: models.IntPtr(100), Source: models.SourceIndeed, CreatedAt: created},
			{ID: "j2", Title: "SRE", Company: "Initech"},
		}
		require.NoError(t, w.SaveJobs(ctx, jobs))
		require.NoError(t, w.SaveJobs(ctx, []models.JobRecord{{ID: "j2", Title: "Site Reliability Engineer"}}))

		got, err := r.GetJobs(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "j1", got[0].ID)
		require.NotNil(t, got[0].SalaryMin)
		assert.Equal(t, 100, *got[0].SalaryMin)
		assert.Nil(t, got[0].SalaryMax)
		assert.True(t, got[0].CreatedAt.Equal(created))
		assert.Equal(t, "Site Reliability Engineer", got[1].Title)
		assert.True(t, got[1].CreatedAt.IsZero())
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "dedup.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteStore_MigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dedup.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.UpsertRelationships(ctx, []models.DuplicateRelationship{detected("a", "b", 90)}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	rels, err := s.GetRelationshipsFor(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, rels, 1)
}
