package dedup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-dedup-go/internal/models"
	"job-dedup-go/internal/quality"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDetector(t *testing.T, mutate func(*Options)) *Detector {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	d, err := NewDetector(opts, quality.NewScorer(quality.WithClock(func() time.Time { return fixedNow })), nil)
	require.NoError(t, err)
	return d
}

func TestDetect_FuzzyTitleAndCompany(t *testing.T) {
	d := newTestDetector(t, nil)

	det, err := d.Detect(context.Background(), []models.JobRecord{
		{ID: "a", Title: "Senior Software Engineer", Company: "Acme Corp"},
		{ID: "b", Title: "Sr Software Engineer", Company: "Acme Corporation"},
	})
	require.NoError(t, err)
	require.Len(t, det.Relationships, 1)

	rel := det.Relationships[0]
	assert.Equal(t, models.MethodFuzzyMatch, rel.DetectionMethod)
	assert.Equal(t, models.ConfidenceHigh, rel.ConfidenceLevel)
	assert.GreaterOrEqual(t, rel.OverallSimilarity, 85.0)
	assert.InDelta(t, 87.18, rel.TitleSimilarity, 0.01)
	assert.InDelta(t, 77.17, rel.CompanySimilarity, 0.01)
	assert.Equal(t, "a", rel.CanonicalJobID)
	assert.Equal(t, "b", rel.DuplicateJobID)
	assert.Equal(t, 1, det.Blocks)
	assert.Equal(t, 1, det.Comparisons)
}

func TestDetect_SameURL(t *testing.T) {
	d := newTestDetector(t, nil)

	det, err := d.Detect(context.Background(), []models.JobRecord{
		{ID: "a", Title: "Backend Developer", Company: "X", URL: "https://x.com/jobs/123"},
		{ID: "b", Title: "Office Manager", Company: "X", URL: "https://X.com/jobs/123/?utm_source=mail"},
	})
	require.NoError(t, err)
	require.Len(t, det.Relationships, 1)

	rel := det.Relationships[0]
	assert.Equal(t, 100.0, rel.OverallSimilarity)
	assert.Equal(t, models.MethodURLMatch, rel.DetectionMethod)
	assert.Equal(t, models.ConfidenceHigh, rel.ConfidenceLevel)
}

func TestDetect_Blocking(t *testing.T) {
	d := newTestDetector(t, nil)
	job := func(id, company string) models.JobRecord {
		return models.JobRecord{
			ID:          id,
			Title:       "Data Engineer",
			Company:     company,
			Location:    "Berlin",
			Description: "Build and run the data platform.",
		}
	}

	t.Run("suffix stripped", func(t *testing.T) {
		det, err := d.Detect(context.Background(), []models.JobRecord{job("a", "Google Inc"), job("b", "Google")})
		require.NoError(t, err)
		assert.Len(t, det.Relationships, 1)
		assert.Equal(t, 1, det.Comparisons)
	})

	t.Run("different companies never compared", func(t *testing.T) {
		det, err := d.Detect(context.Background(), []models.JobRecord{job("a", "Google"), job("b", "Apple")})
		require.NoError(t, err)
		assert.Empty(t, det.Relationships)
		assert.Equal(t, 0, det.Comparisons)
		assert.Equal(t, 2, det.Blocks)
		assert.Equal(t, []string{"a", "b"}, det.CanonicalIDs)
	})
}

func TestThresholds_Classify(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		score float64
		want  models.ConfidenceLevel
	}{
		{100, models.ConfidenceHigh},
		{85, models.ConfidenceHigh},
		{84.999, models.ConfidenceMedium},
		{70, models.ConfidenceMedium},
		{50, models.ConfidenceLow},
		{49.999, models.ConfidenceNone},
		{0, models.ConfidenceNone},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.score), func(t *testing.T) {
			assert.Equal(t, tt.want, th.Classify(tt.score))
		})
	}
}

func TestDetect_LowThresholdDiscards(t *testing.T) {
	d := newTestDetector(t, func(o *Options) {
		o.Thresholds = Thresholds{High: 100, Medium: 100, Low: 100}
	})

	det, err := d.Detect(context.Background(), []models.JobRecord{
		{ID: "a", Title: "Senior Software Engineer", Company: "Acme"},
		{ID: "b", Title: "Sr Software Engineer", Company: "Acme"},
	})
	require.NoError(t, err)
	assert.Empty(t, det.Relationships)
	assert.True(t, det.Quality["a"].IsCanonical)
	assert.True(t, det.Quality["b"].IsCanonical)
}

func sampleJobs() []models.JobRecord {
	companies := []string{"Acme Corp", "Globex", "Initech LLC", "Umbrella"}
	titles := []string{
		"Senior Software Engineer",
		"Sr Software Engineer",
		"Software Engineer",
		"Product Manager",
		"Senior Product Manager",
	}
	sources := []string{models.SourceLinkedIn, models.SourceIndeed, models.SourceManual, "jsearch"}

	var jobs []models.JobRecord
	for i := 0; i < 40; i++ {
		jobs = append(jobs, models.JobRecord{
			ID:        fmt.Sprintf("job-%02d", i),
			Title:     titles[i%len(titles)],
			Company:   companies[i%len(companies)],
			Location:  "Remote",
			Source:    sources[(i/4)%len(sources)],
			CreatedAt: fixedNow.Add(-time.Duration(i) * 24 * time.Hour),
		})
	}
	return jobs
}

func TestDetect_Deterministic(t *testing.T) {
	jobs := sampleJobs()

	sequential, err := newTestDetector(t, func(o *Options) { o.Workers = 1 }).Detect(context.Background(), jobs)
	require.NoError(t, err)
	require.NotEmpty(t, sequential.Relationships)

	parallel := newTestDetector(t, func(o *Options) { o.Workers = 8 })
	for i := 0; i < 3; i++ {
		det, err := parallel.Detect(context.Background(), jobs)
		require.NoError(t, err)
		assert.Equal(t, sequential.Relationships, det.Relationships)
		assert.Equal(t, sequential.CanonicalIDs, det.CanonicalIDs)
		assert.Equal(t, sequential.Quality, det.Quality)
	}
}

func TestDetect_CanonicalHasHigherQuality(t *testing.T) {
	det, err := newTestDetector(t, nil).Detect(context.Background(), sampleJobs())
	require.NoError(t, err)
	require.NotEmpty(t, det.Relationships)

	for _, rel := range det.Relationships {
		c := det.Quality[rel.CanonicalJobID].OverallQualityScore
		d := det.Quality[rel.DuplicateJobID].OverallQualityScore
		assert.GreaterOrEqual(t, c, d, "%s -> %s", rel.CanonicalJobID, rel.DuplicateJobID)
		assert.NotEqual(t, models.MethodManual, rel.DetectionMethod)
		assert.False(t, rel.ManuallyConfirmed)
	}
}

func TestDetect_QualityBookkeeping(t *testing.T) {
	d := newTestDetector(t, nil)

	det, err := d.Detect(context.Background(), []models.JobRecord{
		{ID: "best", Title: "Go Developer", Company: "Acme", URL: "https://acme.io/1", Source: models.SourceManual},
		{ID: "dup-1", Title: "Go Developer", Company: "Acme", URL: "https://acme.io/1"},
		{ID: "dup-2", Title: "Go Developer", Company: "Acme", URL: "https://acme.io/1?utm_campaign=x"},
	})
	require.NoError(t, err)
	require.Len(t, det.Relationships, 3)

	assert.True(t, det.Quality["best"].IsCanonical)
	assert.Equal(t, 2, det.Quality["best"].DuplicateCount)
	assert.False(t, det.Quality["dup-2"].IsCanonical)
	assert.Equal(t, []string{"best"}, det.CanonicalIDs)
}

func TestDetect_SkipsInvalidRecords(t *testing.T) {
	d := newTestDetector(t, nil)

	det, err := d.Detect(context.Background(), []models.JobRecord{
		{ID: "a", Title: "QA Engineer", Company: "Acme"},
		{ID: "", Title: "QA Engineer", Company: "Acme"},
		{ID: " a ", Title: "QA Engineer", Company: "Acme"},
		{ID: "b", Title: "QA Engineer", Company: "Acme"},
	})
	require.NoError(t, err)

	require.Len(t, det.Skipped, 2)
	assert.Equal(t, 1, det.Skipped[0].Index)
	assert.Equal(t, "missing id", det.Skipped[0].Reason)
	assert.Equal(t, 2, det.Skipped[1].Index)
	assert.Equal(t, "a", det.Skipped[1].JobID)

	require.Len(t, det.Jobs, 2)
	assert.Len(t, det.Relationships, 1)
}

func TestDetect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestDetector(t, nil).Detect(ctx, sampleJobs())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewDetector_RejectsBadOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Thresholds.Low = 90

	_, err := NewDetector(opts, nil, nil)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "thresholds", cfgErr.Field)
}
