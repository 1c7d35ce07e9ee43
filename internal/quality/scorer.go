// Package quality rates how useful a single job record is to show, so that
// the best copy among duplicates can be kept.
package quality

import (
	"strings"
	"time"
	"unicode/utf8"

	"job-dedup-go/internal/models"
	"job-dedup-go/internal/similarity"
)

// Overall score weights.
const (
	CompletenessWeight = 0.5
	ReliabilityWeight  = 0.3
	FreshnessWeight    = 0.2
)

// MinDescriptionLength is the plain-text length a description must exceed to count.
const MinDescriptionLength = 100

// criticalFields is the size of the completeness rubric.
const criticalFields = 10

// DefaultReliability applies to sources missing from the table.
const DefaultReliability = 70.0

// DefaultReliabilityTable ranks the known sources.
func DefaultReliabilityTable() map[string]float64 {
	return map[string]float64{
		models.SourceManual:   100,
		models.SourceLinkedIn: 90,
		models.SourceIndeed:   85,
	}
}

// Scorer computes QualityMetadata. The zero value is not usable; use NewScorer.
type Scorer struct {
	reliability        map[string]float64
	defaultReliability float64
	now                func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithReliabilityTable replaces the source reliability lookup. Keys are
// matched case-insensitively.
func WithReliabilityTable(table map[string]float64, fallback float64) Option {
	return func(s *Scorer) {
		s.reliability = make(map[string]float64, len(table))
		for k, v := range table {
			s.reliability[strings.ToLower(strings.TrimSpace(k))] = v
		}
		s.defaultReliability = fallback
	}
}

// WithClock sets the time source used for freshness.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		s.now = now
	}
}

// NewScorer creates a Scorer with the default table and the wall clock.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		reliability:        DefaultReliabilityTable(),
		defaultReliability: DefaultReliability,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScoreJob rates a job. IsCanonical and DuplicateCount are left for the
// detector to fill in.
func (s *Scorer) ScoreJob(job models.JobRecord) models.QualityMetadata {
	now := s.now()
	completeness := Completeness(job)
	reliability := s.Reliability(job.Source)
	freshness := Freshness(job.CreatedAt, now)

	return models.QualityMetadata{
		JobID:                  job.ID,
		CompletenessScore:      completeness,
		SourceReliabilityScore: reliability,
		FreshnessScore:         freshness,
		OverallQualityScore: CompletenessWeight*completeness +
			ReliabilityWeight*reliability +
			FreshnessWeight*freshness,
		IsCanonical: true,
		UpdatedAt:   now.UTC(),
	}
}

// Reliability looks up the source in the reliability table.
func (s *Scorer) Reliability(source string) float64 {
	if v, ok := s.reliability[strings.ToLower(strings.TrimSpace(source))]; ok {
		return v
	}
	return s.defaultReliability
}

// Completeness is the share of the ten critical fields that are present, times 100.
func Completeness(job models.JobRecord) float64 {
	present := []bool{
		hasText(job.Title),
		hasText(job.Company),
		hasText(job.Location),
		utf8.RuneCountInString(similarity.PlainText(job.Description)) > MinDescriptionLength,
		hasText(job.URL),
		job.SalaryMin != nil && *job.SalaryMin > 0,
		job.SalaryMax != nil && *job.SalaryMax > 0,
		hasText(job.JobType),
		hasText(job.ExperienceLevel),
		hasText(job.WorkArrangement) &&
			!strings.EqualFold(strings.TrimSpace(job.WorkArrangement), models.WorkArrangementUnknown),
	}

	count := 0
	for _, ok := range present {
		if ok {
			count++
		}
	}
	return 100 * float64(count) / criticalFields
}

// Freshness steps down with the age of the posting. A missing timestamp is
// treated as stale; a timestamp in the future as fresh.
func Freshness(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 25
	}

	age := now.Sub(createdAt)
	switch {
	case age <= 7*24*time.Hour:
		return 100
	case age <= 30*24*time.Hour:
		return 75
	case age <= 90*24*time.Hour:
		return 50
	default:
		return 25
	}
}

func hasText(s string) bool {
	return strings.TrimSpace(s) != ""
}
