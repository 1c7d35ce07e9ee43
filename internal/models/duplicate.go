package models

import "time"

// ConfidenceLevel buckets an overall similarity score.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceNone   ConfidenceLevel = "none"
)

// DetectionMethod records how a relationship was established.
type DetectionMethod string

const (
	MethodURLMatch   DetectionMethod = "url_match"
	MethodFuzzyMatch DetectionMethod = "fuzzy_match"
	MethodManual     DetectionMethod = "manual"
)

// DuplicateRelationship links a duplicate posting to the posting shown in its place.
type DuplicateRelationship struct {
	CanonicalJobID        string          `json:"canonical_job_id"`
	DuplicateJobID        string          `json:"duplicate_job_id"`
	TitleSimilarity       float64         `json:"title_similarity"`
	CompanySimilarity     float64         `json:"company_similarity"`
	LocationSimilarity    float64         `json:"location_similarity"`
	DescriptionSimilarity float64         `json:"description_similarity"`
	OverallSimilarity     float64         `json:"overall_similarity"`
	ConfidenceLevel       ConfidenceLevel `json:"confidence_level"`
	DetectionMethod       DetectionMethod `json:"detection_method"`
	ManuallyConfirmed     bool            `json:"manually_confirmed"`
	ConfirmedBy           string          `json:"confirmed_by,omitempty"`
	ConfirmedAt           *time.Time      `json:"confirmed_at,omitempty"`
}

// Key returns the unordered pair identity of the relationship.
func (r DuplicateRelationship) Key() string {
	return PairKey(r.CanonicalJobID, r.DuplicateJobID)
}

// Involves reports whether jobID is either side of the relationship.
func (r DuplicateRelationship) Involves(jobID string) bool {
	return r.CanonicalJobID == jobID || r.DuplicateJobID == jobID
}

// PairKey identifies an unordered pair of job ids.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// NewManualRelationship builds a user override. It always wins over detection.
func NewManualRelationship(canonicalID, duplicateID, confirmedBy string, at time.Time) DuplicateRelationship {
	at = at.UTC()
	return DuplicateRelationship{
		CanonicalJobID:    canonicalID,
		DuplicateJobID:    duplicateID,
		OverallSimilarity: 100,
		ConfidenceLevel:   ConfidenceHigh,
		DetectionMethod:   MethodManual,
		ManuallyConfirmed: true,
		ConfirmedBy:       confirmedBy,
		ConfirmedAt:       &at,
	}
}

// QualityMetadata is the per-job score used to rank duplicates.
type QualityMetadata struct {
	JobID                  string    `json:"job_id"`
	CompletenessScore      float64   `json:"completeness_score"`
	SourceReliabilityScore float64   `json:"source_reliability_score"`
	FreshnessScore         float64   `json:"freshness_score"`
	OverallQualityScore    float64   `json:"overall_quality_score"`
	IsCanonical            bool      `json:"is_canonical"`
	DuplicateCount         int       `json:"duplicate_count"`
	UpdatedAt              time.Time `json:"updated_at"`
}
