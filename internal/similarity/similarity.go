// Package similarity scores pairs of strings on a 0-100 scale and combines
// per-field scores into one job-pair score. Every function here is pure.
package similarity

import (
	"fmt"
	"math"
)

// Algorithm names a string similarity measure.
type Algorithm string

const (
	AlgorithmLevenshtein Algorithm = "levenshtein"
	AlgorithmJaccard     Algorithm = "jaccard"
	AlgorithmCosine      Algorithm = "cosine"
	AlgorithmHybrid      Algorithm = "hybrid"
)

// Field names a compared job field.
type Field string

const (
	FieldTitle       Field = "title"
	FieldCompany     Field = "company"
	FieldLocation    Field = "location"
	FieldDescription Field = "description"
)

// Similarity dispatches to the named algorithm.
func Similarity(alg Algorithm, a, b string) (float64, error) {
	switch alg {
	case AlgorithmLevenshtein:
		return Levenshtein(a, b), nil
	case AlgorithmJaccard:
		return Jaccard(a, b), nil
	case AlgorithmCosine:
		return Cosine(a, b), nil
	case AlgorithmHybrid:
		return Hybrid(a, b), nil
	default:
		return 0, fmt.Errorf("unknown similarity algorithm %q", alg)
	}
}

// Hybrid is the best of the three algorithms for the pair.
func Hybrid(a, b string) float64 {
	return math.Max(Levenshtein(a, b), math.Max(Jaccard(a, b), Cosine(a, b)))
}

// FieldSimilarity scores one job field with the algorithm suited to it.
// Descriptions are compared as plain text and skip Levenshtein, which is
// quadratic on long inputs.
func FieldSimilarity(field Field, a, b string) (float64, error) {
	switch field {
	case FieldTitle, FieldCompany, FieldLocation:
		return Hybrid(a, b), nil
	case FieldDescription:
		return DescriptionSimilarity(PlainText(a), PlainText(b)), nil
	default:
		return 0, fmt.Errorf("unknown job field %q", field)
	}
}

// DescriptionSimilarity compares two descriptions already reduced by PlainText.
func DescriptionSimilarity(a, b string) float64 {
	return math.Max(Jaccard(a, b), Cosine(a, b))
}

// FieldScores holds the per-field scores of one job pair.
type FieldScores struct {
	Title       float64 `json:"title"`
	Company     float64 `json:"company"`
	Location    float64 `json:"location"`
	Description float64 `json:"description"`
}

// Weights are the per-field contributions to the overall pair score.
type Weights struct {
	Title       float64 `json:"title" mapstructure:"title" yaml:"title" validate:"gte=0,lte=1"`
	Company     float64 `json:"company" mapstructure:"company" yaml:"company" validate:"gte=0,lte=1"`
	Location    float64 `json:"location" mapstructure:"location" yaml:"location" validate:"gte=0,lte=1"`
	Description float64 `json:"description" mapstructure:"description" yaml:"description" validate:"gte=0,lte=1"`
}

// WeightTolerance is how far the weight sum may drift from 1.0.
const WeightTolerance = 1e-6

// DefaultWeights favour title and description, the most discriminative fields.
func DefaultWeights() Weights {
	return Weights{
		Title:       0.30,
		Company:     0.25,
		Location:    0.15,
		Description: 0.30,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Title + w.Company + w.Location + w.Description
}

// Validate checks that no weight is negative and that they sum to 1.0.
func (w Weights) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"title", w.Title},
		{"company", w.Company},
		{"location", w.Location},
		{"description", w.Description},
	}
	for _, f := range fields {
		if f.value < 0 {
			return fmt.Errorf("%s weight cannot be negative", f.name)
		}
	}

	if math.Abs(w.Sum()-1.0) > WeightTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %.6f", w.Sum())
	}

	return nil
}

// Combine returns the weighted overall score, clamped to [0,100].
func (w Weights) Combine(s FieldScores) float64 {
	return clamp(w.Title*s.Title +
		w.Company*s.Company +
		w.Location*s.Location +
		w.Description*s.Description)
}
