package dedup

import (
	"job-dedup-go/internal/models"
	"job-dedup-go/internal/similarity"
)

// Thresholds are the inclusive lower bounds of each confidence level.
type Thresholds struct {
	High   float64 `json:"high" mapstructure:"high" yaml:"high" validate:"gte=0,lte=100"`
	Medium float64 `json:"medium" mapstructure:"medium" yaml:"medium" validate:"gte=0,lte=100"`
	Low    float64 `json:"low" mapstructure:"low" yaml:"low" validate:"gte=0,lte=100"`
}

// DefaultThresholds returns 85 / 70 / 50.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 85, Medium: 70, Low: 50}
}

// Classify buckets an overall score. Scores under Low are ConfidenceNone.
func (t Thresholds) Classify(score float64) models.ConfidenceLevel {
	switch {
	case score >= t.High:
		return models.ConfidenceHigh
	case score >= t.Medium:
		return models.ConfidenceMedium
	case score >= t.Low:
		return models.ConfidenceLow
	default:
		return models.ConfidenceNone
	}
}

// Options is the immutable configuration of one detection run.
type Options struct {
	Weights    similarity.Weights `json:"weights" mapstructure:"weights" yaml:"weights"`
	Thresholds Thresholds         `json:"thresholds" mapstructure:"thresholds" yaml:"thresholds"`

	// BatchSize is the number of jobs persisted per store write.
	BatchSize int `json:"batch_size" mapstructure:"batch_size" yaml:"batch_size" validate:"gte=1"`
	// Workers bounds block-level parallelism. 1 runs blocks sequentially.
	Workers int `json:"workers" mapstructure:"workers" yaml:"workers" validate:"gte=1"`
	// WritesPerSecond paces batch writes. 0 disables pacing.
	WritesPerSecond float64 `json:"writes_per_second" mapstructure:"writes_per_second" yaml:"writes_per_second" validate:"gte=0"`
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Weights:         similarity.DefaultWeights(),
		Thresholds:      DefaultThresholds(),
		BatchSize:       100,
		Workers:         4,
		WritesPerSecond: 0,
	}
}

// Validate rejects weights that do not sum to 1.0, out of range or
// non-monotonic thresholds, and non-positive sizes.
func (o Options) Validate() error {
	if err := o.Weights.Validate(); err != nil {
		return &ConfigError{Field: "weights", Message: "invalid field weights", Cause: err}
	}

	t := o.Thresholds
	for _, v := range []float64{t.High, t.Medium, t.Low} {
		if v < 0 || v > 100 {
			return &ConfigError{Field: "thresholds", Message: "thresholds must be within [0, 100]"}
		}
	}
	if t.Low > t.Medium || t.Medium > t.High {
		return &ConfigError{Field: "thresholds", Message: "thresholds must satisfy low <= medium <= high"}
	}

	if o.BatchSize <= 0 {
		return &ConfigError{Field: "batch_size", Message: "batch size must be positive"}
	}
	if o.Workers <= 0 {
		return &ConfigError{Field: "workers", Message: "workers must be positive"}
	}
	if o.WritesPerSecond < 0 {
		return &ConfigError{Field: "writes_per_second", Message: "writes per second cannot be negative"}
	}

	return nil
}
