package models

import "time"

// JobRecord is a scraped or manually entered posting. The dedup core only reads it.
type JobRecord struct {
	ID              string    `json:"id" mapstructure:"id"`
	Title           string    `json:"title,omitempty" mapstructure:"title"`
	Company         string    `json:"company,omitempty" mapstructure:"company"`
	Location        string    `json:"location,omitempty" mapstructure:"location"`
	Description     string    `json:"description,omitempty" mapstructure:"description"`
	URL             string    `json:"url,omitempty" mapstructure:"url"`
	SalaryMin       *int      `json:"salary_min,omitempty" mapstructure:"salary_min"`
	SalaryMax       *int      `json:"salary_max,omitempty" mapstructure:"salary_max"`
	JobType         string    `json:"job_type,omitempty" mapstructure:"job_type"` // full-time, part-time, contract, freelance
	ExperienceLevel string    `json:"experience_level,omitempty" mapstructure:"experience_level"`
	WorkArrangement string    `json:"work_arrangement,omitempty" mapstructure:"work_arrangement"`
	Source          string    `json:"source,omitempty" mapstructure:"source"`
	CreatedAt       time.Time `json:"created_at" mapstructure:"created_at"`
}

// Source constants
const (
	SourceManual   = "manual"
	SourceLinkedIn = "linkedin"
	SourceIndeed   = "indeed"
)

// JobType constants
const (
	JobTypeFullTime  = "full-time"
	JobTypePartTime  = "part-time"
	JobTypeContract  = "contract"
	JobTypeFreelance = "freelance"
)

// WorkArrangementUnknown is treated as an absent work arrangement.
const WorkArrangementUnknown = "Unknown"

// IntPtr is a small helper for building salary fields.
func IntPtr(v int) *int {
	return &v
}
