package dedup

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when another run holds the scope lock.
var ErrRunInProgress = errors.New("deduplication run already in progress for scope")

// InputError describes a job record that was skipped.
type InputError struct {
	Index  int    `json:"index"`
	JobID  string `json:"job_id,omitempty"`
	Reason string `json:"reason"`
}

func (e *InputError) Error() string {
	switch {
	case e.Index < 0 && e.JobID == "":
		return fmt.Sprintf("input error: %s", e.Reason)
	case e.Index < 0:
		return fmt.Sprintf("input error: job %q: %s", e.JobID, e.Reason)
	case e.JobID != "":
		return fmt.Sprintf("input error: job %q at index %d: %s", e.JobID, e.Index, e.Reason)
	default:
		return fmt.Sprintf("input error: job at index %d: %s", e.Index, e.Reason)
	}
}

// ConfigError rejects a run before any comparison starts.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config error: %s: %s: %v", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// PersistenceError reports a batch that could not be written.
type PersistenceError struct {
	Batch    int
	Attempts int
	Cause    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: batch %d failed after %d attempt(s): %v", e.Batch, e.Attempts, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// ConflictError rejects a manual merge of a job with itself.
type ConflictError struct {
	JobID   string
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict error: job %q: %s", e.JobID, e.Message)
}
