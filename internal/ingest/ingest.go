// Package ingest adapts permissive job JSON (exports, scraper dumps) into
// models.JobRecord values the detector can work on.
package ingest

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"

	"job-dedup-go/internal/models"
)

//go:embed jobs.schema.json
var jobsSchema string

// aliases maps alternative field names found in exports to JobRecord keys.
var aliases = map[string]string{
	"company_name": "company",
	"job_url":      "url",
	"link":         "url",
	"posted_at":    "created_at",
	"type":         "job_type",
	"remote_type":  "work_arrangement",
}

// ValidationError lists every schema violation of a document.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is a single violation at a field path.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Validate checks data against the embedded job schema. It accepts a bare
// array of jobs or an object with a "jobs" array.
func Validate(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(jobsSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate job document: %w", err)
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}

// Parse validates data and decodes every job. Records without an id are kept;
// the detector skips them.
func Parse(data []byte) ([]models.JobRecord, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	items, err := rawItems(data)
	if err != nil {
		return nil, err
	}

	jobs := make([]models.JobRecord, 0, len(items))
	for i, item := range items {
		job, err := decodeJob(item)
		if err != nil {
			return nil, fmt.Errorf("job at index %d: %w", i, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// ReadFile parses a job file from disk.
func ReadFile(path string) ([]models.JobRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	return Parse(data)
}

func rawItems(data []byte) ([]map[string]interface{}, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var wrapper struct {
			Jobs []map[string]interface{} `json:"jobs"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to decode job document: %w", err)
		}
		return wrapper.Jobs, nil
	}

	var items []map[string]interface{}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode job document: %w", err)
	}
	return items, nil
}

func decodeJob(item map[string]interface{}) (models.JobRecord, error) {
	normalized := make(map[string]interface{}, len(item))
	for k, v := range item {
		key := snakeCase(k)
		if alias, ok := aliases[key]; ok {
			key = alias
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		if v == nil {
			continue
		}
		if _, taken := normalized[key]; taken && key != snakeCase(k) {
			// the canonical key wins over an alias
			continue
		}
		normalized[key] = v
	}

	var job models.JobRecord
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &job,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return models.JobRecord{}, err
	}
	if err := decoder.Decode(normalized); err != nil {
		return models.JobRecord{}, err
	}

	job.ID = strings.TrimSpace(job.ID)
	job.CreatedAt = job.CreatedAt.UTC()
	return job, nil
}

// snakeCase turns salaryMin into salary_min and jobURL into job_url.
// Already snake-cased keys pass through.
func snakeCase(s string) string {
	var sb strings.Builder
	prev := rune(0)
	for _, r := range s {
		if unicode.IsUpper(r) {
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(r)
		}
		prev = r
	}
	return sb.String()
}
