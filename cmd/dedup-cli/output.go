package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"job-dedup-go/internal/dedup"
	"job-dedup-go/internal/models"
)

func printJSON(data interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		log.Printf("Failed to encode JSON: %v", err)
	}
}

func printYAML(data interface{}) {
	encoder := yaml.NewEncoder(os.Stdout)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		log.Printf("Failed to encode YAML: %v", err)
	}
	encoder.Close()
}

// structured prints data in the requested machine format and reports
// whether it did.
func structured(data interface{}) bool {
	switch output {
	case outputJSON:
		printJSON(data)
		return true
	case outputYAML:
		printYAML(data)
		return true
	}
	return false
}

func printSummary(s *dedup.RunSummary) {
	if structured(s) {
		return
	}

	fmt.Println("=== Deduplication Results ===")
	fmt.Printf("Run ID: %s\n", s.RunID)
	fmt.Printf("Scope: %s\n", s.Scope)
	fmt.Printf("Jobs Processed: %d\n", s.TotalJobsProcessed)
	fmt.Printf("Jobs Skipped: %d\n", s.SkippedJobs)
	fmt.Printf("Comparisons: %d\n", s.Comparisons)
	fmt.Printf("Duplicates Found: %d (high=%d, medium=%d, low=%d, url=%d)\n",
		s.DuplicatesFound, s.HighConfidence, s.MediumConfidence, s.LowConfidence, s.URLMatches)
	fmt.Printf("Canonical Jobs Identified: %d\n", s.CanonicalJobsIdentified)
	fmt.Printf("Unique Jobs: %d\n", s.UniqueJobs)
	fmt.Printf("Succeeded Batches: %v\n", s.SucceededBatches)
	fmt.Printf("Failed Batches: %v\n", s.FailedBatches)
	for _, err := range s.BatchErrors {
		fmt.Printf("  %v\n", err)
	}
	fmt.Printf("Duration: %v\n", s.Duration)
}

func printRelationships(rels []models.DuplicateRelationship) {
	if structured(rels) {
		return
	}

	if len(rels) == 0 {
		fmt.Println("No duplicate relationships.")
		return
	}
	for _, r := range rels {
		printRelationship(r)
	}
}

func printRelationship(r models.DuplicateRelationship) {
	confirmed := ""
	if r.ManuallyConfirmed {
		confirmed = " [confirmed"
		if r.ConfirmedBy != "" {
			confirmed += " by " + r.ConfirmedBy
		}
		confirmed += "]"
	}
	fmt.Printf("%s <- %s  %.2f %s %s%s\n",
		r.CanonicalJobID, r.DuplicateJobID, r.OverallSimilarity,
		r.ConfidenceLevel, r.DetectionMethod, confirmed)
	if r.DetectionMethod == models.MethodFuzzyMatch {
		fmt.Printf("  title=%.2f company=%.2f location=%.2f description=%.2f\n",
			r.TitleSimilarity, r.CompanySimilarity, r.LocationSimilarity, r.DescriptionSimilarity)
	}
}

func printQuality(rows []models.QualityMetadata) {
	if structured(rows) {
		return
	}

	fmt.Printf("%-24s %8s %8s %8s %8s\n", "JOB", "COMPL", "SOURCE", "FRESH", "OVERALL")
	for _, q := range rows {
		fmt.Printf("%-24s %8.1f %8.1f %8.1f %8.1f\n",
			truncate(q.JobID, 24), q.CompletenessScore, q.SourceReliabilityScore, q.FreshnessScore, q.OverallQualityScore)
	}
}

func truncate(s string, limit int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-3]) + "..."
}

func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}
