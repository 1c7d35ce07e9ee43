package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"job-dedup-go/internal/app"
	"job-dedup-go/internal/ingest"
	"job-dedup-go/internal/models"
)

var (
	jobsFile string
	scope    string
	dryRun   bool
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run duplicate detection over a job file or the stored jobs",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			jobs, err := loadJobs(ctx, a)
			if err != nil {
				return err
			}

			if dryRun {
				det, err := a.Service.Preview(ctx, jobs)
				if err != nil {
					return err
				}
				for _, skipped := range det.Skipped {
					zl.Sugar().Warn(skipped.Error())
				}
				if structured(det) {
					return nil
				}
				fmt.Printf("Dry run: %d jobs, %d blocks, %d comparisons\n", len(det.Jobs), det.Blocks, det.Comparisons)
				printRelationships(det.Relationships)
				return nil
			}

			summary, err := a.Service.DetectDuplicates(ctx, scope, jobs)
			if err != nil {
				return err
			}
			printSummary(summary)
			if summary.PartialFailure() {
				return fmt.Errorf("%d batch(es) failed to persist", len(summary.FailedBatches))
			}
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Validate a job file and save its jobs into the store",
	RunE: func(_ *cobra.Command, _ []string) error {
		if jobsFile == "" {
			return fmt.Errorf("--file is required")
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			jobs, err := ingest.ReadFile(jobsFile)
			if err != nil {
				return err
			}
			if err := a.Import(ctx, jobs); err != nil {
				return fmt.Errorf("failed to import jobs: %w", err)
			}
			fmt.Printf("Imported %d jobs\n", len(jobs))
			return nil
		})
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Print quality scores of the jobs in a file",
	RunE: func(_ *cobra.Command, _ []string) error {
		if jobsFile == "" {
			return fmt.Errorf("--file is required")
		}
		return withApp(func(_ context.Context, a *app.App) error {
			jobs, err := ingest.ReadFile(jobsFile)
			if err != nil {
				return err
			}

			rows := make([]models.QualityMetadata, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, a.Service.ScoreJob(job))
			}
			printQuality(rows)
			return nil
		})
	},
}

func loadJobs(ctx context.Context, a *app.App) ([]models.JobRecord, error) {
	if jobsFile != "" {
		return ingest.ReadFile(jobsFile)
	}
	jobs, err := a.Jobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored jobs (use --file): %w", err)
	}
	return jobs, nil
}

func init() {
	detectCmd.Flags().StringVarP(&jobsFile, "file", "f", "", "JSON file of jobs (default: jobs held by the store)")
	detectCmd.Flags().StringVarP(&scope, "scope", "s", "all", "scope the run is locked under")
	detectCmd.Flags().BoolVar(&dryRun, "dry-run", false, "detect without writing to the store")

	importCmd.Flags().StringVarP(&jobsFile, "file", "f", "", "JSON file of jobs")
	scoreCmd.Flags().StringVarP(&jobsFile, "file", "f", "", "JSON file of jobs")

	rootCmd.AddCommand(detectCmd, importCmd, scoreCmd)
}
