package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"job-dedup-go/internal/app"
)

var confirmedBy string

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return appName
}

var mergeCmd = &cobra.Command{
	Use:   "merge <canonical-id> <duplicate-id>",
	Short: "Mark a job as the canonical copy of another, overriding quality ordering",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			rel, err := a.Service.ManualMerge(ctx, args[0], args[1], confirmedBy)
			if err != nil {
				return err
			}
			if !structured(rel) {
				fmt.Println("Merged:")
				printRelationship(rel)
			}
			return nil
		})
	},
}

var unmergeCmd = &cobra.Command{
	Use:   "unmerge <canonical-id> <duplicate-id>",
	Short: "Remove the duplicate relationship between two jobs",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.Service.RemoveDuplicateRelationship(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Removed relationship %s <- %s\n", args[0], args[1])
			return nil
		})
	},
}

var confirmCmd = &cobra.Command{
	Use:   "confirm <canonical-id> <duplicate-id>",
	Short: "Confirm a detected relationship so later runs keep it",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			rel, err := a.Service.ConfirmRelationship(ctx, args[0], args[1], confirmedBy)
			if err != nil {
				return err
			}
			if !structured(rel) {
				fmt.Println("Confirmed:")
				printRelationship(rel)
			}
			return nil
		})
	},
}

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates <job-id>",
	Short: "List the relationships a job takes part in",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			rels, err := a.Service.DuplicatesOf(ctx, args[0])
			if err != nil {
				return err
			}
			printRelationships(rels)
			return nil
		})
	},
}

var canonicalCmd = &cobra.Command{
	Use:   "canonical [job-id...]",
	Short: "Keep the ids that are not a duplicate of another job",
	RunE: func(_ *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			ids := args
			if len(ids) == 0 {
				jobs, err := loadJobs(ctx, a)
				if err != nil {
					return err
				}
				for _, job := range jobs {
					ids = append(ids, job.ID)
				}
			}

			canonical, err := a.Service.ListCanonical(ctx, ids)
			if err != nil {
				return err
			}
			if structured(canonical) {
				return nil
			}
			fmt.Printf("%d of %d jobs are canonical:\n", len(canonical), len(ids))
			for _, id := range canonical {
				fmt.Println(id)
			}
			return nil
		})
	},
}

func init() {
	mergeCmd.Flags().StringVar(&confirmedBy, "by", defaultUser(), "who confirmed the merge")
	confirmCmd.Flags().StringVar(&confirmedBy, "by", defaultUser(), "who confirmed the relationship")
	canonicalCmd.Flags().StringVarP(&jobsFile, "file", "f", "", "JSON file of jobs (default: jobs held by the store)")

	rootCmd.AddCommand(mergeCmd, unmergeCmd, confirmCmd, duplicatesCmd, canonicalCmd)
}
