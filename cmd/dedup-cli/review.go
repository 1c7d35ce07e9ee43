package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"job-dedup-go/internal/app"
	"job-dedup-go/internal/models"
)

const (
	PromptConfirm = "Confirm"
	PromptSwap    = "Swap canonical"
	PromptRemove  = "Not a duplicate"
	PromptSkip    = "Skip"
	PromptQuit    = "Quit"
)

var errQuit = errors.New("quit requested")

var reviewCmd = &cobra.Command{
	Use:   "review <job-id>",
	Short: "Interactively confirm, swap or remove the unconfirmed relationships of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			rels, err := a.Service.DuplicatesOf(ctx, args[0])
			if err != nil {
				return err
			}

			pending := 0
			for _, rel := range rels {
				if rel.ManuallyConfirmed {
					continue
				}
				pending++
				if err := reviewOne(ctx, a, rel); err != nil {
					if errors.Is(err, errQuit) || errors.Is(err, promptui.ErrInterrupt) {
						return nil
					}
					return err
				}
			}

			if pending == 0 {
				fmt.Println("Nothing to review.")
			}
			return nil
		})
	},
}

func reviewOne(ctx context.Context, a *app.App, rel models.DuplicateRelationship) error {
	printRelationship(rel)

	prompt := promptui.Select{
		Label: fmt.Sprintf("Is %s a duplicate of %s?", rel.DuplicateJobID, rel.CanonicalJobID),
		Items: []string{PromptConfirm, PromptSwap, PromptRemove, PromptSkip, PromptQuit},
	}
	_, selected, err := prompt.Run()
	if err != nil {
		return err
	}

	switch selected {
	case PromptConfirm:
		_, err = a.Service.ConfirmRelationship(ctx, rel.CanonicalJobID, rel.DuplicateJobID, confirmedBy)
	case PromptSwap:
		_, err = a.Service.ManualMerge(ctx, rel.DuplicateJobID, rel.CanonicalJobID, confirmedBy)
	case PromptRemove:
		err = a.Service.RemoveDuplicateRelationship(ctx, rel.CanonicalJobID, rel.DuplicateJobID)
	case PromptSkip:
		return nil
	case PromptQuit:
		return errQuit
	}
	if err != nil {
		return err
	}

	zl.Info("relationship reviewed",
		zap.String("canonical_job_id", rel.CanonicalJobID),
		zap.String("duplicate_job_id", rel.DuplicateJobID),
		zap.String("decision", selected),
	)
	return nil
}

func init() {
	reviewCmd.Flags().StringVar(&confirmedBy, "by", defaultUser(), "who is reviewing")
	rootCmd.AddCommand(reviewCmd)
}
