package main

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"job-dedup-go/internal/secrets"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration with secrets masked",
	RunE: func(_ *cobra.Command, _ []string) error {
		masked := *cfg
		masked.Database.SupabaseKey.Value = maskString(cfg.Database.SupabaseKey.Value)
		masked.Database.PostgresURL = maskString(cfg.Database.PostgresURL)
		masked.Redis.URL = maskString(cfg.Redis.URL)

		if structured(masked) {
			return nil
		}

		fmt.Println("Current Configuration:")
		fmt.Printf("Database Driver: %s\n", cfg.Database.Driver)
		fmt.Printf("Supabase URL: %s\n", maskString(cfg.Database.SupabaseURL))
		fmt.Printf("Supabase Key: %s\n", masked.Database.SupabaseKey.Value)
		fmt.Printf("Postgres URL: %s\n", masked.Database.PostgresURL)
		fmt.Printf("SQLite Path: %s\n", cfg.Database.SQLitePath)
		fmt.Printf("Weights: title=%.2f company=%.2f location=%.2f description=%.2f\n",
			cfg.Dedup.Weights.Title, cfg.Dedup.Weights.Company, cfg.Dedup.Weights.Location, cfg.Dedup.Weights.Description)
		fmt.Printf("Thresholds: high=%.1f medium=%.1f low=%.1f\n",
			cfg.Dedup.Thresholds.High, cfg.Dedup.Thresholds.Medium, cfg.Dedup.Thresholds.Low)
		fmt.Printf("Batch Size: %d\n", cfg.Dedup.BatchSize)
		fmt.Printf("Workers: %d\n", cfg.Dedup.Workers)
		fmt.Printf("Lock Backend: %s\n", cfg.Lock.Backend)
		fmt.Printf("Events Enabled: %t\n", cfg.Events.Enabled)
		fmt.Printf("Schedule: %s (enabled: %t)\n", cfg.Scheduler.Spec, cfg.Scheduler.Enabled)

		if err := cfg.Validate(); err != nil {
			fmt.Printf("Validation: %v\n", err)
		} else {
			fmt.Println("Validation: ok")
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init <file>",
	Short: "Write the effective configuration to a yaml or json file",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := cfg.SaveConfig(args[0]); err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", args[0])
		return nil
	},
}

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage store credentials in the OS keychain",
}

var secretSetCmd = &cobra.Command{
	Use:   "set <account>",
	Short: "Store a secret under account (reference it as database.supabase_key.keyring_account)",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		prompt := promptui.Prompt{
			Label: "Secret",
			Mask:  '*',
		}
		value, err := prompt.Run()
		if err != nil {
			return err
		}
		if err := secrets.Set(args[0], value); err != nil {
			return err
		}
		fmt.Printf("Secret stored for %s/%s\n", secrets.KeyringService, args[0])
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete <account>",
	Short: "Remove a secret from the keychain",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := secrets.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Secret deleted for %s/%s\n", secrets.KeyringService, args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	secretCmd.AddCommand(secretSetCmd, secretDeleteCmd)
	rootCmd.AddCommand(configCmd, secretCmd)
}
