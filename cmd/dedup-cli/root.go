package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"job-dedup-go/internal/app"
	"job-dedup-go/internal/config"
	"job-dedup-go/internal/logger"
)

const (
	appName = "dedup-cli"

	outputConsole = "console"
	outputJSON    = "json"
	outputYAML    = "yaml"
)

var (
	// Used for flags.
	cfgFile  string
	output   string
	debug    bool
	jsonLogs bool

	cfg *config.Config
	zl  *zap.Logger

	rootCmd = &cobra.Command{
		Use:           appName,
		Short:         "dedup-cli detects, reviews and merges duplicate job postings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig()
		},
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "configuration file (yaml or json)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", outputConsole, "output format: console, json")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&jsonLogs, "json", "j", false, "json format for logging")
}

func initConfig() error {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var err error
	cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	switch output {
	case outputConsole, outputJSON, outputYAML:
	default:
		return fmt.Errorf("unknown output format %q", output)
	}

	zl, err = logger.New(jsonLogs || cfg.Monitoring.JSON, debug || logger.IsDebug(cfg.Monitoring.LogLevel))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	return nil
}

// withApp validates the config, opens the components and runs fn with a
// context cancelled on SIGINT/SIGTERM.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
