package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"job-dedup-go/internal/app"
	"job-dedup-go/internal/config"
	"job-dedup-go/internal/dedup"
	"job-dedup-go/internal/logger"
	"job-dedup-go/internal/scheduler"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	// Setup logging
	zl, err := logger.New(cfg.Monitoring.JSON, logger.IsDebug(cfg.Monitoring.LogLevel))
	if err != nil {
		log.Fatalf("Failed to setup logging: %v", err)
	}
	defer zl.Sync()
	zl = logger.WithScope(zl, cfg.Scheduler.Scope)

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to initialize", zap.Error(err))
	}
	defer a.Close()

	zl.Info("starting job deduplication daemon",
		zap.String("driver", cfg.Database.Driver),
		zap.Int("workers", cfg.Dedup.Workers),
		zap.Int("batch_size", cfg.Dedup.BatchSize),
	)

	runner := a.Service.Runner()

	// Start periodic detection; the scheduler also runs once immediately
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(cfg.Scheduler.Spec, cfg.Scheduler.Scope, a.Jobs, a.Service, zl)
		if err := sched.Start(ctx); err != nil {
			zl.Fatal("failed to start scheduler", zap.Error(err))
		}
	} else {
		zl.Info("scheduler disabled, running a single detection")
		scheduler.New(cfg.Scheduler.Spec, cfg.Scheduler.Scope, a.Jobs, a.Service, zl).RunOnce(ctx)
		printMetrics(runner, zl)
		return
	}

	// Start metrics reporting if an interval is configured
	var metricsDone chan struct{}
	if cfg.Monitoring.MetricsInterval > 0 {
		metricsDone = make(chan struct{})
		go runMetricsReporting(ctx, runner, cfg.Monitoring.MetricsInterval, zl, metricsDone)
	}

	// Wait for shutdown signal
	<-ctx.Done()
	zl.Info("shutdown signal received, stopping gracefully")

	// Wait for background operations to complete
	<-sched.Stop().Done()
	if metricsDone != nil {
		<-metricsDone
		zl.Info("metrics reporting stopped")
	}

	printMetrics(runner, zl)
	zl.Info("job deduplication daemon shutdown complete")
}

// runMetricsReporting periodically reports runner metrics
func runMetricsReporting(ctx context.Context, runner *dedup.Runner, interval time.Duration, zl *zap.Logger, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	zl.Info("starting metrics reporting", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			printMetrics(runner, zl)
		}
	}
}

// printMetrics logs current runner metrics
func printMetrics(runner *dedup.Runner, zl *zap.Logger) {
	metrics := runner.GetMetrics()

	zl.Info("runner metrics",
		zap.Int64("total_runs", metrics.TotalRuns),
		zap.Int64("total_jobs_processed", metrics.TotalJobsProcessed),
		zap.Int64("total_duplicates", metrics.TotalDuplicates),
		zap.Int64("total_failed_batches", metrics.TotalFailedBatches),
		zap.Duration("last_run_duration", metrics.LastRunDuration),
	)

	for scope, perf := range metrics.ScopePerformance {
		zl.Info("scope performance",
			zap.String("run_scope", scope),
			zap.Int("jobs_processed", perf.JobsProcessed),
			zap.Int("duplicates_found", perf.DuplicatesFound),
			zap.Int("failed_batches", perf.FailedBatches),
			zap.Duration("duration", perf.Duration),
			zap.Time("last_run", perf.LastRun),
		)
	}
}
