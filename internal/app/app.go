// Package app builds the store, lock, publisher and dedup service from config.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"job-dedup-go/internal/config"
	"job-dedup-go/internal/dedup"
	"job-dedup-go/internal/events"
	"job-dedup-go/internal/lock"
	"job-dedup-go/internal/models"
	"job-dedup-go/internal/quality"
	"job-dedup-go/internal/storage"
)

// ErrNoJobSource is returned when the configured store does not hold jobs.
var ErrNoJobSource = errors.New("configured store cannot list jobs")

// App holds the wired components of one process.
type App struct {
	Config  *config.Config
	Store   storage.Store
	Service *dedup.Service
	Redis   *redis.Client
	Logger  *zap.Logger
}

// New opens every dependency named by cfg. Close releases them.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store

	if cfg.Lock.Backend == config.LockRedis || cfg.Events.Enabled {
		rdb, err := lock.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rdb
	}

	locker, err := a.locker()
	if err != nil {
		a.Close()
		return nil, err
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.Enabled {
		publisher = events.NewRedisPublisher(a.Redis, cfg.Events.Channel)
	}

	svc, err := dedup.NewService(store, dedup.ServiceConfig{
		Options:   cfg.Dedup,
		Scorer:    quality.NewScorer(cfg.ScorerOptions()...),
		Locker:    locker,
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Service = svc

	logger.Info("components initialized",
		zap.String("driver", cfg.Database.Driver),
		zap.String("lock", cfg.Lock.Backend),
		zap.Bool("events", cfg.Events.Enabled),
	)
	return a, nil
}

func (a *App) locker() (lock.Locker, error) {
	switch a.Config.Lock.Backend {
	case config.LockRedis:
		return lock.NewRedisLocker(a.Redis, a.Config.Lock.Prefix, a.Config.Lock.TTL), nil
	case config.LockFile:
		return lock.NewFileLocker(a.Config.Lock.Dir)
	default:
		return lock.NewLocalLocker(), nil
	}
}

// OpenStore opens the store selected by cfg.Database.Driver.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	db := cfg.Database
	switch db.Driver {
	case config.DriverMemory:
		return storage.NewMemoryStore(), nil

	case config.DriverSQLite:
		if dir := filepath.Dir(db.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		return storage.OpenSQLite(ctx, db.SQLitePath)

	case config.DriverPostgres:
		store, err := storage.NewPostgresStore(ctx, db.PostgresURL)
		if err != nil {
			return nil, err
		}
		if db.Migrate {
			if err := store.Migrate(ctx); err != nil {
				store.Close()
				return nil, err
			}
		}
		return store, nil

	case config.DriverSupabase:
		key, err := cfg.SupabaseKey()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve supabase key: %w", err)
		}
		return storage.NewSupabaseStore(db.SupabaseURL, key)

	default:
		return nil, &dedup.ConfigError{Field: "database.driver", Message: fmt.Sprintf("unknown driver %q", db.Driver)}
	}
}

// Jobs lists the jobs held by the store.
func (a *App) Jobs(ctx context.Context) ([]models.JobRecord, error) {
	reader, ok := a.Store.(storage.JobReader)
	if !ok {
		return nil, ErrNoJobSource
	}
	return reader.GetJobs(ctx)
}

// Import saves jobs into the store.
func (a *App) Import(ctx context.Context, jobs []models.JobRecord) error {
	writer, ok := a.Store.(storage.JobWriter)
	if !ok {
		return ErrNoJobSource
	}
	return writer.SaveJobs(ctx, jobs)
}

// Close releases the store and the redis client.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}
