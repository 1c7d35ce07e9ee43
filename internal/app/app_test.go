package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-dedup-go/internal/config"
	"job-dedup-go/internal/dedup"
	"job-dedup-go/internal/models"
	"job-dedup-go/internal/storage"
)

func TestNew_SQLiteWithFileLock(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.SQLitePath = filepath.Join(dir, "db", "dedup.db")
	cfg.Lock.Backend = config.LockFile
	cfg.Lock.Dir = dir
	require.NoError(t, cfg.Validate())

	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &storage.SQLiteStore{}, a.Store)

	jobs := []models.JobRecord{
		{ID: "a", Title: "Go Developer", Company: "Acme", URL: "https://acme.io/1"},
		{ID: "b", Title: "Go Developer", Company: "Acme Inc.", URL: "https://acme.io/1"},
	}
	require.NoError(t, a.Import(ctx, jobs))

	stored, err := a.Jobs(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	summary, err := a.Service.DetectDuplicates(ctx, "all", stored)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DuplicatesFound)

	canonical, err := a.Service.ListCanonical(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, canonical)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Driver = "mongo"

	_, err := OpenStore(context.Background(), cfg)
	var cfgErr *dedup.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestOpenStore_SupabaseWithoutKey(t *testing.T) {
	t.Setenv("SUPABASE_KEY", "")
	cfg := config.DefaultConfig()
	cfg.Database.SupabaseURL = "https://demo.supabase.co"

	_, err := OpenStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNew_BadOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Driver = config.DriverMemory
	cfg.Dedup.BatchSize = 0

	_, err := New(context.Background(), cfg, nil)
	var cfgErr *dedup.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
