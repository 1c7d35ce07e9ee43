package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-dedup-go/internal/dedup"
	"job-dedup-go/internal/models"
	"job-dedup-go/internal/storage"
)

type countingDetector struct {
	calls atomic.Int32
	err   error
}

func (d *countingDetector) DetectDuplicates(_ context.Context, scope string, jobs []models.JobRecord) (*dedup.RunSummary, error) {
	d.calls.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return &dedup.RunSummary{Scope: scope, TotalJobsProcessed: len(jobs)}, nil
}

func staticSource(jobs []models.JobRecord) JobSource {
	return func(context.Context) ([]models.JobRecord, error) { return jobs, nil }
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	jobs := []models.JobRecord{{ID: "a"}, {ID: "b"}}

	t.Run("runs detection", func(t *testing.T) {
		det := &countingDetector{}
		summary := New("", "all", staticSource(jobs), det, nil).RunOnce(ctx)
		require.NotNil(t, summary)
		assert.Equal(t, 2, summary.TotalJobsProcessed)
		assert.Equal(t, "all", summary.Scope)
	})

	t.Run("no jobs", func(t *testing.T) {
		det := &countingDetector{}
		assert.Nil(t, New("", "all", staticSource(nil), det, nil).RunOnce(ctx))
		assert.Equal(t, int32(0), det.calls.Load())
	})

	t.Run("source error", func(t *testing.T) {
		det := &countingDetector{}
		failing := func(context.Context) ([]models.JobRecord, error) { return nil, errors.New("db down") }
		assert.Nil(t, New("", "all", failing, det, nil).RunOnce(ctx))
		assert.Equal(t, int32(0), det.calls.Load())
	})

	t.Run("run in progress", func(t *testing.T) {
		det := &countingDetector{err: fmt.Errorf("%w: all", dedup.ErrRunInProgress)}
		assert.Nil(t, New("", "all", staticSource(jobs), det, nil).RunOnce(ctx))
	})
}

func TestStart_RunsImmediatelyAndOnSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	det := &countingDetector{}
	s := New("@every 1s", "all", staticSource([]models.JobRecord{{ID: "a"}}), det, nil)
	require.NoError(t, s.Start(ctx))

	assert.Eventually(t, func() bool { return det.calls.Load() >= 2 }, 3*time.Second, 20*time.Millisecond)
	<-s.Stop().Done()
}

func TestStart_InvalidSpec(t *testing.T) {
	s := New("every now and then", "all", staticSource(nil), &countingDetector{}, nil)
	assert.Error(t, s.Start(context.Background()))
}

func TestRunOnce_WithService(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc, err := dedup.NewService(store, dedup.ServiceConfig{Options: dedup.DefaultOptions()})
	require.NoError(t, err)

	require.NoError(t, store.SaveJobs(ctx, []models.JobRecord{
		{ID: "a", Title: "Go Developer", Company: "Acme", URL: "https://acme.io/1"},
		{ID: "b", Title: "Golang Developer", Company: "Acme Inc", URL: "https://acme.io/1/"},
	}))

	summary := New("", "all", store.GetJobs, svc, nil).RunOnce(ctx)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.DuplicatesFound)

	canonical, err := svc.ListCanonical(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, canonical)
}
