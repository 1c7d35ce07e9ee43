package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"job-dedup-go/internal/models"
)

// MemoryStore keeps everything in process memory. It backs tests and dry runs.
type MemoryStore struct {
	mu            sync.RWMutex
	relationships map[string]models.DuplicateRelationship
	quality       map[string]models.QualityMetadata
	jobs          []models.JobRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		relationships: make(map[string]models.DuplicateRelationship),
		quality:       make(map[string]models.QualityMetadata),
	}
}

// SaveJobs upserts job records by id, keeping first-seen order.
func (m *MemoryStore) SaveJobs(ctx context.Context, jobs []models.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := make(map[string]int, len(m.jobs))
	for i, j := range m.jobs {
		index[j.ID] = i
	}
	for _, j := range jobs {
		if i, ok := index[j.ID]; ok {
			m.jobs[i] = j
			continue
		}
		index[j.ID] = len(m.jobs)
		m.jobs = append(m.jobs, j)
	}
	return nil
}

func (m *MemoryStore) GetJobs(ctx context.Context) ([]models.JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]models.JobRecord(nil), m.jobs...), nil
}

func (m *MemoryStore) UpsertRelationships(ctx context.Context, rels []models.DuplicateRelationship) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.upsertLocked(rels)
	return nil
}

func (m *MemoryStore) upsertLocked(rels []models.DuplicateRelationship) {
	for _, r := range rels {
		key := r.Key()
		if existing, ok := m.relationships[key]; ok && existing.ManuallyConfirmed {
			continue
		}
		m.relationships[key] = r
	}
}

// WriteBatch applies quality rows and relationships under one lock.
func (m *MemoryStore) WriteBatch(ctx context.Context, quality []models.QualityMetadata, rels []models.DuplicateRelationship) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, q := range quality {
		m.quality[q.JobID] = q
	}
	m.upsertLocked(rels)
	return nil
}

func (m *MemoryStore) GetRelationshipsFor(ctx context.Context, jobID string) ([]models.DuplicateRelationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.relationshipsForLocked(jobID), nil
}

func (m *MemoryStore) relationshipsForLocked(jobID string) []models.DuplicateRelationship {
	var out []models.DuplicateRelationship
	for _, r := range m.relationships {
		if r.Involves(jobID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key() < out[j].Key()
	})
	return out
}

func (m *MemoryStore) DeleteRelationship(ctx context.Context, canonicalID, duplicateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := models.PairKey(canonicalID, duplicateID)
	if _, ok := m.relationships[key]; !ok {
		return ErrNotFound
	}
	delete(m.relationships, key)
	return nil
}

func (m *MemoryStore) ReplaceRelationship(ctx context.Context, rel models.DuplicateRelationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.relationships[rel.Key()] = rel
	return nil
}

func (m *MemoryStore) ConfirmRelationship(ctx context.Context, canonicalID, duplicateID, confirmedBy string, at time.Time) (models.DuplicateRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := models.PairKey(canonicalID, duplicateID)
	rel, ok := m.relationships[key]
	if !ok {
		return models.DuplicateRelationship{}, ErrNotFound
	}

	at = at.UTC()
	rel.ManuallyConfirmed = true
	rel.ConfirmedBy = confirmedBy
	rel.ConfirmedAt = &at
	m.relationships[key] = rel
	return rel, nil
}

func (m *MemoryStore) ListCanonicalJobIDs(ctx context.Context, jobIDs []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	duplicates := make(map[string]bool)
	for _, r := range m.relationships {
		duplicates[r.DuplicateJobID] = true
	}
	return filterCanonical(jobIDs, duplicates), nil
}

func (m *MemoryStore) UpsertQuality(ctx context.Context, rows []models.QualityMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, q := range rows {
		m.quality[q.JobID] = q
	}
	return nil
}

func (m *MemoryStore) GetQuality(ctx context.Context, jobID string) (models.QualityMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.quality[jobID]
	if !ok {
		return models.QualityMetadata{}, ErrNotFound
	}
	return q, nil
}

func (m *MemoryStore) UpdateCanonicalState(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quality[jobID]
	if !ok {
		return nil
	}
	q.IsCanonical, q.DuplicateCount = canonicalState(jobID, m.relationshipsForLocked(jobID))
	q.UpdatedAt = time.Now().UTC()
	m.quality[jobID] = q
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
