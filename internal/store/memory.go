package store

import (
	"context"
	"sync"

	"github.com/vats98754/aus-job-fetcher/internal/models"
)

// Memory keeps the record set in process. Useful for dry runs and tests.
type Memory struct {
	mu      sync.RWMutex
	records []models.CanonicalRecord
	runs    []models.RunSummary

	LoadErr error
	SaveErr error
}

func NewMemory(initial ...models.CanonicalRecord) *Memory {
	return &Memory{records: cloneRecords(initial)}
}

func (m *Memory) Load(_ context.Context) ([]models.CanonicalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return cloneRecords(m.records), nil
}

func (m *Memory) Save(_ context.Context, records []models.CanonicalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.records = cloneRecords(records)
	return nil
}

func (m *Memory) RecordRun(_ context.Context, run models.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) Runs() []models.RunSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.RunSummary(nil), m.runs...)
}

func cloneRecords(in []models.CanonicalRecord) []models.CanonicalRecord {
	out := make([]models.CanonicalRecord, len(in))
	copy(out, in)
	return out
}
