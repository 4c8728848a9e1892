package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/feichai0017/intake-processor/internal/models"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.PatientRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(ctx context.Context, record models.PatientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]models.PatientRecord, error) {
	s.mu.RLock()
	out := make([]models.PatientRecord, len(s.records))
	copy(out, s.records)
	s.mu.RUnlock()

	// newest first; later inserts win ties
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
