package vector

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory. It is the default backend and
// the one used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]TextRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]TextRecord)}
}

func (s *MemoryStore) Upsert(_ context.Context, rec TextRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (TextRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return TextRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]TextRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]TextRecord, 0, len(s.records))
	for _, rec := range s.records {
		list = append(list, rec)
	}
	return list, nil
}

func (s *MemoryStore) Search(_ context.Context, query []float32, limit int) ([]SearchResult, error) {
	s.mu.RLock()
	records := make([]TextRecord, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	s.mu.RUnlock()
	return rank(records, query, limit), nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}
