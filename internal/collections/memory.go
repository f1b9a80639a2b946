package collections

import (
	"context"
	"slices"
	"sync"
)

// MemoryRepository is an in-process Repository used by tests and by the API
// when no database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string][]Record
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string][]Record)}
}

func scopeKey(ownerKey, collection string) string {
	return ownerKey + "\x00" + collection
}

// List implements Repository.
func (m *MemoryRepository) List(_ context.Context, ownerKey, collection string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records[scopeKey(ownerKey, collection)]), nil
}

// Upsert implements Repository.
func (m *MemoryRepository) Upsert(_ context.Context, ownerKey, collection string, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scopeKey(ownerKey, collection)
	list := m.records[key]
	for i, existing := range list {
		if existing.ID == rec.ID {
			rec.CreatedAt = existing.CreatedAt
			list[i] = rec
			return rec, nil
		}
	}
	m.records[key] = append(list, rec)
	return rec, nil
}

// Delete implements Repository.
func (m *MemoryRepository) Delete(_ context.Context, ownerKey, collection, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scopeKey(ownerKey, collection)
	list := m.records[key]
	idx := slices.IndexFunc(list, func(r Record) bool { return r.ID == id })
	if idx < 0 {
		return false, nil
	}
	m.records[key] = slices.Delete(slices.Clone(list), idx, idx+1)
	return true, nil
}
