package repository

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process DocumentStore for tests and local runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

func (m *MemoryStore) Read(ctx context.Context, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc.Data = append([]byte(nil), doc.Data...)
	return doc, nil
}

func (m *MemoryStore) Write(ctx context.Context, id string, data []byte, expectedVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[id].Version != expectedVersion {
		return 0, ErrVersionConflict
	}
	next := expectedVersion + 1
	m.docs[id] = Document{ID: id, Data: append([]byte(nil), data...), Version: next}
	return next, nil
}

// IDs lists stored document ids in order.
func (m *MemoryStore) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
