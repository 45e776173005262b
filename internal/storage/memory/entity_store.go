package memory

import (
	"context"
	"sync"

	"perp-indexer/internal/domain"
	"perp-indexer/internal/storage"
)

// EntityStore is an in-memory implementation of storage.EntityStore.
type EntityStore struct {
	mu   sync.RWMutex
	data map[domain.Kind]map[string][]byte // kind -> id -> encoded record
}

// NewEntityStore creates a new in-memory entity store.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		data: make(map[domain.Kind]map[string][]byte),
	}
}

// Load returns the encoded record. Returns ErrNotFound if not exists.
func (s *EntityStore) Load(_ context.Context, kind domain.Kind, id string) ([]byte, error) {
	if id == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.data[kind][id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	return append([]byte(nil), data...), nil
}

// Save upserts the encoded record.
func (s *EntityStore) Save(_ context.Context, kind domain.Kind, id string, data []byte) error {
	if kind == "" || id == "" || len(data) == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.data[kind]
	if !ok {
		byID = make(map[string][]byte)
		s.data[kind] = byID
	}

	// Store a copy to prevent external mutation
	byID[id] = append([]byte(nil), data...)
	return nil
}

// Snapshot returns a deep copy of every record.
func (s *EntityStore) Snapshot(_ context.Context) (storage.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(storage.Snapshot, len(s.data))
	for kind, byID := range s.data {
		m := make(map[string][]byte, len(byID))
		for id, data := range byID {
			m[id] = append([]byte(nil), data...)
		}
		out[kind] = m
	}
	return out, nil
}

// Count returns the number of records of the given kind.
func (s *EntityStore) Count(kind domain.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[kind])
}

// Verify interface compliance at compile time.
var (
	_ storage.EntityStore = (*EntityStore)(nil)
	_ storage.Snapshotter = (*EntityStore)(nil)
)
