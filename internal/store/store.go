package store

import (
	"context"
	"errors"
	"sync"
)

// Snapshot keys.
const (
	KeyProducts     = "products"
	KeyTransactions = "transactions"
)

// ErrNotFound is returned when no blob has been saved under a key.
var ErrNotFound = errors.New("snapshot not found")

// ErrEmptyKey is returned when trying to save a blob with an empty key.
var ErrEmptyKey = errors.New("empty snapshot key")

// Gateway is the durable key-value store the engine snapshots into.
type Gateway interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// MemoryStore provides an in-memory Gateway.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemoryStore instantiates a new MemoryStore with an empty map.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m: map[string][]byte{},
	}
}

// Load returns a copy of the blob stored under key.
// Returns ErrNotFound if nothing was saved.
func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

// Save stores a copy of data. Returns ErrEmptyKey if the key is empty.
func (s *MemoryStore) Save(_ context.Context, key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), data...)
	return nil
}
