// Package memory keeps documents in process memory. Contents are lost on restart.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ai-search-guru/getcito/repositories"
)

// Store is an in-memory DocumentStore. Documents are held as encoded JSON so
// callers never share mutable state with the store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

var _ repositories.DocumentStore = (*Store)(nil)

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{collections: make(map[string]map[string][]byte)}
}

func (s *Store) Set(ctx context.Context, collection, id string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("memory: encode %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string][]byte)
		s.collections[collection] = docs
	}
	docs[id] = b
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string, dest any) error {
	s.mu.RLock()
	b, ok := s.collections[collection][id]
	s.mu.RUnlock()

	if !ok {
		return repositories.ErrDocumentNotFound
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("memory: decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// Len returns the number of documents in a collection
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }
