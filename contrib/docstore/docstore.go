// Package docstore persists ingested chunks so a corpus can be rebuilt or
// audited independently of the search indexes.
package docstore

import (
	"context"
	"sync"

	docqaerrors "github.com/sweetpotato0/docqa/errors"
	"github.com/sweetpotato0/docqa/rag/document"
)

// Store is the chunk persistence contract.
type Store interface {
	AddChunks(ctx context.Context, chunks []document.Chunk) error
	ChunksBySource(ctx context.Context, sourceID string) ([]document.Chunk, error)
	All(ctx context.Context) ([]document.Chunk, error)
	Count(ctx context.Context) (int64, error)
}

// InMemoryStore keeps chunks in process memory, in insertion order.
type InMemoryStore struct {
	mu     sync.RWMutex
	chunks []document.Chunk
}

// NewInMemoryStore creates an empty in-memory chunk store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AddChunks(_ context.Context, chunks []document.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.chunks = append(s.chunks, c.Clone())
	}
	return nil
}

func (s *InMemoryStore) ChunksBySource(_ context.Context, sourceID string) ([]document.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []document.Chunk
	for _, c := range s.chunks {
		if c.SourceID == sourceID {
			out = append(out, c.Clone())
		}
	}
	if len(out) == 0 {
		return nil, docqaerrors.ErrNotFound
	}
	return out, nil
}

func (s *InMemoryStore) All(_ context.Context) ([]document.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]document.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, c.Clone())
	}
	return out, nil
}

func (s *InMemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chunks)), nil
}
