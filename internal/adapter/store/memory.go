package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"talktocode/internal/domain"
)

// MemoryStore keeps vectors in process memory. Useful for development runs
// and tests where neither Qdrant nor an on-disk store is wanted; contents
// are lost when the process exits.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[string]storedVector
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vectors: make(map[string]storedVector),
	}
}

func (s *MemoryStore) EnsureReady(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("memory store: invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return errors.New("memory store: no records to upsert")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if s.dimension > 0 && len(rec.Values) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(rec.Values))
		}
		s.vectors[rec.ID] = storedVector{Values: rec.Values, Metadata: rec.Metadata}
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 {
		return nil, nil
	}

	matches := make([]domain.Match, 0, len(s.vectors))
	for id, stored := range s.vectors {
		matches = append(matches, domain.Match{
			ID:       id,
			Score:    cosineSimilarity(vector, stored.Values),
			Metadata: stored.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK > len(matches) {
		topK = len(matches)
	}
	return matches[:topK], nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}
