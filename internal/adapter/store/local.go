package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"talktocode/internal/domain"
)

var bucketVectors = []byte("vectors")

// LocalStore persists vectors in a bbolt file and answers queries from an
// in-memory copy with brute-force cosine similarity. It serves offline runs
// and tests; the Qdrant store is the production backend.
type LocalStore struct {
	db        *bbolt.DB
	dimension int
	mu        sync.RWMutex
	vectors   map[string]storedVector
}

type storedVector struct {
	Values   []float32             `json:"v"`
	Metadata domain.RecordMetadata `json:"m"`
}

func NewLocalStore(path string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create vectors bucket: %w", err)
	}

	s := &LocalStore{
		db:      db,
		vectors: make(map[string]storedVector),
	}
	if err := s.loadVectors(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	return s, nil
}

func (s *LocalStore) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			s.vectors[string(k)] = stored
			return nil
		})
	})
}

func (s *LocalStore) EnsureReady(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("local store: invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	return nil
}

func (s *LocalStore) Upsert(_ context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return errors.New("local store: no records to upsert")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return errors.New("vectors bucket not found")
		}

		for _, rec := range records {
			if s.dimension > 0 && len(rec.Values) != s.dimension {
				return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(rec.Values))
			}

			stored := storedVector{Values: rec.Values, Metadata: rec.Metadata}
			data, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(rec.ID), data); err != nil {
				return err
			}
			s.vectors[rec.ID] = stored
		}
		return nil
	})
}

func (s *LocalStore) Query(_ context.Context, vector []float32, topK int) ([]domain.Match, error) {
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

func (s *LocalStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
