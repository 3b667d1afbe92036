package port

import (
	"context"

	"talktocode/internal/domain"
)

// VectorStore persists embedding vectors and supports similarity search.
type VectorStore interface {
	// EnsureReady prepares the backing namespace for vectors of the given
	// dimension. Idempotent; called once at process start.
	EnsureReady(ctx context.Context, dimension int) error

	// Upsert writes records in one batch. A record whose id already exists
	// is replaced in place, never duplicated.
	Upsert(ctx context.Context, records []domain.VectorRecord) error

	// Query returns up to topK matches ordered by descending score.
	Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}
