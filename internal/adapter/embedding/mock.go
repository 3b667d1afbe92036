package embedding

import (
	"context"
	"errors"

	"talktocode/internal/port"
)

// MockEmbedder produces deterministic vectors without a network call.
type MockEmbedder struct {
	dimension int

	// Fail, when set, makes texts for which it returns true fail.
	Fail func(text string) bool
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if e.Fail != nil && e.Fail(text) {
			return nil, errors.New("mock embed failure")
		}
		embeddings[i] = e.vectorFor(text)
	}
	return embeddings, nil
}

func (e *MockEmbedder) EmbedEach(ctx context.Context, texts []string) []port.EmbedResult {
	return embedEach(ctx, texts, 4, func(_ context.Context, text string) port.EmbedResult {
		if e.Fail != nil && e.Fail(text) {
			return port.EmbedResult{Err: errors.New("mock embed failure")}
		}
		return port.EmbedResult{Vector: e.vectorFor(text)}
	})
}

func (e *MockEmbedder) vectorFor(text string) []float32 {
	v := make([]float32, e.dimension)
	for j, r := range text {
		if j >= e.dimension {
			break
		}
		v[j] = float32(r) / 1000.0
	}
	return v
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
