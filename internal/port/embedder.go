package port

import "context"

// EmbedResult is the outcome of one embedding attempt. Exactly one of
// Vector and Err is meaningful.
type EmbedResult struct {
	Vector []float32
	Err    error
}

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts in one call.
	// Returns a slice of vectors, one per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedEach embeds every text independently, isolating failures per
	// item. The result slice has the same length and order as the input;
	// it is never shorter on partial failure.
	EmbedEach(ctx context.Context, texts []string) []EmbedResult

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
