package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"talktocode/internal/domain"
	"talktocode/internal/port"
)

// ErrNoMatches reports an empty similarity result. It is an outcome, not a
// failure: the store answered, it just holds nothing relevant.
var ErrNoMatches = errors.New("no matches found")

// QueryUseCase answers natural-language questions against the vector store.
// The question must be embedded with the same model used at ingestion or
// similarity scores are meaningless, so it shares the ingest embedder.
type QueryUseCase struct {
	embedder port.Embedder
	store    port.VectorStore
	log      *slog.Logger
}

func NewQueryUseCase(embedder port.Embedder, store port.VectorStore, log *slog.Logger) *QueryUseCase {
	return &QueryUseCase{
		embedder: embedder,
		store:    store,
		log:      log,
	}
}

// Answer embeds the question, runs a top-k search, and maps matches to
// ranked snippets preserving the store's relevance order.
func (u *QueryUseCase) Answer(ctx context.Context, question string, topK int) ([]domain.QueryResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, errors.New("question is empty")
	}
	if topK <= 0 {
		topK = 5
	}

	vectors, err := u.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("embedding returned an empty vector")
	}

	matches, err := u.store.Query(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(matches) == 0 {
		return nil, ErrNoMatches
	}

	results := make([]domain.QueryResult, len(matches))
	for i, m := range matches {
		text := m.Metadata.Text
		if text == "" {
			text = "No text available"
		}
		results[i] = domain.QueryResult{Text: text, Score: m.Score}
	}

	u.log.Debug("query answered", "matches", len(results), "topK", topK)
	return results, nil
}
