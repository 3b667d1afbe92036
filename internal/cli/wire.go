package cli

import (
	"context"
	"fmt"
	"time"

	"talktocode/config"
	"talktocode/internal/adapter/cache"
	"talktocode/internal/adapter/chunker"
	"talktocode/internal/adapter/embedding"
	"talktocode/internal/adapter/github"
	"talktocode/internal/adapter/store"
	"talktocode/internal/port"
	"talktocode/internal/usecase"
)

// Ingestor runs the ingestion pipeline for one repository.
type Ingestor interface {
	Ingest(ctx context.Context, owner, repo string, progress usecase.ProgressFunc) (*usecase.IngestResult, error)
}

// pipeline holds the process-wide component handles: one client per
// external resource, constructed once and shared by every request.
type pipeline struct {
	ingest  Ingestor
	query   cache.Answerer
	cleanup func()
}

func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	vectorStore, cleanup, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := vectorStore.EnsureReady(ctx, embedder.Dimension()); err != nil {
		cleanup()
		return nil, fmt.Errorf("prepare vector store: %w", err)
	}

	fetcher := github.NewClient(cfg.GitHub, logger)
	split := chunker.NewLineChunker(cfg.Chunker.MaxChunkChars)

	ingest := usecase.NewIngestUseCase(fetcher, split, embedder, vectorStore, cfg.GitHub.FetchWorkers, logger)
	query := usecase.NewQueryUseCase(embedder, vectorStore, logger)

	answerCache := cache.NewAnswerCache(cfg.Query.CacheSize, time.Duration(cfg.Query.CacheTTLSecs)*time.Second)

	return &pipeline{
		ingest:  &invalidatingIngestor{inner: ingest, cache: answerCache},
		query:   cache.NewCachedAnswerer(query, answerCache),
		cleanup: cleanup,
	}, nil
}

// invalidatingIngestor drops cached answers once an ingestion run has
// changed the stored vectors.
type invalidatingIngestor struct {
	inner *usecase.IngestUseCase
	cache *cache.AnswerCache
}

func (i *invalidatingIngestor) Ingest(ctx context.Context, owner, repo string, progress usecase.ProgressFunc) (*usecase.IngestResult, error) {
	result, err := i.inner.Ingest(ctx, owner, repo, progress)
	if err == nil {
		i.cache.Invalidate()
	}
	return result, err
}

func buildEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai", "":
		return embedding.NewOpenAIEmbedder(cfg.Embedding, logger)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

func buildStore(cfg *config.Config) (port.VectorStore, func(), error) {
	switch cfg.Store.Type {
	case "qdrant", "":
		return store.NewQdrantStore(cfg.Store.Qdrant, logger), func() {}, nil
	case "local":
		s, err := store.NewLocalStore(cfg.Store.Local.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open local vector store: %w", err)
		}
		return s, func() { s.Close() }, nil
	case "memory":
		return store.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}
}
