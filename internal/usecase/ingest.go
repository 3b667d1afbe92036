package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"talktocode/internal/domain"
	"talktocode/internal/port"
)

// Escalated only when the whole run produced nothing to persist; individual
// file and chunk failures are absorbed and reported in the result.
var (
	ErrNoFiles      = errors.New("no files to ingest")
	ErrNoEmbeddings = errors.New("no embeddings produced")
)

// ProgressFunc reports ingestion progress for interactive callers.
type ProgressFunc func(done, total int, path string)

// IngestUseCase runs the ingestion pipeline: fetch the repository root,
// chunk each file, embed every chunk, and batch-upsert the survivors.
type IngestUseCase struct {
	fetcher      port.Fetcher
	chunker      port.Chunker
	embedder     port.Embedder
	store        port.VectorStore
	fetchWorkers int
	log          *slog.Logger
}

func NewIngestUseCase(
	fetcher port.Fetcher,
	chunker port.Chunker,
	embedder port.Embedder,
	store port.VectorStore,
	fetchWorkers int,
	log *slog.Logger,
) *IngestUseCase {
	if fetchWorkers <= 0 {
		fetchWorkers = 4
	}
	return &IngestUseCase{
		fetcher:      fetcher,
		chunker:      chunker,
		embedder:     embedder,
		store:        store,
		fetchWorkers: fetchWorkers,
		log:          log,
	}
}

// IngestResult contains the results of one ingestion run.
type IngestResult struct {
	FilesFetched    int
	FilesSkipped    int
	ChunksCreated   int
	ChunksEmbedded  int
	ChunksFailed    int
	VectorsUpserted int
	Errors          []string
}

// Ingest processes the root-level files of owner/repo. Partial success is a
// completed outcome: the run fails only when nothing at all could be
// fetched, embedded, or persisted. progress may be nil.
func (u *IngestUseCase) Ingest(ctx context.Context, owner, repo string, progress ProgressFunc) (*IngestResult, error) {
	entries, err := u.fetcher.ListRoot(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("list repository root: %w", err)
	}

	var fileEntries []domain.FileEntry
	for _, e := range entries {
		if e.Kind == domain.EntryFile {
			fileEntries = append(fileEntries, e)
		}
	}
	if len(fileEntries) == 0 {
		return nil, ErrNoFiles
	}

	result := &IngestResult{}
	files := u.fetchAll(ctx, owner, repo, fileEntries, result, progress)
	result.FilesFetched = len(files)
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	// Chunk every file; remember each file's path for provenance.
	paths := make(map[string]string, len(files))
	var chunks []domain.Chunk
	for _, f := range files {
		paths[f.ContentID] = f.Path
		chunks = append(chunks, u.chunker.Split(f.ContentID, f.Text)...)
	}
	result.ChunksCreated = len(chunks)
	if len(chunks) == 0 {
		return nil, ErrNoEmbeddings
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embedded := u.embedder.EmbedEach(ctx, texts)

	// Join: build records from positionally aligned pairs, keeping only
	// successful non-empty embeddings.
	records := make([]domain.VectorRecord, 0, len(chunks))
	for i, res := range embedded {
		chunk := chunks[i]
		if res.Err != nil || len(res.Vector) == 0 {
			result.ChunksFailed++
			if res.Err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("embed chunk %d of %s: %v", chunk.Index, paths[chunk.ParentID], res.Err))
				u.log.Warn("chunk embedding failed",
					"path", paths[chunk.ParentID], "chunk", chunk.Index, "err", res.Err)
			}
			continue
		}
		result.ChunksEmbedded++
		records = append(records, domain.VectorRecord{
			ID:     domain.RecordID(chunk.ParentID, chunk.Index),
			Values: res.Vector,
			Metadata: domain.RecordMetadata{
				Text:        chunk.Text,
				Path:        paths[chunk.ParentID],
				ChunkIndex:  chunk.Index,
				TotalChunks: chunk.Total,
			},
		})
	}
	if len(records) == 0 {
		return nil, ErrNoEmbeddings
	}

	if err := u.store.Upsert(ctx, records); err != nil {
		return nil, fmt.Errorf("upsert vectors: %w", err)
	}
	result.VectorsUpserted = len(records)

	u.log.Info("ingestion complete",
		"owner", owner, "repo", repo,
		"files", result.FilesFetched,
		"chunks", result.ChunksCreated,
		"vectors", result.VectorsUpserted,
		"failed", result.ChunksFailed)

	return result, nil
}

// fetchAll retrieves file contents through a bounded worker pool, writing
// each outcome into the slot matching its entry so order is stable. A
// failed fetch skips that file, never the run.
func (u *IngestUseCase) fetchAll(ctx context.Context, owner, repo string, entries []domain.FileEntry, result *IngestResult, progress ProgressFunc) []domain.SourceFile {
	type outcome struct {
		file domain.SourceFile
		err  error
	}
	outcomes := make([]outcome, len(entries))

	workers := u.fetchWorkers
	if workers > len(entries) {
		workers = len(entries)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				file, err := u.fetcher.FetchFile(ctx, owner, repo, entries[i].Path)
				outcomes[i] = outcome{file: file, err: err}
			}
		}()
	}
	for i := range entries {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	files := make([]domain.SourceFile, 0, len(entries))
	for i, out := range outcomes {
		if progress != nil {
			progress(i+1, len(entries), entries[i].Path)
		}
		if out.err != nil {
			result.FilesSkipped++
			result.Errors = append(result.Errors, fmt.Sprintf("fetch %s: %v", entries[i].Path, out.err))
			u.log.Warn("file fetch failed", "path", entries[i].Path, "err", out.err)
			continue
		}
		files = append(files, out.file)
	}
	return files
}
