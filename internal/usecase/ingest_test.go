package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"talktocode/internal/adapter/chunker"
	"talktocode/internal/adapter/embedding"
	"talktocode/internal/domain"
)

// fakeFetcher serves a fixed set of files as a repository root.
type fakeFetcher struct {
	files     map[string]string // path -> text
	failPaths map[string]bool
	calls     int
}

func (f *fakeFetcher) ListRoot(_ context.Context, owner, repo string) ([]domain.FileEntry, error) {
	f.calls++
	var entries []domain.FileEntry
	for path := range f.files {
		entries = append(entries, domain.FileEntry{
			Path:      path,
			Kind:      domain.EntryFile,
			ContentID: "sha-" + path,
		})
	}
	entries = append(entries, domain.FileEntry{Path: "docs", Kind: domain.EntryDir, ContentID: "sha-docs"})
	return entries, nil
}

func (f *fakeFetcher) FetchFile(_ context.Context, owner, repo, path string) (domain.SourceFile, error) {
	f.calls++
	if f.failPaths[path] {
		return domain.SourceFile{}, errors.New("fetch failed")
	}
	text, ok := f.files[path]
	if !ok {
		return domain.SourceFile{}, errors.New("not found")
	}
	return domain.SourceFile{ContentID: "sha-" + path, Path: path, Text: text}, nil
}

// memStore records upserts in memory.
type memStore struct {
	records map[string]domain.VectorRecord
	upserts int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]domain.VectorRecord)}
}

func (s *memStore) EnsureReady(_ context.Context, dimension int) error { return nil }

func (s *memStore) Upsert(_ context.Context, records []domain.VectorRecord) error {
	s.upserts++
	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

func (s *memStore) Query(_ context.Context, vector []float32, topK int) ([]domain.Match, error) {
	var matches []domain.Match
	for _, r := range s.records {
		if len(matches) >= topK {
			break
		}
		matches = append(matches, domain.Match{ID: r.ID, Score: 0.5, Metadata: r.Metadata})
	}
	return matches, nil
}

func (s *memStore) Count(_ context.Context) (int, error) { return len(s.records), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newIngest(f *fakeFetcher, emb *embedding.MockEmbedder, s *memStore, maxChunk int) *IngestUseCase {
	return NewIngestUseCase(f, chunker.NewLineChunker(maxChunk), emb, s, 2, testLogger())
}

func TestIngestSingleLargeFile(t *testing.T) {
	// One file of 20000 characters with an 8000 byte bound: 3 chunks,
	// 3 records.
	lines := make([]string, 200)
	for i := range lines {
		lines[i] = strings.Repeat("z", 99)
	}
	text := strings.Join(lines, "\n") + "\n"

	f := &fakeFetcher{files: map[string]string{"big.txt": text}}
	s := newMemStore()
	u := newIngest(f, embedding.NewMockEmbedder(8), s, 8000)

	result, err := u.Ingest(context.Background(), "octo", "demo", nil)
	if err != nil {
		t.Fatal(err)
	}

	if result.ChunksCreated != 3 {
		t.Errorf("expected 3 chunks, got %d", result.ChunksCreated)
	}
	if result.VectorsUpserted != 3 {
		t.Errorf("expected 3 vectors, got %d", result.VectorsUpserted)
	}
	if len(s.records) != 3 {
		t.Errorf("expected 3 persisted records, got %d", len(s.records))
	}

	for id, rec := range s.records {
		if rec.Metadata.Path != "big.txt" {
			t.Errorf("record %s lost provenance: %+v", id, rec.Metadata)
		}
		if rec.Metadata.TotalChunks != 3 {
			t.Errorf("record %s has TotalChunks=%d", id, rec.Metadata.TotalChunks)
		}
	}
}

func TestIngestPartialEmbeddingFailure(t *testing.T) {
	// Five chunks, one poisoned: the run completes with 4 records.
	files := map[string]string{
		"a.txt": "alpha\n",
		"b.txt": "beta\n",
		"c.txt": "POISON gamma\n",
		"d.txt": "delta\n",
		"e.txt": "epsilon\n",
	}
	f := &fakeFetcher{files: files}
	emb := embedding.NewMockEmbedder(8)
	emb.Fail = func(text string) bool { return strings.Contains(text, "POISON") }
	s := newMemStore()
	u := newIngest(f, emb, s, 8000)

	result, err := u.Ingest(context.Background(), "octo", "demo", nil)
	if err != nil {
		t.Fatalf("partial failure must not fail the run: %v", err)
	}

	if result.ChunksFailed != 1 {
		t.Errorf("expected 1 failed chunk, got %d", result.ChunksFailed)
	}
	if result.VectorsUpserted != 4 {
		t.Errorf("expected 4 vectors, got %d", result.VectorsUpserted)
	}
	if len(result.Errors) == 0 {
		t.Error("expected failure to be reported in Errors")
	}
}

func TestIngestAllEmbeddingsFail(t *testing.T) {
	f := &fakeFetcher{files: map[string]string{"a.txt": "alpha\n"}}
	emb := embedding.NewMockEmbedder(8)
	emb.Fail = func(string) bool { return true }
	u := newIngest(f, emb, newMemStore(), 8000)

	_, err := u.Ingest(context.Background(), "octo", "demo", nil)
	if !errors.Is(err, ErrNoEmbeddings) {
		t.Errorf("expected ErrNoEmbeddings, got %v", err)
	}
}

func TestIngestFileFetchFailureSkipsFile(t *testing.T) {
	f := &fakeFetcher{
		files:     map[string]string{"good.txt": "fine\n", "bad.txt": "never seen\n"},
		failPaths: map[string]bool{"bad.txt": true},
	}
	s := newMemStore()
	u := newIngest(f, embedding.NewMockEmbedder(8), s, 8000)

	result, err := u.Ingest(context.Background(), "octo", "demo", nil)
	if err != nil {
		t.Fatalf("one failed fetch must not fail the run: %v", err)
	}
	if result.FilesFetched != 1 || result.FilesSkipped != 1 {
		t.Errorf("expected 1 fetched / 1 skipped, got %d / %d", result.FilesFetched, result.FilesSkipped)
	}
	if len(s.records) != 1 {
		t.Errorf("expected 1 record, got %d", len(s.records))
	}
}

func TestIngestEmptyRepo(t *testing.T) {
	f := &fakeFetcher{files: map[string]string{}}
	u := newIngest(f, embedding.NewMockEmbedder(8), newMemStore(), 8000)

	_, err := u.Ingest(context.Background(), "octo", "demo", nil)
	if !errors.Is(err, ErrNoFiles) {
		t.Errorf("expected ErrNoFiles, got %v", err)
	}
}

func TestIngestRecordIDsUnique(t *testing.T) {
	lines := make([]string, 60)
	for i := range lines {
		lines[i] = strings.Repeat("q", 50)
	}
	f := &fakeFetcher{files: map[string]string{
		"one.txt": strings.Join(lines, "\n"),
		"two.txt": strings.Join(lines, "\n"),
	}}
	s := newMemStore()
	u := newIngest(f, embedding.NewMockEmbedder(8), s, 500)

	result, err := u.Ingest(context.Background(), "octo", "demo", nil)
	if err != nil {
		t.Fatal(err)
	}
	// The store is keyed by id: any collision would shrink it.
	if len(s.records) != result.VectorsUpserted {
		t.Errorf("id collision: %d records for %d vectors", len(s.records), result.VectorsUpserted)
	}
}

func TestIngestRerunOverwrites(t *testing.T) {
	f := &fakeFetcher{files: map[string]string{"a.txt": "stable content\n"}}
	s := newMemStore()
	u := newIngest(f, embedding.NewMockEmbedder(8), s, 8000)

	for i := 0; i < 2; i++ {
		if _, err := u.Ingest(context.Background(), "octo", "demo", nil); err != nil {
			t.Fatal(err)
		}
	}

	if len(s.records) != 1 {
		t.Errorf("re-ingestion must overwrite, not duplicate: %d records", len(s.records))
	}
	if s.upserts != 2 {
		t.Errorf("expected 2 upsert calls, got %d", s.upserts)
	}
}

func TestIngestProgressReported(t *testing.T) {
	f := &fakeFetcher{files: map[string]string{"a.txt": "alpha\n", "b.txt": "beta\n"}}
	u := newIngest(f, embedding.NewMockEmbedder(8), newMemStore(), 8000)

	var calls int
	_, err := u.Ingest(context.Background(), "octo", "demo", func(done, total int, path string) {
		calls++
		if total != 2 {
			t.Errorf("expected total 2, got %d", total)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected 2 progress calls, got %d", calls)
	}
}
