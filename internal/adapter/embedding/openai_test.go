package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"talktocode/config"
)

func testEmbedder(t *testing.T, url string) *OpenAIEmbedder {
	t.Helper()
	t.Setenv("TEST_EMBED_KEY", "test-key")

	e, err := NewOpenAIEmbedder(config.EmbeddingConfig{
		Model:     "text-embedding-3-small",
		BaseURL:   url,
		APIKeyEnv: "TEST_EMBED_KEY",
		Workers:   4,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func embeddingServer(t *testing.T, calls *atomic.Int64, failSubstring string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		type datum struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		var data []datum
		for i, text := range req.Input {
			if failSubstring != "" && strings.Contains(text, failSubstring) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":{"message":"boom"}}`))
				return
			}
			data = append(data, datum{Embedding: []float32{float32(len(text)), 1}, Index: i})
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
}

func TestEmbedBatchOrder(t *testing.T) {
	srv := embeddingServer(t, nil, "")
	defer srv.Close()

	e := testEmbedder(t, srv.URL)
	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	for i, want := range []float32{1, 2, 3} {
		if vecs[i][0] != want {
			t.Errorf("vector %d out of order: got %v", i, vecs[i])
		}
	}
}

func TestEmbedEachAlignment(t *testing.T) {
	srv := embeddingServer(t, nil, "")
	defer srv.Close()

	e := testEmbedder(t, srv.URL)
	texts := []string{"x", "yy", "zzz", "wwww", "vvvvv", "uuuuuu"}
	results := e.EmbedEach(context.Background(), texts)

	if len(results) != len(texts) {
		t.Fatalf("expected %d results, got %d", len(texts), len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("text %d failed: %v", i, r.Err)
			continue
		}
		if r.Vector[0] != float32(len(texts[i])) {
			t.Errorf("result %d misaligned: got %v for %q", i, r.Vector, texts[i])
		}
	}
}

func TestEmbedEachIsolatesFailures(t *testing.T) {
	srv := embeddingServer(t, nil, "poison")
	defer srv.Close()

	e := testEmbedder(t, srv.URL)
	texts := []string{"good one", "poison pill", "another good one"}
	results := e.EmbedEach(context.Background(), texts)

	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("sibling texts must not be affected: %v, %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil {
		t.Error("expected failure for poisoned text")
	}
}

func TestEmbedEachRejectsBlankLocally(t *testing.T) {
	var calls atomic.Int64
	srv := embeddingServer(t, &calls, "")
	defer srv.Close()

	e := testEmbedder(t, srv.URL)
	results := e.EmbedEach(context.Background(), []string{"", "   ", "\n\t", "real text"})

	for i := 0; i < 3; i++ {
		if !errors.Is(results[i].Err, ErrBlankInput) {
			t.Errorf("result %d: expected ErrBlankInput, got %v", i, results[i].Err)
		}
	}
	if results[3].Err != nil {
		t.Errorf("non-blank text failed: %v", results[3].Err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("blank texts must not reach the backend: %d calls", got)
	}
}

func TestEmbedEachEmptyInput(t *testing.T) {
	e := testEmbedder(t, "http://localhost:1")
	if results := e.EmbedEach(context.Background(), nil); results != nil {
		t.Errorf("expected nil for empty input, got %v", results)
	}
}
