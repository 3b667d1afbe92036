package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"talktocode/config"
	"talktocode/internal/domain"
)

func testClient(t *testing.T, url string, cfg config.GitHubConfig) *Client {
	t.Helper()
	cfg.BaseURL = url
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = 1000
	}
	return NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestListRoot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octo/demo/contents/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `[
			{"name":"main.go","path":"main.go","type":"file","sha":"abc123"},
			{"name":"docs","path":"docs","type":"dir","sha":"def456"},
			{"name":"logo.png","path":"logo.png","type":"file","sha":"fff999"}
		]`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, config.GitHubConfig{Excludes: []string{"**/*.png", "*.png"}})
	entries, err := c.ListRoot(context.Background(), "octo", "demo")
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after filtering, got %d", len(entries))
	}
	if entries[0].Path != "main.go" || entries[0].Kind != domain.EntryFile || entries[0].ContentID != "abc123" {
		t.Errorf("unexpected file entry: %+v", entries[0])
	}
	if entries[1].Kind != domain.EntryDir {
		t.Errorf("expected dir entry, got %+v", entries[1])
	}
}

func TestFetchFileBase64(t *testing.T) {
	content := "package main\n\nfunc main() {}\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octo/demo/contents/main.go" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprintf(w, `{"path":"main.go","sha":"abc123","type":"file","encoding":"base64","content":"%s"}`,
			base64.StdEncoding.EncodeToString([]byte(content)))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, config.GitHubConfig{})
	file, err := c.FetchFile(context.Background(), "octo", "demo", "main.go")
	if err != nil {
		t.Fatal(err)
	}
	if file.Text != content {
		t.Errorf("decoded text mismatch:\ngot  %q\nwant %q", file.Text, content)
	}
	if file.ContentID != "abc123" {
		t.Errorf("unexpected content id: %s", file.ContentID)
	}
}

func TestFetchFileEmptyPath(t *testing.T) {
	c := testClient(t, "http://localhost:1", config.GitHubConfig{})
	if _, err := c.FetchFile(context.Background(), "octo", "demo", ""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		headers map[string]string
		want    error
	}{
		{"not found", http.StatusNotFound, nil, ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, nil, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, nil, ErrUnauthorized},
		{"rate limited 403", http.StatusForbidden, map[string]string{"X-RateLimit-Remaining": "0"}, ErrRateLimited},
		{"rate limited 429", http.StatusTooManyRequests, nil, ErrRateLimited},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			c := testClient(t, srv.URL, config.GitHubConfig{MaxRetries: 1})
			_, err := c.ListRoot(context.Background(), "octo", "demo")
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[{"name":"a.txt","path":"a.txt","type":"file","sha":"s1"}]`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, config.GitHubConfig{MaxRetries: 3})
	entries, err := c.ListRoot(context.Background(), "octo", "demo")
	if err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestIncludeGlobs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"name":"main.go","path":"main.go","type":"file","sha":"s1"},
			{"name":"README.md","path":"README.md","type":"file","sha":"s2"},
			{"name":"notes.txt","path":"notes.txt","type":"file","sha":"s3"}
		]`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, config.GitHubConfig{Includes: []string{"*.go", "*.md"}})
	entries, err := c.ListRoot(context.Background(), "octo", "demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}
