package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/time/rate"

	"talktocode/config"
	"talktocode/internal/domain"
)

// Distinct upstream failure conditions. Callers branch with errors.Is
// instead of parsing messages.
var (
	ErrRateLimited  = errors.New("github: rate limited")
	ErrUnauthorized = errors.New("github: unauthorized")
	ErrNotFound     = errors.New("github: not found")
)

// Client is a read-only GitHub REST client covering the two operations the
// ingestion pipeline needs: list a repository root and fetch one file.
type Client struct {
	baseURL    string
	token      string
	includes   []string
	excludes   []string
	maxRetries int
	limiter    *rate.Limiter
	client     *http.Client
	log        *slog.Logger
}

// NewClient builds a fetcher from config. The token, if any, comes from the
// environment variable named in the config; unauthenticated access works
// for public repositories at a much lower rate budget.
func NewClient(cfg config.GitHubConfig, log *slog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(perSec)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      os.Getenv(cfg.TokenEnv),
		includes:   cfg.Includes,
		excludes:   cfg.Excludes,
		maxRetries: maxRetries,
		limiter:    rate.NewLimiter(rate.Limit(perSec), burst),
		client:     &http.Client{Timeout: timeout},
		log:        log,
	}
}

type contentEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

type contentFile struct {
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// ListRoot returns the entries at the repository root. Directories are
// listed but not recursed. File entries not passing the configured
// include/exclude globs are dropped.
func (c *Client) ListRoot(ctx context.Context, owner, repo string) ([]domain.FileEntry, error) {
	if owner == "" || repo == "" {
		return nil, errors.New("github: owner and repo are required")
	}

	var payload []contentEntry
	path := fmt.Sprintf("/repos/%s/%s/contents/", url.PathEscape(owner), url.PathEscape(repo))
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}

	entries := make([]domain.FileEntry, 0, len(payload))
	for _, e := range payload {
		kind := domain.EntryDir
		if e.Type == "file" {
			kind = domain.EntryFile
			if !c.wanted(e.Path) {
				continue
			}
		}
		entries = append(entries, domain.FileEntry{
			Path:      e.Path,
			Kind:      kind,
			ContentID: e.SHA,
		})
	}
	return entries, nil
}

// FetchFile returns the decoded text of one repository file.
func (c *Client) FetchFile(ctx context.Context, owner, repo, path string) (domain.SourceFile, error) {
	if owner == "" || repo == "" {
		return domain.SourceFile{}, errors.New("github: owner and repo are required")
	}
	if path == "" {
		return domain.SourceFile{}, errors.New("github: file path is required")
	}

	var payload contentFile
	reqPath := fmt.Sprintf("/repos/%s/%s/contents/%s",
		url.PathEscape(owner), url.PathEscape(repo), strings.TrimPrefix(path, "/"))
	if err := c.getJSON(ctx, reqPath, &payload); err != nil {
		return domain.SourceFile{}, err
	}
	if payload.Type != "" && payload.Type != "file" {
		return domain.SourceFile{}, fmt.Errorf("github: %s is not a file", path)
	}

	text, err := decodeContent(payload.Content, payload.Encoding)
	if err != nil {
		return domain.SourceFile{}, fmt.Errorf("github: decode %s: %w", path, err)
	}

	return domain.SourceFile{
		ContentID: payload.SHA,
		Path:      payload.Path,
		Text:      text,
	}, nil
}

// getJSON performs one GET with client-side rate limiting and exponential
// backoff on rate-limit and server errors. Auth and not-found responses
// fail immediately.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, retryDelay(attempt-1)); err != nil {
				return err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("github: GET %s: %w", path, err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				lastErr = readErr
				continue
			}
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("github: parse response for %s: %w", path, err)
			}
			return nil

		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: GET %s", ErrUnauthorized, path)

		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: GET %s", ErrNotFound, path)

		case resp.StatusCode == http.StatusTooManyRequests || isRateLimited(resp):
			lastErr = fmt.Errorf("%w: GET %s", ErrRateLimited, path)
			c.log.Warn("github rate limited, backing off", "path", path, "attempt", attempt)
			if d := retryAfter(resp); d > 0 {
				if err := sleepCtx(ctx, d); err != nil {
					return err
				}
			}

		case resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: GET %s", ErrUnauthorized, path)

		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("github: GET %s: %s", path, resp.Status)

		default:
			return fmt.Errorf("github: GET %s: %s", path, resp.Status)
		}
	}

	return lastErr
}

func (c *Client) wanted(path string) bool {
	if len(c.includes) > 0 {
		matched := false
		for _, pattern := range c.includes {
			if ok, err := doublestar.Match(pattern, path); err == nil && ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, pattern := range c.excludes {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return false
		}
	}
	return true
}

// isRateLimited distinguishes a 403 caused by an exhausted rate budget from
// a plain permission failure.
func isRateLimited(resp *http.Response) bool {
	return resp.StatusCode == http.StatusForbidden &&
		resp.Header.Get("X-RateLimit-Remaining") == "0"
}

func retryAfter(resp *http.Response) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func decodeContent(body, encoding string) (string, error) {
	if encoding == "base64" {
		// GitHub wraps base64 payloads with newlines.
		data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(body, "\n", ""))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return body, nil
}
