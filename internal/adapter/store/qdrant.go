package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"talktocode/config"
	"talktocode/internal/domain"
)

// QdrantStore is a minimal REST client to Qdrant. The configured collection
// acts as the vector namespace; it is created with cosine distance on first
// use. Qdrant point ids must be UUIDs or integers, so the stable record id
// is hashed to a UUIDv5 for the point id and kept verbatim in the payload.
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
	log        *slog.Logger
}

func NewQdrantStore(cfg config.QdrantConfig, log *slog.Logger) *QdrantStore {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &QdrantStore{
		url:        cfg.URL,
		apiKey:     os.Getenv(cfg.APIKeyEnv),
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		log:        log,
	}
}

// EnsureReady creates the collection if missing. The dimension and distance
// metric are fixed here and must match the embedding model's output, or
// later upserts and queries fail.
func (s *QdrantStore) EnsureReady(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("qdrant: invalid dimension")
	}
	s.dimension = dimension

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	err := s.doJSON(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
	if err != nil {
		// An existing collection with the same schema answers 409.
		var httpErr *qdrantHTTPError
		if errors.As(err, &httpErr) && httpErr.status == http.StatusConflict {
			return nil
		}
		return err
	}
	return nil
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Upsert writes all records in one batched call. Re-writing an id replaces
// the point in place.
func (s *QdrantStore) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return errors.New("qdrant: no records to upsert")
	}

	points := make([]qdrantPoint, len(records))
	for i, rec := range records {
		points[i] = qdrantPoint{
			ID:     pointID(rec.ID),
			Vector: rec.Values,
			Payload: map[string]any{
				"recordId":    rec.ID,
				"text":        rec.Metadata.Text,
				"path":        rec.Metadata.Path,
				"chunkIndex":  rec.Metadata.ChunkIndex,
				"totalChunks": rec.Metadata.TotalChunks,
			},
		}
	}

	body := map[string]any{"points": points}
	return s.doJSON(ctx, http.MethodPut,
		fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body, nil)
}

// Query performs a top-k similarity search with payloads returned, mapping
// hits back to domain matches in the store's relevance order.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 5
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := s.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), body, &resp)
	if err != nil {
		return nil, err
	}

	matches := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		m := domain.Match{Score: r.Score}
		if v, ok := r.Payload["recordId"].(string); ok {
			m.ID = v
		}
		if v, ok := r.Payload["text"].(string); ok {
			m.Metadata.Text = v
		}
		if v, ok := r.Payload["path"].(string); ok {
			m.Metadata.Path = v
		}
		if v, ok := r.Payload["chunkIndex"].(float64); ok {
			m.Metadata.ChunkIndex = int(v)
		}
		if v, ok := r.Payload["totalChunks"].(float64); ok {
			m.Metadata.TotalChunks = int(v)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Count returns the exact number of stored points.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/count", s.url, s.collection),
		map[string]any{"exact": true}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

type qdrantHTTPError struct {
	status int
	body   string
}

func (e *qdrantHTTPError) Error() string {
	return fmt.Sprintf("qdrant: status %d: %s", e.status, e.body)
}

func (s *QdrantStore) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return &qdrantHTTPError{status: resp.StatusCode, body: string(preview)}
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// pointID derives a deterministic UUID from the stable record id, so the
// same chunk always maps to the same point and re-ingestion overwrites.
func pointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}
