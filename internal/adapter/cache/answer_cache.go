package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"talktocode/internal/domain"
)

// AnswerCache is an LRU cache of resolved query results keyed by question
// and result count. Entries expire after a TTL, and Invalidate bumps an
// internal generation so every entry written before an ingestion run is
// treated as stale.
type AnswerCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	gen     uint64
}

type cacheEntry struct {
	results   []domain.QueryResult
	timestamp time.Time
	gen       uint64
}

func NewAnswerCache(maxSize int, ttl time.Duration) *AnswerCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AnswerCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(question string, topK int) string {
	data := []byte(question)
	data = append(data, byte(topK>>8), byte(topK))
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func (c *AnswerCache) Get(question string, topK int) ([]domain.QueryResult, bool) {
	c.mu.RLock()
	key := cacheKey(question, topK)
	entry, exists := c.entries[key]
	currentGen := c.gen
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if time.Since(entry.timestamp) > c.ttl || entry.gen != currentGen {
		c.mu.Lock()
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.moveToEnd(key)
	c.mu.Unlock()

	return entry.results, true
}

func (c *AnswerCache) Put(question string, topK int, results []domain.QueryResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(question, topK)

	if _, exists := c.entries[key]; exists {
		c.entries[key] = &cacheEntry{
			results:   results,
			timestamp: time.Now(),
			gen:       c.gen,
		}
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = &cacheEntry{
		results:   results,
		timestamp: time.Now(),
		gen:       c.gen,
	}
	c.order = append(c.order, key)
}

// Invalidate marks every cached answer stale. Called after an ingestion
// run changes the stored vectors.
func (c *AnswerCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.gen++
}

func (c *AnswerCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *AnswerCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *AnswerCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *AnswerCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Answerer resolves a question to ranked snippets.
type Answerer interface {
	Answer(ctx context.Context, question string, topK int) ([]domain.QueryResult, error)
}

// CachedAnswerer wraps an Answerer with an AnswerCache. Only successful
// resolutions are cached; errors always pass through.
type CachedAnswerer struct {
	answerer Answerer
	cache    *AnswerCache
}

func NewCachedAnswerer(answerer Answerer, cache *AnswerCache) *CachedAnswerer {
	return &CachedAnswerer{
		answerer: answerer,
		cache:    cache,
	}
}

func (a *CachedAnswerer) Answer(ctx context.Context, question string, topK int) ([]domain.QueryResult, error) {
	if results, hit := a.cache.Get(question, topK); hit {
		return results, nil
	}

	results, err := a.answerer.Answer(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	a.cache.Put(question, topK, results)

	return results, nil
}
