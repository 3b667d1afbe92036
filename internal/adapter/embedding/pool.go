package embedding

import (
	"context"
	"strings"
	"sync"

	"talktocode/internal/port"
)

// embedEach fans texts out to at most workers concurrent attempts. Blank
// texts are rejected in place without reaching the pool. The function
// returns only after every attempt has settled.
func embedEach(ctx context.Context, texts []string, workers int, one func(context.Context, string) port.EmbedResult) []port.EmbedResult {
	if len(texts) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(texts) {
		workers = len(texts)
	}

	results := make([]port.EmbedResult, len(texts))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = one(ctx, texts[i])
			}
		}()
	}

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = port.EmbedResult{Err: ErrBlankInput}
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
