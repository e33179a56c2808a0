package retrieval_test

import (
	"context"
	"errors"
	"strings"
	"sync"

	"interviewprep/internal/llm"
)

// keywordEmbedder maps text onto a fixed axis per keyword, so similarity is
// fully predictable.
type keywordEmbedder struct {
	mu       sync.Mutex
	keywords []string
	fail     func(text string) bool
	calls    []string
}

func newKeywordEmbedder(keywords ...string) *keywordEmbedder {
	return &keywordEmbedder{keywords: keywords}
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, text)
	e.mu.Unlock()

	if e.fail != nil && e.fail(text) {
		return nil, errors.New("embedding backend unavailable")
	}
	vec := make([]float32, len(e.keywords)+1)
	vec[len(e.keywords)] = 0.01
	for i, kw := range e.keywords {
		vec[i] = float32(strings.Count(text, kw))
	}
	return vec, nil
}

func (e *keywordEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

var _ llm.Embedder = (*keywordEmbedder)(nil)
