package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"interviewprep/internal/llm"
)

const DefaultSearchK = 5

// MemoryStore is an in-memory vector index for a single generation run. It
// is not safe for concurrent use.
//
// The first provider that embeds a chunk is pinned for the lifetime of the
// index so every stored vector, and every query vector, comes from the same
// model.
type MemoryStore struct {
	embedder *FallbackEmbedder
	items    []EmbeddedChunk
	provider string
	dim      int
}

func NewMemoryStore(e *FallbackEmbedder) *MemoryStore {
	return &MemoryStore{embedder: e}
}

// AddDocuments embeds and stores chunks in order. Chunks that cannot be
// embedded are logged and skipped. It returns how many chunks were stored;
// the error is non-nil only when ctx ends the run early or the embedding
// credentials are missing, since no later chunk could succeed either.
func (s *MemoryStore) AddDocuments(ctx context.Context, chunks []Chunk) (int, error) {
	added := 0
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return added, err
		}

		vec, err := s.embed(ctx, c.Text)
		if errors.Is(err, llm.ErrCredentialsMissing) {
			return added, err
		}
		if err != nil {
			slog.WarnContext(ctx, "dropping chunk that failed to embed", "chunk_id", c.ID, "error", err)
			continue
		}
		if s.dim != 0 && len(vec) != s.dim {
			slog.WarnContext(ctx, "dropping chunk with mismatched embedding size",
				"chunk_id", c.ID, "want", s.dim, "got", len(vec))
			continue
		}
		s.dim = len(vec)
		s.items = append(s.items, EmbeddedChunk{Chunk: c, Embedding: vec})
		added++
	}
	return added, nil
}

func (s *MemoryStore) embed(ctx context.Context, text string) ([]float32, error) {
	if s.provider != "" {
		return s.embedder.EmbedWith(ctx, s.provider, text)
	}
	vec, provider, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.provider = provider
	slog.InfoContext(ctx, "pinned embedding provider", "provider", provider, "dimensions", len(vec))
	return vec, nil
}

// SimilaritySearch returns up to k chunks ranked by cosine similarity to
// query, best first; equal scores keep insertion order. A query that cannot
// be embedded yields no results.
func (s *MemoryStore) SimilaritySearch(ctx context.Context, query string, k int) []Chunk {
	if len(s.items) == 0 {
		return nil
	}
	if k <= 0 {
		k = DefaultSearchK
	}

	qv, err := s.embedder.EmbedWith(ctx, s.provider, query)
	if err != nil {
		slog.WarnContext(ctx, "query embedding failed", "query", query, "error", err)
		return nil
	}

	type scored struct {
		chunk Chunk
		score float64
	}
	ranked := make([]scored, len(s.items))
	for i, item := range s.items {
		ranked[i] = scored{chunk: item.Chunk, score: CosineSimilarity(qv, item.Embedding)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	n := min(k, len(ranked))
	out := make([]Chunk, n)
	for i := range n {
		out[i] = ranked[i].chunk
	}
	return out
}

// Clear drops every stored chunk and unpins the provider.
func (s *MemoryStore) Clear() {
	s.items = nil
	s.provider = ""
	s.dim = 0
}

func (s *MemoryStore) Count() int { return len(s.items) }

// Provider is the pinned embedding provider, or "" before the first chunk is
// stored.
func (s *MemoryStore) Provider() string { return s.provider }
