package retrieval

import (
	"context"
	"strings"
	"time"

	"interviewprep/internal/middleware"
)

const (
	// ChunkSeparator joins the chunks one probe matched.
	ChunkSeparator = "\n\n---\n\n"
	// ProbeSeparator joins the blocks of different probes.
	ProbeSeparator = "\n\n========\n\n"

	DefaultProbeTopK = 2
)

// DefaultProbes are document-agnostic queries that pull different kinds of
// material out of an index.
var DefaultProbes = []string{
	"key concepts and main topics",
	"technical details and specifications",
	"practical applications and examples",
	"important definitions and terminology",
	"processes and procedures described",
}

type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) []Chunk
}

// Retriever builds a generation context from several independent probe
// queries.
type Retriever struct {
	logger *QueryLogger
}

func NewRetriever(l *QueryLogger) *Retriever {
	return &Retriever{logger: l}
}

// RetrieveContext runs each probe against s in turn and joins the matches.
// Probes without matches contribute nothing, so an empty index yields "".
func (r *Retriever) RetrieveContext(ctx context.Context, s Searcher, probes []string, k int) string {
	if k <= 0 {
		k = DefaultProbeTopK
	}

	blocks := make([]string, 0, len(probes))
	for _, probe := range probes {
		start := time.Now()
		chunks := s.SimilaritySearch(ctx, probe, k)

		block := joinChunks(chunks)
		if block != "" {
			blocks = append(blocks, block)
		}

		r.logger.Log(QueryLogEntry{
			Query:         probe,
			NumResults:    len(chunks),
			ContextChars:  len(block),
			Duration:      time.Since(start),
			CorrelationID: middleware.GetCorrelationID(ctx),
			GenerationID:  middleware.GetGenerationID(ctx),
		})
	}
	return strings.Join(blocks, ProbeSeparator)
}

func joinChunks(chunks []Chunk) string {
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.Text != "" {
			texts = append(texts, c.Text)
		}
	}
	return strings.Join(texts, ChunkSeparator)
}
