package gemini

import (
	"context"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
)

type Embedder struct {
	client *Client
	model  string
}

func (e *Embedder) Model() string { return e.model }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	client, err := e.client.acquire(ctx)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "embedding content", "model", e.model, "length", len(text))
	res, err := client.EmbeddingModel(e.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}

	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, ErrEmptyResponse
	}
	return res.Embedding.Values, nil
}
