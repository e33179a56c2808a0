package gemini

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"interviewprep/internal/llm"
)

type Generator struct {
	client *Client
	model  string
}

func (g *Generator) Model() string { return g.model }

// GenerateText sends prompt as a single user turn and returns the text parts
// of the first candidate, concatenated.
func (g *Generator) GenerateText(ctx context.Context, prompt string, opts llm.GenerationOptions) (string, error) {
	client, err := g.client.acquire(ctx)
	if err != nil {
		return "", err
	}

	model := client.GenerativeModel(g.model)
	model.SetTemperature(opts.Temperature)
	model.SetTopP(opts.TopP)
	model.SetTopK(opts.TopK)
	model.SetMaxOutputTokens(opts.MaxOutputTokens)

	slog.DebugContext(ctx, "generating content", "model", g.model, "prompt_length", len(prompt))
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
