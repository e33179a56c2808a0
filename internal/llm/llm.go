// Package llm holds the contracts the pipeline needs from a model vendor:
// turn text into a vector, and turn a prompt into text.
package llm

import (
	"context"
	"errors"
)

// ErrCredentialsMissing is wrapped by adapters that cannot reach the vendor
// because no API key is configured. Retrying does not help.
var ErrCredentialsMissing = errors.New("model credentials missing")

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type GenerationOptions struct {
	Temperature     float32
	TopP            float32
	TopK            int32
	MaxOutputTokens int32
}

// DefaultGenerationOptions are tuned for long, creative JSON answers.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		Temperature:     0.7,
		TopP:            0.9,
		TopK:            40,
		MaxOutputTokens: 8192,
	}
}

type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, opts GenerationOptions) (string, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// GeneratorFunc adapts a function to TextGenerator.
type GeneratorFunc func(ctx context.Context, prompt string, opts GenerationOptions) (string, error)

func (f GeneratorFunc) GenerateText(ctx context.Context, prompt string, opts GenerationOptions) (string, error) {
	return f(ctx, prompt, opts)
}
