package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"interviewprep/internal/llm"
	"interviewprep/internal/resilience"
)

var ErrUnknownProvider = errors.New("unknown embedding provider")

// Provider is one named embedding capability in a fallback chain.
type Provider struct {
	Name     string
	Embedder llm.Embedder
}

// EmbeddingError reports that every provider tried for a text failed.
type EmbeddingError struct {
	Providers []string
	Err       error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed (providers: %s): %v", strings.Join(e.Providers, ", "), e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// FallbackEmbedder tries providers in order, each behind the retry layer,
// and stops at the first one that answers.
type FallbackEmbedder struct {
	providers []Provider
	retryOpts []resilience.Option
}

func NewFallbackEmbedder(providers []Provider, retryOpts ...resilience.Option) *FallbackEmbedder {
	return &FallbackEmbedder{providers: providers, retryOpts: retryOpts}
}

// Providers lists provider names in the order they are tried.
func (f *FallbackEmbedder) Providers() []string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name
	}
	return names
}

// Embed returns the first successful embedding and the name of the provider
// that produced it. Missing credentials end the chain: every provider shares
// the same key.
func (f *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, string, error) {
	if len(f.providers) == 0 {
		return nil, "", &EmbeddingError{Err: errors.New("no embedding providers configured")}
	}

	var errs []error
	tried := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		tried = append(tried, p.Name)
		vec, err := f.embedWith(ctx, p, text)
		if err == nil {
			return vec, p.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
		if ctx.Err() != nil || errors.Is(err, llm.ErrCredentialsMissing) {
			break
		}
		slog.WarnContext(ctx, "embedding provider failed", "provider", p.Name, "error", err)
	}
	return nil, "", &EmbeddingError{Providers: tried, Err: errors.Join(errs...)}
}

// EmbedWith embeds text using only the named provider.
func (f *FallbackEmbedder) EmbedWith(ctx context.Context, name, text string) ([]float32, error) {
	for _, p := range f.providers {
		if p.Name != name {
			continue
		}
		vec, err := f.embedWith(ctx, p, text)
		if err != nil {
			return nil, &EmbeddingError{Providers: []string{name}, Err: err}
		}
		return vec, nil
	}
	return nil, &EmbeddingError{Providers: []string{name}, Err: ErrUnknownProvider}
}

func (f *FallbackEmbedder) embedWith(ctx context.Context, p Provider, text string) ([]float32, error) {
	opts := append([]resilience.Option{
		resilience.WithName("embed:" + p.Name),
		resilience.WithRetryIf(retryable),
	}, f.retryOpts...)
	vec, err := resilience.Do(ctx, func(ctx context.Context) ([]float32, error) {
		return p.Embedder.Embed(ctx, text)
	}, opts...)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, errors.New("empty embedding")
	}
	return vec, nil
}

func retryable(err error) bool {
	return !errors.Is(err, llm.ErrCredentialsMissing)
}
