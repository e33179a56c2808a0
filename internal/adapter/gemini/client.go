package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"interviewprep/internal/llm"
	"interviewprep/internal/settings"
)

var (
	ErrAPIKeyMissing = fmt.Errorf("gemini api key not configured: %w", llm.ErrCredentialsMissing)
	ErrEmptyResponse = errors.New("gemini returned an empty response")
)

// Client hands out a genai client for whatever API key is currently stored in
// settings, rebuilding it when the key changes.
type Client struct {
	settingsSvc *settings.Service
	limiter     *rate.Limiter
	clientOpts  []option.ClientOption

	mu         sync.RWMutex
	client     *genai.Client
	currentKey string
}

// NewClient builds a Client. limiter may be nil to disable client-side
// throttling.
func NewClient(svc *settings.Service, limiter *rate.Limiter, opts ...option.ClientOption) *Client {
	return &Client{
		settingsSvc: svc,
		limiter:     limiter,
		clientOpts:  opts,
	}
}

// NewLimiter spaces requests evenly to stay under requestsPerMinute.
// A non-positive value disables throttling.
func NewLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}

// Embedder returns an embedding capability backed by model.
func (c *Client) Embedder(model string) *Embedder {
	return &Embedder{client: c, model: model}
}

// Generator returns a text generation capability backed by model.
func (c *Client) Generator(model string) *Generator {
	return &Generator{client: c, model: model}
}

// Close releases the current genai client, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	c.currentKey = ""
	return err
}

// acquire resolves the configured key, waits for a request slot and returns
// a client bound to that key.
func (c *Client) acquire(ctx context.Context) (*genai.Client, error) {
	s, err := c.settingsSvc.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if s.GeminiAPIKey == "" {
		return nil, ErrAPIKeyMissing
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	return c.getClient(ctx, s.GeminiAPIKey)
}

func (c *Client) getClient(ctx context.Context, key string) (*genai.Client, error) {
	c.mu.RLock()
	if c.client != nil && c.currentKey == key {
		defer c.mu.RUnlock()
		return c.client, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double check
	if c.client != nil && c.currentKey == key {
		return c.client, nil
	}

	if c.client != nil {
		if err := c.client.Close(); err != nil {
			slog.Warn("failed to close previous genai client", "error", err)
		}
	}

	opts := make([]option.ClientOption, 0, len(c.clientOpts)+1)
	opts = append(opts, c.clientOpts...)
	opts = append(opts, option.WithAPIKey(key))

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	c.client = client
	c.currentKey = key
	return client, nil
}
