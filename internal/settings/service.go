package settings

import (
	"context"
	"fmt"
	"strings"
)

type Settings struct {
	ID              int    `json:"-"`
	GeminiAPIKey    string `json:"gemini_api_key"`
	DefaultLanguage string `json:"default_language"`
	ProbeTopK       int    `json:"probe_top_k"`
}

// Masked returns a copy safe to hand to API clients.
func (s Settings) Masked() Settings {
	s.GeminiAPIKey = MaskKey(s.GeminiAPIKey)
	return s
}

// MaskKey keeps the last four characters of a key visible.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

// Update persists set. An empty or still-masked API key keeps the stored one,
// so clients can round-trip the masked value returned by GET.
func (s *Service) Update(ctx context.Context, set *Settings) error {
	if set.GeminiAPIKey == "" || strings.HasPrefix(set.GeminiAPIKey, "*") {
		current, err := s.repo.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to load current settings: %w", err)
		}
		set.GeminiAPIKey = current.GeminiAPIKey
	}
	if set.ProbeTopK < 0 {
		return fmt.Errorf("probe_top_k must not be negative")
	}
	return s.repo.Update(ctx, set)
}

// SeedAPIKey stores key when no key has been configured yet.
func (s *Service) SeedAPIKey(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	current, err := s.repo.Get(ctx)
	if err != nil {
		return err
	}
	if current.GeminiAPIKey != "" {
		return nil
	}
	current.GeminiAPIKey = key
	return s.repo.Update(ctx, current)
}
