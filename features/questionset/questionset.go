package questionset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"interviewprep/internal/config"
	"interviewprep/internal/llm"
	"interviewprep/internal/middleware"
	"interviewprep/internal/question"
	"interviewprep/internal/settings"
)

const (
	// MinContentLength is the shortest document, in characters after
	// trimming, that is worth generating questions from.
	MinContentLength = 100
	MaxCount         = 50

	// DefaultMaxDocumentChars bounds what gets chunked and embedded; every
	// chunk costs one embedding call against the per-minute quota.
	DefaultMaxDocumentChars = 100_000

	// maxTaskBytes is nsqd's default --max-msg-size.
	maxTaskBytes = 1 << 20
)

var (
	ErrInsufficientContent = errors.New("document does not contain enough text to generate questions")
	ErrInvalidCount        = fmt.Errorf("question count must be between 1 and %d", MaxCount)
	ErrNoQuestions         = errors.New("model returned no questions")
	ErrDocumentTooLarge    = errors.New("document is too large to generate questions from")
	ErrAPIKeyMissing       = fmt.Errorf("gemini api key not configured: %w", llm.ErrCredentialsMissing)
)

type Metadata struct {
	GenerationMethod string    `json:"generation_method"`
	DocumentLength   int       `json:"document_length"`
	RAGEnabled       bool      `json:"rag_enabled"`
	AIModel          string    `json:"ai_model"`
	ChunksIndexed    int       `json:"chunks_indexed"`
	ContextChars     int       `json:"context_chars"`
	GenerationID     string    `json:"generation_id"`
	GeneratedAt      time.Time `json:"generated_at"`
}

type QuestionSet struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	Filename       string              `json:"filename"`
	Difficulty     question.Difficulty `json:"difficulty"`
	Language       string              `json:"language"`
	Categories     []string            `json:"categories"`
	Questions      []question.Question `json:"questions"`
	TotalQuestions int                 `json:"total_questions"`
	Metadata       Metadata            `json:"metadata"`
	CreatedAt      time.Time           `json:"created_at"`
}

// Request is both the HTTP body of a generation request and the NSQ payload
// of an asynchronous one.
type Request struct {
	GenerationID  string `json:"generation_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Text          string `json:"text"`
	Filename      string `json:"filename"`
	Count         int    `json:"count"`
	Difficulty    string `json:"difficulty"`
	Language      string `json:"language"`
}

type Generator interface {
	GenerateWithFallback(ctx context.Context, req question.Request) (*question.Result, error)
}

type SettingsService interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// Defaults fill in request fields the caller left empty.
type Defaults struct {
	Count            int
	Difficulty       question.Difficulty
	Language         string
	MaxDocumentChars int
}

type Service struct {
	repo     Repository
	gen      Generator
	settings SettingsService
	pub      EventPublisher
	defaults Defaults
	now      func() time.Time
}

func NewService(repo Repository, gen Generator, settings SettingsService, pub EventPublisher, defaults Defaults) *Service {
	if defaults.Count <= 0 {
		defaults.Count = question.DefaultCount
	}
	if defaults.Difficulty == "" {
		defaults.Difficulty = question.Medium
	}
	if defaults.MaxDocumentChars <= 0 {
		defaults.MaxDocumentChars = DefaultMaxDocumentChars
	}
	return &Service{repo: repo, gen: gen, settings: settings, pub: pub, defaults: defaults, now: time.Now}
}

type prepared struct {
	req      Request
	qreq     question.Request
	settings *settings.Settings
}

// prepare validates req, applies defaults and checks that an API key is
// configured before any model call is made.
func (s *Service) prepare(ctx context.Context, req Request) (*prepared, error) {
	if utf8.RuneCountInString(strings.TrimSpace(req.Text)) < MinContentLength {
		return nil, ErrInsufficientContent
	}
	if n := utf8.RuneCountInString(req.Text); n > s.defaults.MaxDocumentChars {
		return nil, fmt.Errorf("%w: %d characters, the limit is %d", ErrDocumentTooLarge, n, s.defaults.MaxDocumentChars)
	}

	if req.Count == 0 {
		req.Count = s.defaults.Count
	}
	if req.Count < 1 || req.Count > MaxCount {
		return nil, ErrInvalidCount
	}

	difficulty := s.defaults.Difficulty
	if req.Difficulty != "" {
		d, err := question.ParseDifficulty(req.Difficulty)
		if err != nil {
			return nil, err
		}
		difficulty = d
	}
	req.Difficulty = string(difficulty)

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if cfg.GeminiAPIKey == "" {
		return nil, ErrAPIKeyMissing
	}

	if req.Language == "" {
		req.Language = cfg.DefaultLanguage
	}
	if req.Language == "" {
		req.Language = s.defaults.Language
	}
	if req.Language == "" {
		req.Language = question.DefaultLanguage
	}
	if _, err := question.LanguageName(req.Language); err != nil {
		return nil, err
	}
	req.Language = strings.ToLower(req.Language)

	if req.Filename == "" {
		req.Filename = "document.txt"
	}

	return &prepared{
		req: req,
		qreq: question.Request{
			Text:       req.Text,
			Count:      req.Count,
			Difficulty: difficulty,
			Filename:   req.Filename,
			Language:   req.Language,
			ProbeTopK:  cfg.ProbeTopK,
		},
		settings: cfg,
	}, nil
}

// Generate runs the pipeline synchronously and stores the resulting set.
func (s *Service) Generate(ctx context.Context, req Request) (*QuestionSet, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	if p.req.GenerationID == "" {
		p.req.GenerationID = uuid.NewString()
	}
	ctx = middleware.WithGenerationID(ctx, p.req.GenerationID)

	start := s.now()
	slog.InfoContext(ctx, "generating question set",
		"filename", p.req.Filename, "count", p.req.Count, "difficulty", p.req.Difficulty, "language", p.req.Language)

	res, err := s.gen.GenerateWithFallback(ctx, p.qreq)
	if err != nil {
		slog.ErrorContext(ctx, "question generation failed", "error", err)
		return nil, err
	}
	if len(res.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	set := &QuestionSet{
		Title:          "Questions from " + p.req.Filename,
		Filename:       p.req.Filename,
		Difficulty:     p.qreq.Difficulty,
		Language:       p.req.Language,
		Categories:     categories(res.Questions),
		Questions:      res.Questions,
		TotalQuestions: len(res.Questions),
		Metadata: Metadata{
			GenerationMethod: string(res.Method),
			DocumentLength:   utf8.RuneCountInString(p.req.Text),
			RAGEnabled:       res.Method == question.MethodRAG,
			AIModel:          res.Model,
			ChunksIndexed:    res.ChunksIndexed,
			ContextChars:     res.ContextChars,
			GenerationID:     p.req.GenerationID,
			GeneratedAt:      s.now().UTC(),
		},
	}

	if err := s.repo.Save(ctx, set); err != nil {
		return nil, fmt.Errorf("save question set: %w", err)
	}

	slog.InfoContext(ctx, "question set generated",
		"id", set.ID, "questions", set.TotalQuestions, "method", res.Method, "duration", s.now().Sub(start))
	return set, nil
}

// Enqueue validates req and publishes it for the generation worker. It
// returns the generation id the worker will tag its logs with.
func (s *Service) Enqueue(ctx context.Context, req Request) (string, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		return "", err
	}
	if p.req.GenerationID == "" {
		p.req.GenerationID = uuid.NewString()
	}
	if id := middleware.GetCorrelationID(ctx); id != "unknown" {
		p.req.CorrelationID = id
	}

	body, err := json.Marshal(p.req)
	if err != nil {
		return "", fmt.Errorf("marshal generation task: %w", err)
	}
	if len(body) > maxTaskBytes {
		return "", fmt.Errorf("%w: task of %d bytes exceeds the queue limit", ErrDocumentTooLarge, len(body))
	}
	if err := s.pub.Publish(config.TopicGenerateTask, body); err != nil {
		return "", fmt.Errorf("publish generation task: %w", err)
	}

	slog.InfoContext(ctx, "generation task queued", "generation_id", p.req.GenerationID, "filename", p.req.Filename)
	return p.req.GenerationID, nil
}

func (s *Service) Get(ctx context.Context, id string) (*QuestionSet, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]QuestionSet, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func categories(qs []question.Question) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, q := range qs {
		if q.Category == "" || seen[q.Category] {
			continue
		}
		seen[q.Category] = true
		out = append(out, q.Category)
	}
	return out
}
