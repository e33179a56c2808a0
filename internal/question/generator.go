package question

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"interviewprep/internal/llm"
	"interviewprep/internal/resilience"
	"interviewprep/internal/retrieval"
	"interviewprep/internal/text"
)

const (
	DefaultCount            = 10
	DefaultContextCharLimit = 8000
)

type Config struct {
	// Model and DirectModel name the generators, for reporting only.
	Model            string
	DirectModel      string
	ChunkSize        int
	ChunkOverlap     int
	ProbeTopK        int
	ContextCharLimit int
	// MaxDocumentChars caps how much of a document is chunked and embedded;
	// zero means no cap.
	MaxDocumentChars int
	Probes           []string
	Options          llm.GenerationOptions
	RetryOptions     []resilience.Option
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:        text.DefaultChunkSize,
		ChunkOverlap:     text.DefaultChunkOverlap,
		ProbeTopK:        retrieval.DefaultProbeTopK,
		ContextCharLimit: DefaultContextCharLimit,
		Probes:           retrieval.DefaultProbes,
		Options:          llm.DefaultGenerationOptions(),
	}
}

type Request struct {
	Text       string
	Count      int
	Difficulty Difficulty
	Filename   string
	Language   string
	// ProbeTopK overrides the configured chunks per probe when positive.
	ProbeTopK int
}

type Method string

const (
	MethodRAG    Method = "rag"
	MethodDirect Method = "direct"
)

type Result struct {
	Questions     []Question
	Method        Method
	Model         string
	DocumentID    string
	ChunksIndexed int
	ContextChars  int
}

type Stage string

const (
	StageIndex   Stage = "index"
	StagePrompt  Stage = "prompt"
	StageInvoke  Stage = "invoke"
	StageExtract Stage = "extract"
	StageParse   Stage = "parse"
)

// GenerationError wraps whatever stopped a generation run. Cause keeps the
// original error, including any API status it carries.
type GenerationError struct {
	Stage Stage
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("question generation failed at %s: %v", e.Stage, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

type Generator struct {
	cfg       Config
	embedder  *retrieval.FallbackEmbedder
	model     llm.TextGenerator
	direct    llm.TextGenerator
	retriever *retrieval.Retriever
}

// NewGenerator wires the pipeline. direct serves the non-retrieval path and
// may be the same generator as model.
func NewGenerator(cfg Config, embedder *retrieval.FallbackEmbedder, model, direct llm.TextGenerator, retriever *retrieval.Retriever) *Generator {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = def.ChunkOverlap
	}
	if cfg.ProbeTopK <= 0 {
		cfg.ProbeTopK = def.ProbeTopK
	}
	if cfg.ContextCharLimit <= 0 {
		cfg.ContextCharLimit = def.ContextCharLimit
	}
	if len(cfg.Probes) == 0 {
		cfg.Probes = def.Probes
	}
	if cfg.Options == (llm.GenerationOptions{}) {
		cfg.Options = def.Options
	}
	if direct == nil {
		direct = model
	}
	if retriever == nil {
		retriever = retrieval.NewRetriever(nil)
	}
	return &Generator{cfg: cfg, embedder: embedder, model: model, direct: direct, retriever: retriever}
}

func (g *Generator) normalize(req Request) (Request, string, error) {
	if req.Count <= 0 {
		req.Count = DefaultCount
	}
	if req.Difficulty == "" {
		req.Difficulty = Medium
	}
	d, err := ParseDifficulty(string(req.Difficulty))
	if err != nil {
		return req, "", err
	}
	req.Difficulty = d
	if req.Language == "" {
		req.Language = DefaultLanguage
	}
	lang, err := LanguageName(req.Language)
	if err != nil {
		return req, "", err
	}
	return req, lang, nil
}

// Generate indexes the document into a fresh in-memory store, retrieves
// context with the configured probes and asks the model for questions.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	req, lang, err := g.normalize(req)
	if err != nil {
		return nil, err
	}

	docID := "temp_" + uuid.NewString()
	store := retrieval.NewMemoryStore(g.embedder)

	body := req.Text
	if limit := g.cfg.MaxDocumentChars; limit > 0 && utf8.RuneCountInString(body) > limit {
		slog.WarnContext(ctx, "document exceeds index limit, indexing its head only",
			"document_id", docID, "limit", limit)
		body = text.Head(body, limit)
	}

	chunks := retrieval.NewChunks(docID, req.Filename, text.Split(body, g.cfg.ChunkSize, g.cfg.ChunkOverlap))
	indexed, err := store.AddDocuments(ctx, chunks)
	if err != nil {
		return nil, &GenerationError{Stage: StageIndex, Cause: err}
	}
	slog.InfoContext(ctx, "indexed document",
		"document_id", docID, "chunks", len(chunks), "embedded", indexed, "provider", store.Provider())

	k := g.cfg.ProbeTopK
	if req.ProbeTopK > 0 {
		k = req.ProbeTopK
	}
	retrieved := g.retriever.RetrieveContext(ctx, store, g.cfg.Probes, k)
	if retrieved == "" {
		slog.WarnContext(ctx, "retrieval returned no context, using document head", "document_id", docID)
		retrieved = text.Head(req.Text, g.cfg.ContextCharLimit)
	}

	prompt, err := render(ragPrompt, promptData{
		Filename:       req.Filename,
		DocumentLength: utf8.RuneCountInString(req.Text),
		Context:        retrieved,
		Count:          req.Count,
		Difficulty:     req.Difficulty,
		Language:       lang,
	})
	if err != nil {
		return nil, &GenerationError{Stage: StagePrompt, Cause: err}
	}

	questions, err := g.invoke(ctx, g.model, g.cfg.Model, prompt, req)
	if err != nil {
		return nil, err
	}

	return &Result{
		Questions:     questions,
		Method:        MethodRAG,
		Model:         g.cfg.Model,
		DocumentID:    docID,
		ChunksIndexed: indexed,
		ContextChars:  utf8.RuneCountInString(retrieved),
	}, nil
}

// GenerateDirect skips retrieval and prompts with the head of the document.
func (g *Generator) GenerateDirect(ctx context.Context, req Request) (*Result, error) {
	req, lang, err := g.normalize(req)
	if err != nil {
		return nil, err
	}

	content := text.Head(req.Text, g.cfg.ContextCharLimit)
	prompt, err := render(directPrompt, promptData{
		Filename:       req.Filename,
		DocumentLength: utf8.RuneCountInString(req.Text),
		Context:        content,
		Count:          req.Count,
		Difficulty:     req.Difficulty,
		Language:       lang,
	})
	if err != nil {
		return nil, &GenerationError{Stage: StagePrompt, Cause: err}
	}

	questions, err := g.invoke(ctx, g.direct, g.cfg.DirectModel, prompt, req)
	if err != nil {
		return nil, err
	}

	return &Result{
		Questions:    questions,
		Method:       MethodDirect,
		Model:        g.cfg.DirectModel,
		ContextChars: utf8.RuneCountInString(content),
	}, nil
}

// GenerateWithFallback runs Generate and, if it fails with a
// GenerationError, retries once through GenerateDirect. Missing credentials
// and a finished context are returned without falling back.
func (g *Generator) GenerateWithFallback(ctx context.Context, req Request) (*Result, error) {
	res, err := g.Generate(ctx, req)
	if err == nil {
		return res, nil
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) || ctx.Err() != nil || errors.Is(err, llm.ErrCredentialsMissing) {
		return nil, err
	}

	slog.WarnContext(ctx, "retrieval generation failed, falling back to direct prompt",
		"stage", genErr.Stage, "error", err)
	return g.GenerateDirect(ctx, req)
}

func (g *Generator) invoke(ctx context.Context, gen llm.TextGenerator, model, prompt string, req Request) ([]Question, error) {
	opts := append([]resilience.Option{
		resilience.WithName("generate:" + model),
		resilience.WithRetryIf(func(err error) bool { return !errors.Is(err, llm.ErrCredentialsMissing) }),
	}, g.cfg.RetryOptions...)

	raw, err := resilience.Do(ctx, func(ctx context.Context) (string, error) {
		return gen.GenerateText(ctx, prompt, g.cfg.Options)
	}, opts...)
	if err != nil {
		return nil, &GenerationError{Stage: StageInvoke, Cause: err}
	}

	questions, err := ParseQuestions(ctx, raw, req.Count, req.Difficulty)
	if err != nil {
		stage := StageParse
		if errors.Is(err, ErrMalformedResponse) {
			stage = StageExtract
		}
		slog.ErrorContext(ctx, "failed to parse model response", "stage", stage, "response_length", len(raw), "error", err)
		return nil, &GenerationError{Stage: stage, Cause: err}
	}
	return questions, nil
}
