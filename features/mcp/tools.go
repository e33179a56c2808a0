package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"interviewprep/features/questionset"
	"interviewprep/internal/document"
	"interviewprep/internal/llm"
	"interviewprep/internal/question"
	"interviewprep/internal/resilience"
)

const (
	ToolGenerate = "interviewprep_generate_questions"
	ToolList     = "interviewprep_list_question_sets"
	ToolGet      = "interviewprep_get_question_set"

	defaultListLimit = 20
)

type QuestionSetService interface {
	Generate(ctx context.Context, req questionset.Request) (*questionset.QuestionSet, error)
	Enqueue(ctx context.Context, req questionset.Request) (string, error)
	Get(ctx context.Context, id string) (*questionset.QuestionSet, error)
	List(ctx context.Context, limit, offset int) ([]questionset.QuestionSet, error)
}

type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type GenerateArgs struct {
	Text       string `json:"text"`
	Filename   string `json:"filename,omitempty"`
	Count      int    `json:"count,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Language   string `json:"language,omitempty"`
	Async      bool   `json:"async,omitempty"`
}

type ListArgs struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

type GetArgs struct {
	ID string `json:"id"`
}

var tools = []Tool{
	{
		Name: ToolGenerate,
		Description: `Generates interview questions from a document. The document is chunked, embedded and searched for concepts, definitions, examples and relationships; questions are written from what is found. Documents must contain at least 100 characters.

Set async=true for long documents: the call returns a generation id immediately and the set appears in interviewprep_list_question_sets when done.

USAGE EXAMPLE:
interviewprep_generate_questions(text="...", count=5, difficulty="hard")`,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"text": map[string]string{
					"type":        "string",
					"description": "Full document text",
				},
				"filename": map[string]string{
					"type":        "string",
					"description": "Name shown in the set title",
				},
				"count": map[string]interface{}{
					"type":        "integer",
					"description": "Number of questions (default 10)",
					"minimum":     1,
					"maximum":     questionset.MaxCount,
				},
				"difficulty": map[string]interface{}{
					"type": "string",
					"enum": []string{"easy", "medium", "hard"},
				},
				"language": map[string]string{
					"type":        "string",
					"description": "Language code of the questions, e.g. en or nl",
				},
				"async": map[string]string{
					"type":        "boolean",
					"description": "Queue the generation instead of waiting for it",
				},
			},
			"required": []string{"text"},
		},
	},
	{
		Name: ToolList,
		Description: `Lists stored question sets, newest first.

USAGE EXAMPLE:
interviewprep_list_question_sets(limit=5)`,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"limit": map[string]interface{}{
					"type":    "integer",
					"minimum": 1,
					"maximum": questionset.DefaultListLimit,
				},
				"offset": map[string]interface{}{
					"type":    "integer",
					"minimum": 0,
				},
			},
		},
	},
	{
		Name: ToolGet,
		Description: `Returns one question set with every question, answer and source context.

USAGE EXAMPLE:
interviewprep_get_question_set(id="4b1c...")`,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"id": map[string]string{
					"type":        "string",
					"description": "Question set id",
				},
			},
			"required": []string{"id"},
		},
	},
}

func (h *Handler) callTool(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	var params CallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		resp := makeErrorResponse(req.ID, ErrInvalidParams, "Invalid params")
		return &resp
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	var (
		result ToolResult
		rpcErr *JSONRPCResponse
	)
	switch params.Name {
	case ToolGenerate:
		result, rpcErr = h.generate(ctx, req.ID, params.Arguments)
	case ToolList:
		result, rpcErr = h.list(ctx, req.ID, params.Arguments)
	case ToolGet:
		result, rpcErr = h.get(ctx, req.ID, params.Arguments)
	default:
		slog.WarnContext(ctx, "tool not found", "tool", params.Name)
		resp := makeErrorResponse(req.ID, ErrMethodNotFound, "Method not found: "+params.Name)
		return &resp
	}
	if rpcErr != nil {
		return rpcErr
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", params.Name, "is_error", result.IsError)
	return &JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func invalidParams(id interface{}, message string) *JSONRPCResponse {
	resp := makeErrorResponse(id, ErrInvalidParams, message)
	return &resp
}

func (h *Handler) generate(ctx context.Context, id interface{}, raw json.RawMessage) (ToolResult, *JSONRPCResponse) {
	var args GenerateArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return ToolResult{}, invalidParams(id, "Invalid arguments")
	}
	if strings.TrimSpace(args.Text) == "" {
		return ToolResult{}, invalidParams(id, "text is required")
	}

	req := questionset.Request{
		Text:       args.Text,
		Filename:   args.Filename,
		Count:      args.Count,
		Difficulty: args.Difficulty,
		Language:   args.Language,
	}

	if args.Async {
		genID, err := h.sets.Enqueue(ctx, req)
		if err != nil {
			return errorResult(ctx, err), nil
		}
		return textResult(fmt.Sprintf("Generation queued.\nGeneration ID: %s", genID)), nil
	}

	set, err := h.sets.Generate(ctx, req)
	if err != nil {
		return errorResult(ctx, err), nil
	}
	return textResult(formatSet(set)), nil
}

func (h *Handler) list(ctx context.Context, id interface{}, raw json.RawMessage) (ToolResult, *JSONRPCResponse) {
	var args ListArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return ToolResult{}, invalidParams(id, "Invalid arguments")
	}
	if args.Limit <= 0 {
		args.Limit = defaultListLimit
	}

	sets, err := h.sets.List(ctx, args.Limit, args.Offset)
	if err != nil {
		return errorResult(ctx, err), nil
	}
	if len(sets) == 0 {
		return textResult("No question sets found."), nil
	}

	type summary struct {
		ID             string   `json:"id"`
		Title          string   `json:"title"`
		Difficulty     string   `json:"difficulty"`
		Language       string   `json:"language"`
		TotalQuestions int      `json:"total_questions"`
		Categories     []string `json:"categories"`
		CreatedAt      string   `json:"created_at"`
	}
	out := make([]summary, len(sets))
	for i, s := range sets {
		out[i] = summary{
			ID:             s.ID,
			Title:          s.Title,
			Difficulty:     string(s.Difficulty),
			Language:       s.Language,
			TotalQuestions: s.TotalQuestions,
			Categories:     s.Categories,
			CreatedAt:      s.CreatedAt.Format(time.RFC3339),
		}
	}

	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal question sets", "error", err)
		return ToolResult{Content: []ToolContent{{Type: "text", Text: "Error marshalling results"}}, IsError: true}, nil
	}
	return textResult(string(body)), nil
}

func (h *Handler) get(ctx context.Context, id interface{}, raw json.RawMessage) (ToolResult, *JSONRPCResponse) {
	var args GetArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return ToolResult{}, invalidParams(id, "Invalid arguments")
	}
	if args.ID == "" {
		return ToolResult{}, invalidParams(id, "id is required")
	}

	set, err := h.sets.Get(ctx, args.ID)
	if err != nil {
		return errorResult(ctx, err), nil
	}
	return textResult(formatSet(set)), nil
}

func textResult(text string) ToolResult {
	return ToolResult{Content: []ToolContent{{Type: "text", Text: text}}}
}

// errorResult phrases err so the calling agent knows whether to fix
// credentials, change the input, wait or retry.
func errorResult(ctx context.Context, err error) ToolResult {
	var genErr *question.GenerationError

	var msg string
	switch {
	case errors.Is(err, llm.ErrCredentialsMissing):
		msg = "Error: Gemini API key is not configured. Set it with PUT /settings."
	case resilience.IsQuotaExceeded(err):
		msg = "Error: the AI service quota is exhausted. Try again later."
	case resilience.IsRateLimitError(err):
		msg = "Error: the AI service is busy. Try again shortly."
	case errors.Is(err, questionset.ErrInsufficientContent),
		errors.Is(err, questionset.ErrDocumentTooLarge),
		errors.Is(err, document.ErrUnsupportedType),
		errors.Is(err, questionset.ErrInvalidCount),
		errors.Is(err, question.ErrInvalidDifficulty),
		errors.Is(err, question.ErrUnsupportedLanguage):
		msg = "Error: " + err.Error()
	case errors.Is(err, sql.ErrNoRows):
		msg = "Error: question set not found."
	case errors.As(err, &genErr), errors.Is(err, questionset.ErrNoQuestions):
		msg = "Error: failed to generate questions. Please try again."
	default:
		msg = "Error: internal error."
	}

	slog.WarnContext(ctx, "tool call failed", "error", err)
	return ToolResult{Content: []ToolContent{{Type: "text", Text: msg}}, IsError: true}
}

func formatSet(s *questionset.QuestionSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nID: %s\nDifficulty: %s\nLanguage: %s\nMethod: %s\nQuestions: %d\n",
		s.Title, s.ID, s.Difficulty, s.Language, s.Metadata.GenerationMethod, s.TotalQuestions)

	for i, q := range s.Questions {
		fmt.Fprintf(&b, "\n---\n%d. %s\n", i+1, q.Question)
		if q.Category != "" {
			fmt.Fprintf(&b, "Category: %s\n", q.Category)
		}
		fmt.Fprintf(&b, "Answer: %s\n", q.Answer)
		if len(q.Keywords) > 0 {
			fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(q.Keywords, ", "))
		}
		if q.SourceContext != "" {
			fmt.Fprintf(&b, "Source: %s\n", q.SourceContext)
		}
	}
	return b.String()
}
