package questionset

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/lib/pq"

	"interviewprep/internal/document"
	"interviewprep/internal/llm"
	"interviewprep/internal/middleware"
	"interviewprep/internal/question"
	"interviewprep/internal/resilience"
)

const DefaultMaxUploadBytes = 20 << 20

type Handler struct {
	service        *Service
	maxUploadBytes int64
}

func NewHandler(service *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{service: service, maxUploadBytes: maxUploadBytes}
}

type createRequest struct {
	Request
	Async bool `json:"async"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Invalid request body", http.StatusBadRequest)
		return
	}
	// Ids are assigned by the server.
	req.GenerationID = ""
	req.CorrelationID = ""

	h.generate(w, r, req.Request, req.Async)
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(ctx, w, "INVALID_DOCUMENT", "File too large or malformed upload", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(ctx, w, "INVALID_DOCUMENT", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !document.Supported(header.Filename) {
		h.writeError(ctx, w, "INVALID_DOCUMENT", "Unsupported file type", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(ctx, w, "INVALID_DOCUMENT", "Failed to read file", http.StatusBadRequest)
		return
	}

	text, err := document.Extract(header.Filename, data)
	if err != nil {
		slog.WarnContext(ctx, "failed to extract document text", "filename", header.Filename, "error", err)
		h.writeServiceError(ctx, w, err)
		return
	}

	req := Request{
		Text:       text,
		Filename:   header.Filename,
		Difficulty: r.FormValue("difficulty"),
		Language:   r.FormValue("language"),
	}
	if c := r.FormValue("count"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil {
			h.writeError(ctx, w, "VALIDATION_ERROR", "count must be a number", http.StatusBadRequest)
			return
		}
		req.Count = n
	}
	async, _ := strconv.ParseBool(r.FormValue("async"))

	h.generate(w, r, req, async)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request, req Request, async bool) {
	ctx := r.Context()

	if async {
		id, err := h.service.Enqueue(ctx, req)
		if err != nil {
			h.writeServiceError(ctx, w, err)
			return
		}
		h.writeJSON(ctx, w, http.StatusAccepted, map[string]interface{}{
			"data": map[string]string{"generation_id": id, "status": "queued"},
		})
		return
	}

	set, err := h.service.Generate(ctx, req)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusCreated, map[string]interface{}{"data": set})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := DefaultListLimit, 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil {
			offset = parsed
		}
	}

	sets, err := h.service.List(ctx, limit, offset)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list question sets", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if sets == nil {
		sets = []QuestionSet{}
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": sets,
		"meta": map[string]int{"count": len(sets), "limit": limit, "offset": offset},
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	set, err := h.service.Get(ctx, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{"data": set})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Delete(ctx, r.PathValue("id")); err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError tells the client what to do next: fix credentials,
// re-upload or fix the request, wait, or simply try again.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		pqErr  *pq.Error
		genErr *question.GenerationError
	)

	switch {
	case errors.Is(err, llm.ErrCredentialsMissing):
		h.writeError(ctx, w, "API_KEY_MISSING", "Gemini API key is not configured. Add it in settings and try again.", http.StatusPreconditionFailed)

	case resilience.IsRateLimitError(err):
		msg := "The AI service is busy. Please try again shortly."
		if resilience.IsQuotaExceeded(err) {
			msg = "The AI service quota is exhausted. Please try again later or check your plan."
		}
		if d, ok := resilience.RetryDelay(err); ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
		}
		h.writeError(ctx, w, "RATE_LIMITED", msg, http.StatusTooManyRequests)

	case errors.Is(err, ErrInsufficientContent),
		errors.Is(err, ErrDocumentTooLarge),
		errors.Is(err, document.ErrUnsupportedType),
		errors.Is(err, document.ErrUnreadable):
		h.writeError(ctx, w, "INVALID_DOCUMENT", err.Error(), http.StatusBadRequest)

	case errors.Is(err, ErrInvalidCount),
		errors.Is(err, question.ErrInvalidDifficulty),
		errors.Is(err, question.ErrUnsupportedLanguage):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)

	case errors.Is(err, sql.ErrNoRows):
		h.writeError(ctx, w, "NOT_FOUND", "Question set not found", http.StatusNotFound)
	case errors.As(err, &pqErr) && pqErr.Code == "22P02":
		// Malformed UUID.
		h.writeError(ctx, w, "NOT_FOUND", "Question set not found", http.StatusNotFound)

	case errors.As(err, &genErr), errors.Is(err, ErrNoQuestions):
		slog.ErrorContext(ctx, "generation failed", "error", err)
		h.writeError(ctx, w, "GENERATION_FAILED", "Failed to generate questions. Please try again.", http.StatusBadGateway)

	default:
		slog.ErrorContext(ctx, "question set request failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
