package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"time"

	"interviewprep/internal/middleware"
)

// RecentWindow is how far back the recent_* counters look.
const RecentWindow = 30 * 24 * time.Hour

type QuestionSetRepo interface {
	Count(ctx context.Context) (int, error)
	CountQuestions(ctx context.Context) (int, error)
	CountSince(ctx context.Context, since time.Time) (sets int, questions int, err error)
}

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	setRepo QuestionSetRepo
	jobRepo JobRepo
	now     func() time.Time
}

func NewHandler(s QuestionSetRepo, j JobRepo) *Handler {
	return &Handler{setRepo: s, jobRepo: j, now: time.Now}
}

type StatsResponse struct {
	TotalSessions          int     `json:"total_sessions"`
	TotalQuestions         int     `json:"total_questions"`
	RecentSessions         int     `json:"recent_sessions"`
	RecentQuestions        int     `json:"recent_questions"`
	AvgQuestionsPerSession float64 `json:"avg_questions_per_session"`
	FailedJobs             int     `json:"failed_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	sessions, err := h.setRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count question sets", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count question sets", http.StatusInternalServerError)
		return
	}

	questions, err := h.setRepo.CountQuestions(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count questions", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count questions", http.StatusInternalServerError)
		return
	}

	recentSessions, recentQuestions, err := h.setRepo.CountSince(ctx, h.now().Add(-RecentWindow))
	if err != nil {
		slog.ErrorContext(ctx, "failed to count recent question sets", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count recent question sets", http.StatusInternalServerError)
		return
	}

	jCount, err := h.jobRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		TotalSessions:   sessions,
		TotalQuestions:  questions,
		RecentSessions:  recentSessions,
		RecentQuestions: recentQuestions,
		FailedJobs:      jCount,
	}
	if sessions > 0 {
		// One decimal place.
		resp.AvgQuestionsPerSession = math.Round(float64(questions)/float64(sessions)*10) / 10
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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
