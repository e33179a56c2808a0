package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"interviewprep/features/questionset"
	"interviewprep/internal/llm"
	"interviewprep/internal/middleware"
	"interviewprep/internal/resilience"
)

const (
	DefaultGenerationTimeout = 10 * time.Minute
	// DefaultMaxRateLimitAttempts is how many deliveries a rate-limited task
	// gets before it is parked in failed_jobs.
	DefaultMaxRateLimitAttempts = 5
)

type Generator interface {
	Generate(ctx context.Context, req questionset.Request) (*questionset.QuestionSet, error)
}

type FailureRecorder interface {
	Record(ctx context.Context, generationID string, payload []byte, cause error) error
}

// GenerationConsumer runs queued question generation tasks.
type GenerationConsumer struct {
	gen                  Generator
	failures             FailureRecorder
	timeout              time.Duration
	maxRateLimitAttempts uint16
}

func NewGenerationConsumer(gen Generator, failures FailureRecorder) *GenerationConsumer {
	return &GenerationConsumer{
		gen:                  gen,
		failures:             failures,
		timeout:              DefaultGenerationTimeout,
		maxRateLimitAttempts: DefaultMaxRateLimitAttempts,
	}
}

func (h *GenerationConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var req questionset.Request
	if err := json.Unmarshal(m.Body, &req); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if req.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, req.CorrelationID)
	}
	if req.GenerationID != "" {
		ctx = middleware.WithGenerationID(ctx, req.GenerationID)
	}

	genCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	set, err := h.gen.Generate(genCtx, req)
	if err == nil {
		slog.InfoContext(ctx, "generation task completed", "question_set_id", set.ID, "questions", set.TotalQuestions)
		return nil
	}

	// NSQ redelivers with its own backoff, which outlasts most short quota windows.
	if resilience.IsRateLimitError(err) && !resilience.IsQuotaExceeded(err) && m.Attempts < h.maxRateLimitAttempts {
		slog.WarnContext(ctx, "generation rate limited, requeueing", "attempt", m.Attempts, "error", err)
		return err
	}

	if errors.Is(err, llm.ErrCredentialsMissing) {
		slog.WarnContext(ctx, "generation task needs an api key", "error", err)
	} else {
		slog.ErrorContext(ctx, "generation task failed", "error", err)
	}

	if recErr := h.failures.Record(ctx, req.GenerationID, m.Body, err); recErr != nil {
		slog.ErrorContext(ctx, "failed to record failed job", "error", recErr)
		return recErr
	}
	return nil
}
