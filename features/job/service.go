package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"interviewprep/internal/config"
)

const publishTimeout = 5 * time.Second

var (
	ErrInvalidPayload = errors.New("job payload is not valid JSON")
	ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo           Repository
	pub            EventPublisher
	logger         *slog.Logger
	publishTimeout time.Duration
}

func NewService(repo Repository, pub EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, logger: logger, publishTimeout: publishTimeout}
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Record stores a failed generation task.
func (s *Service) Record(ctx context.Context, generationID string, payload []byte, cause error) error {
	j := &Job{
		GenerationID: generationID,
		Handler:      HandlerGeneration,
		Payload:      json.RawMessage(payload),
		Error:        cause.Error(),
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return fmt.Errorf("save failed job: %w", err)
	}
	s.logger.InfoContext(ctx, "recorded failed job", "id", j.ID, "generation_id", generationID)
	return nil
}

// Retry republishes the job's payload to the generation topic and removes
// the job. The job is kept if publishing fails.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if !json.Valid(job.Payload) {
		return fmt.Errorf("%w: job %s", ErrInvalidPayload, id)
	}

	if err := s.publish(ctx, config.TopicGenerateTask, job.Payload); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "job republished", "id", id, "topic", config.TopicGenerateTask)
	return s.repo.Delete(ctx, id)
}

func (s *Service) publish(ctx context.Context, topic string, body []byte) error {
	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(topic, body)
	}()

	timer := time.NewTimer(s.publishTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrPublishTimeout
	}
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
