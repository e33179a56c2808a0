package questionset_test

import (
	"context"
	"strings"
	"time"

	"github.com/stretchr/testify/mock"

	"interviewprep/features/questionset"
	"interviewprep/internal/question"
	"interviewprep/internal/settings"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Save(ctx context.Context, set *questionset.QuestionSet) error {
	args := m.Called(ctx, set)
	if set.ID == "" {
		set.ID = "set-1"
		set.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	}
	return args.Error(0)
}

func (m *MockRepo) Get(ctx context.Context, id string) (*questionset.QuestionSet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*questionset.QuestionSet), args.Error(1)
}

func (m *MockRepo) List(ctx context.Context, limit, offset int) ([]questionset.QuestionSet, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]questionset.QuestionSet), args.Error(1)
}

func (m *MockRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRepo) CountQuestions(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRepo) CountSince(ctx context.Context, since time.Time) (int, int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Int(1), args.Error(2)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateWithFallback(ctx context.Context, req question.Request) (*question.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*question.Result), args.Error(1)
}

type MockSettings struct {
	mock.Mock
}

func (m *MockSettings) Get(ctx context.Context) (*settings.Settings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settings.Settings), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	return m.Called(topic, body).Error(0)
}

// longText is comfortably above the minimum content length.
var longText = strings.Repeat("Goroutines are multiplexed onto OS threads by the Go scheduler. ", 5)

func sampleResult() *question.Result {
	return &question.Result{
		Questions: []question.Question{
			{Question: "What is a goroutine?", Answer: "A lightweight thread.", Difficulty: question.Medium, Category: "Concurrency", Keywords: []string{"goroutine"}},
			{Question: "What does the scheduler do?", Answer: "Multiplexes goroutines.", Difficulty: question.Medium, Category: "Runtime", Keywords: []string{"scheduler"}},
			{Question: "Why are goroutines cheap?", Answer: "Small stacks.", Difficulty: question.Medium, Category: "Concurrency", Keywords: []string{"stack"}},
		},
		Method:        question.MethodRAG,
		Model:         "gemini-2.5-pro",
		DocumentID:    "temp_x",
		ChunksIndexed: 1,
		ContextChars:  120,
	}
}

func configured() *settings.Settings {
	return &settings.Settings{ID: 1, GeminiAPIKey: "key", DefaultLanguage: "en", ProbeTopK: 2}
}
