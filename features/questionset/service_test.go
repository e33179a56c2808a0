package questionset_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"interviewprep/features/questionset"
	"interviewprep/internal/config"
	"interviewprep/internal/llm"
	"interviewprep/internal/middleware"
	"interviewprep/internal/question"
	"interviewprep/internal/settings"
)

func newService(repo *MockRepo, gen *MockGenerator, set *MockSettings, pub *MockPublisher) *questionset.Service {
	return questionset.NewService(repo, gen, set, pub, questionset.Defaults{Count: 10, Difficulty: question.Medium, Language: "en"})
}

func TestService_Generate(t *testing.T) {
	repo, gen, set := new(MockRepo), new(MockGenerator), new(MockSettings)
	svc := newService(repo, gen, set, nil)

	set.On("Get", mock.Anything).Return(&settings.Settings{GeminiAPIKey: "key", DefaultLanguage: "nl", ProbeTopK: 3}, nil)
	gen.On("GenerateWithFallback", mock.MatchedBy(func(ctx context.Context) bool {
		return middleware.GetGenerationID(ctx) != ""
	}), question.Request{
		Text:       longText,
		Count:      3,
		Difficulty: question.Hard,
		Filename:   "go.md",
		Language:   "nl",
		ProbeTopK:  3,
	}).Return(sampleResult(), nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*questionset.QuestionSet")).Return(nil)

	got, err := svc.Generate(context.Background(), questionset.Request{
		Text:       longText,
		Filename:   "go.md",
		Count:      3,
		Difficulty: "HARD",
	})
	require.NoError(t, err)

	assert.Equal(t, "set-1", got.ID)
	assert.Equal(t, "Questions from go.md", got.Title)
	assert.Equal(t, question.Hard, got.Difficulty)
	assert.Equal(t, "nl", got.Language)
	assert.Equal(t, 3, got.TotalQuestions)
	assert.Equal(t, []string{"Concurrency", "Runtime"}, got.Categories)
	assert.Equal(t, "rag", got.Metadata.GenerationMethod)
	assert.True(t, got.Metadata.RAGEnabled)
	assert.Equal(t, "gemini-2.5-pro", got.Metadata.AIModel)
	assert.Equal(t, len([]rune(longText)), got.Metadata.DocumentLength)
	assert.NotEmpty(t, got.Metadata.GenerationID)
	assert.False(t, got.Metadata.GeneratedAt.IsZero())

	gen.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestService_Generate_Defaults(t *testing.T) {
	repo, gen, set := new(MockRepo), new(MockGenerator), new(MockSettings)
	svc := newService(repo, gen, set, nil)

	set.On("Get", mock.Anything).Return(&settings.Settings{GeminiAPIKey: "key"}, nil)
	gen.On("GenerateWithFallback", mock.Anything, question.Request{
		Text:       longText,
		Count:      10,
		Difficulty: question.Medium,
		Filename:   "document.txt",
		Language:   "en",
	}).Return(sampleResult(), nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Generate(context.Background(), questionset.Request{Text: longText})
	require.NoError(t, err)
	gen.AssertExpectations(t)
}

func TestService_Generate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   questionset.Request
		errIs error
	}{
		{"Short Text", questionset.Request{Text: "too short"}, questionset.ErrInsufficientContent},
		{"Whitespace Padding Does Not Count", questionset.Request{Text: "   " + longText[:50] + "        "}, questionset.ErrInsufficientContent},
		{"Count Too High", questionset.Request{Text: longText, Count: 51}, questionset.ErrInvalidCount},
		{"Negative Count", questionset.Request{Text: longText, Count: -1}, questionset.ErrInvalidCount},
		{"Bad Difficulty", questionset.Request{Text: longText, Difficulty: "expert"}, question.ErrInvalidDifficulty},
		{"Bad Language", questionset.Request{Text: longText, Language: "xx"}, question.ErrUnsupportedLanguage},
		{"Document Too Large", questionset.Request{Text: strings.Repeat("a", questionset.DefaultMaxDocumentChars+1)}, questionset.ErrDocumentTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, gen, set := new(MockRepo), new(MockGenerator), new(MockSettings)
			set.On("Get", mock.Anything).Return(configured(), nil).Maybe()
			svc := newService(repo, gen, set, nil)

			_, err := svc.Generate(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.errIs)
			gen.AssertNotCalled(t, "GenerateWithFallback", mock.Anything, mock.Anything)
		})
	}
}

func TestService_Generate_MissingKey(t *testing.T) {
	repo, gen, set := new(MockRepo), new(MockGenerator), new(MockSettings)
	svc := newService(repo, gen, set, nil)
	set.On("Get", mock.Anything).Return(&settings.Settings{}, nil)

	_, err := svc.Generate(context.Background(), questionset.Request{Text: longText})
	assert.ErrorIs(t, err, llm.ErrCredentialsMissing)
	gen.AssertNotCalled(t, "GenerateWithFallback", mock.Anything, mock.Anything)
}

func TestService_Generate_Failures(t *testing.T) {
	t.Run("Generator Error", func(t *testing.T) {
		repo, gen, set := new(MockRepo), new(MockGenerator), new(MockSettings)
		svc := newService(repo, gen, set, nil)
		set.On("Get", mock.Anything).Return(configured(), nil)
		genErr := &question.GenerationError{Stage: question.StageInvoke, Cause: errors.New("boom")}
		gen.On("GenerateWithFallback", mock.Anything, mock.Anything).Return(nil, genErr)

		_, err := svc.Generate(context.Background(), questionset.Request{Text: longText})
		assert.ErrorIs(t, err, genErr)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("No Questions", func(t *testing.T) {
		repo, gen, set := new(MockRepo), new(MockGenerator), new(MockSettings)
		svc := newService(repo, gen, set, nil)
		set.On("Get", mock.Anything).Return(configured(), nil)
		gen.On("GenerateWithFallback", mock.Anything, mock.Anything).Return(&question.Result{Method: question.MethodRAG}, nil)

		_, err := svc.Generate(context.Background(), questionset.Request{Text: longText})
		assert.ErrorIs(t, err, questionset.ErrNoQuestions)
	})

	t.Run("Save Error", func(t *testing.T) {
		repo, gen, set := new(MockRepo), new(MockGenerator), new(MockSettings)
		svc := newService(repo, gen, set, nil)
		set.On("Get", mock.Anything).Return(configured(), nil)
		gen.On("GenerateWithFallback", mock.Anything, mock.Anything).Return(sampleResult(), nil)
		repo.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down"))

		_, err := svc.Generate(context.Background(), questionset.Request{Text: longText})
		assert.ErrorContains(t, err, "db down")
	})

	t.Run("Settings Error", func(t *testing.T) {
		repo, gen, set := new(MockRepo), new(MockGenerator), new(MockSettings)
		svc := newService(repo, gen, set, nil)
		set.On("Get", mock.Anything).Return(nil, errors.New("no settings row"))

		_, err := svc.Generate(context.Background(), questionset.Request{Text: longText})
		assert.ErrorContains(t, err, "no settings row")
	})
}

func TestService_Enqueue(t *testing.T) {
	repo, gen, set, pub := new(MockRepo), new(MockGenerator), new(MockSettings), new(MockPublisher)
	svc := newService(repo, gen, set, pub)
	set.On("Get", mock.Anything).Return(configured(), nil)

	var published questionset.Request
	pub.On("Publish", config.TopicGenerateTask, mock.Anything).Run(func(args mock.Arguments) {
		require.NoError(t, json.Unmarshal(args.Get(1).([]byte), &published))
	}).Return(nil)

	id, err := svc.Enqueue(context.Background(), questionset.Request{Text: longText, Filename: "cv.pdf", Difficulty: "easy"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, published.GenerationID)
	assert.Equal(t, "cv.pdf", published.Filename)
	assert.Equal(t, "easy", published.Difficulty)
	assert.Equal(t, 10, published.Count)
	assert.Equal(t, "en", published.Language)
	gen.AssertNotCalled(t, "GenerateWithFallback", mock.Anything, mock.Anything)
}

func TestService_Enqueue_Errors(t *testing.T) {
	t.Run("Validation Before Publish", func(t *testing.T) {
		pub := new(MockPublisher)
		svc := newService(new(MockRepo), new(MockGenerator), new(MockSettings), pub)

		_, err := svc.Enqueue(context.Background(), questionset.Request{Text: "short"})
		assert.ErrorIs(t, err, questionset.ErrInsufficientContent)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("Document Over Configured Limit", func(t *testing.T) {
		set, pub := new(MockSettings), new(MockPublisher)
		set.On("Get", mock.Anything).Return(configured(), nil).Maybe()
		svc := questionset.NewService(new(MockRepo), new(MockGenerator), set, pub, questionset.Defaults{MaxDocumentChars: 200})

		_, err := svc.Enqueue(context.Background(), questionset.Request{Text: strings.Repeat("word ", 50)})
		assert.ErrorIs(t, err, questionset.ErrDocumentTooLarge)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("Task Over Queue Message Limit", func(t *testing.T) {
		set, pub := new(MockSettings), new(MockPublisher)
		set.On("Get", mock.Anything).Return(configured(), nil)
		svc := questionset.NewService(new(MockRepo), new(MockGenerator), set, pub, questionset.Defaults{MaxDocumentChars: 4 << 20})

		_, err := svc.Enqueue(context.Background(), questionset.Request{Text: strings.Repeat("x", 1<<20+1)})
		assert.ErrorIs(t, err, questionset.ErrDocumentTooLarge)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("Publish Error", func(t *testing.T) {
		set, pub := new(MockSettings), new(MockPublisher)
		svc := newService(new(MockRepo), new(MockGenerator), set, pub)
		set.On("Get", mock.Anything).Return(configured(), nil)
		pub.On("Publish", config.TopicGenerateTask, mock.Anything).Return(errors.New("nsqd unreachable"))

		_, err := svc.Enqueue(context.Background(), questionset.Request{Text: longText})
		assert.ErrorContains(t, err, "nsqd unreachable")
	})
}

func TestService_Generate_KeepsGenerationID(t *testing.T) {
	repo, gen, set := new(MockRepo), new(MockGenerator), new(MockSettings)
	svc := newService(repo, gen, set, nil)
	set.On("Get", mock.Anything).Return(configured(), nil)
	gen.On("GenerateWithFallback", mock.MatchedBy(func(ctx context.Context) bool {
		return middleware.GetGenerationID(ctx) == "gen-42"
	}), mock.Anything).Return(sampleResult(), nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.Generate(context.Background(), questionset.Request{GenerationID: "gen-42", Text: longText})
	require.NoError(t, err)
	assert.Equal(t, "gen-42", got.Metadata.GenerationID)
}
