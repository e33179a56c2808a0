package app_test

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewprep/internal/app"
	"interviewprep/internal/config"
)

type nopPublisher struct{}

func (nopPublisher) Publish(topic string, body []byte) error { return nil }

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		ServerPort:                   8081,
		QueryLogPath:                 t.TempDir() + "/query.log",
		MaxUploadSizeMB:              1,
		GeminiEmbeddingModel:         "gemini-embedding-001",
		GeminiFallbackEmbeddingModel: "text-embedding-004",
		GeminiGenerationModel:        "gemini-2.5-pro",
		GeminiDirectModel:            "gemini-2.5-flash",
		GeminiRequestsPerMinute:      60,
		ChunkSize:                    1000,
		ChunkOverlap:                 200,
		DefaultQuestionCount:         10,
		DefaultDifficulty:            "medium",
		DefaultLanguage:              "en",
		RetryMaxAttempts:             3,
		RetryBaseDelayMS:             10,
	}
}

func TestNew(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	a, err := app.New(testConfig(t), db, nopPublisher{}, logger)
	require.NoError(t, err)
	assert.NotNil(t, a.Handler)
	assert.NotNil(t, a.QuestionSets)
	assert.NotNil(t, a.GenerationConsumer)

	t.Run("Health", func(t *testing.T) {
		w := httptest.NewRecorder()
		a.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("CORS Preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		a.Handler.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/question-sets", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Question Set Not Found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM question_sets WHERE id = $1`)).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		w := httptest.NewRecorder()
		a.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/question-sets/missing", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "NOT_FOUND")
		assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
	})

	t.Run("Short Document Rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/question-sets", strings.NewReader(`{"text":"too short"}`))
		a.Handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_DOCUMENT")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_SeedsAPIKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, gemini_api_key, default_language, probe_top_k FROM settings WHERE id = 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "gemini_api_key", "default_language", "probe_top_k"}).AddRow(1, "", "en", 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE settings`)).
		WithArgs("env-key", "en", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cfg := testConfig(t)
	cfg.GeminiAPIKey = "env-key"

	_, err = app.New(cfg, db, nopPublisher{}, slog.Default())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_SeedFailureIsNotFatal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM settings`)).WillReturnError(sql.ErrConnDone)

	cfg := testConfig(t)
	cfg.GeminiAPIKey = "env-key"

	a, err := app.New(cfg, db, nopPublisher{}, slog.Default())
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestRun_NothingEnabled(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a, err := app.New(testConfig(t), db, nopPublisher{}, slog.Default())
	require.NoError(t, err)

	assert.NoError(t, a.Run(context.Background()))
}
