package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nsqio/go-nsq"
	"golang.org/x/sync/errgroup"

	"interviewprep/features/job"
	"interviewprep/features/mcp"
	"interviewprep/features/questionset"
	"interviewprep/features/stats"
	"interviewprep/internal/adapter/gemini"
	"interviewprep/internal/config"
	"interviewprep/internal/llm"
	"interviewprep/internal/middleware"
	"interviewprep/internal/question"
	"interviewprep/internal/resilience"
	"interviewprep/internal/retrieval"
	"interviewprep/internal/settings"
	"interviewprep/internal/worker"
)

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler            http.Handler
	QuestionSets       *questionset.Service
	GenerationConsumer *worker.GenerationConsumer

	cfg    *config.Config
	gemini *gemini.Client
}

func New(
	cfg *config.Config,
	db *sql.DB,
	taskPub TaskPublisher,
	logger *slog.Logger,
) (*App, error) {
	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(db)
	settingsService := settings.NewService(settingsRepo)
	if cfg.GeminiAPIKey != "" {
		if err := settingsService.SeedAPIKey(context.Background(), cfg.GeminiAPIKey); err != nil {
			slog.Warn("failed to seed gemini api key", "error", err)
		}
	}
	settingsHandler := settings.NewHandler(settingsService)

	// Adapters: Gemini
	geminiClient := gemini.NewClient(settingsService, gemini.NewLimiter(cfg.GeminiRequestsPerMinute))

	retryOpts := []resilience.Option{
		resilience.WithMaxRetries(cfg.RetryMaxAttempts),
		resilience.WithBaseDelay(cfg.RetryBaseDelay()),
	}

	providers := []retrieval.Provider{
		{Name: cfg.GeminiEmbeddingModel, Embedder: geminiClient.Embedder(cfg.GeminiEmbeddingModel)},
	}
	if fb := cfg.GeminiFallbackEmbeddingModel; fb != "" && fb != cfg.GeminiEmbeddingModel {
		providers = append(providers, retrieval.Provider{Name: fb, Embedder: geminiClient.Embedder(fb)})
	}
	embedder := retrieval.NewFallbackEmbedder(providers, retryOpts...)

	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	generator := question.NewGenerator(
		question.Config{
			Model:            cfg.GeminiGenerationModel,
			DirectModel:      cfg.GeminiDirectModel,
			ChunkSize:        cfg.ChunkSize,
			ChunkOverlap:     cfg.ChunkOverlap,
			ProbeTopK:        cfg.ProbeTopK,
			ContextCharLimit: cfg.ContextCharLimit,
			MaxDocumentChars: cfg.MaxDocumentChars,
			Options: llm.GenerationOptions{
				Temperature:     cfg.Temperature,
				TopP:            cfg.TopP,
				TopK:            cfg.TopK,
				MaxOutputTokens: cfg.MaxOutputTokens,
			},
			RetryOptions: retryOpts,
		},
		embedder,
		geminiClient.Generator(cfg.GeminiGenerationModel),
		geminiClient.Generator(cfg.GeminiDirectModel),
		retrieval.NewRetriever(queryLogger),
	)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, taskPub, logger)
	jobHandler := job.NewHandler(jobService)

	// Feature: Question sets
	difficulty, _ := question.ParseDifficulty(cfg.DefaultDifficulty)
	questionSetRepo := questionset.NewPostgresRepo(db)
	questionSetService := questionset.NewService(questionSetRepo, generator, settingsService, taskPub, questionset.Defaults{
		Count:            cfg.DefaultQuestionCount,
		Difficulty:       difficulty,
		Language:         cfg.DefaultLanguage,
		MaxDocumentChars: cfg.MaxDocumentChars,
	})
	questionSetHandler := questionset.NewHandler(questionSetService, cfg.MaxUploadSizeMB<<20)

	// Feature: Stats
	statsHandler := stats.NewHandler(questionSetRepo, jobRepo)

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /question-sets", middleware.CorrelationID(enableCORS(questionSetHandler.Create)))
	mux.Handle("POST /question-sets/upload", middleware.CorrelationID(enableCORS(questionSetHandler.Upload)))
	mux.Handle("GET /question-sets", middleware.CorrelationID(enableCORS(questionSetHandler.List)))
	mux.Handle("GET /question-sets/{id}", middleware.CorrelationID(enableCORS(questionSetHandler.Get)))
	mux.Handle("DELETE /question-sets/{id}", middleware.CorrelationID(enableCORS(questionSetHandler.Delete)))

	mux.Handle("GET /settings", middleware.CorrelationID(enableCORS(settingsHandler.GetSettings)))
	mux.Handle("PUT /settings", middleware.CorrelationID(enableCORS(settingsHandler.UpdateSettings)))

	mux.Handle("GET /jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))
	mux.Handle("DELETE /jobs/{id}", middleware.CorrelationID(enableCORS(jobHandler.Delete)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	// Feature: MCP
	mcpHandler := mcp.NewHandler(questionSetService)
	mux.Handle("POST /mcp", middleware.CorrelationID(mcpHandler))
	mux.Handle("GET /mcp/sse", middleware.CorrelationID(enableCORS(mcpHandler.HandleSSE)))
	mux.Handle("POST /mcp/messages", middleware.CorrelationID(enableCORS(mcpHandler.HandleMessage)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:            mux,
		QuestionSets:       questionSetService,
		GenerationConsumer: worker.NewGenerationConsumer(questionSetService, jobService),
		cfg:                cfg,
		gemini:             geminiClient,
	}, nil
}

// Middleware: CORS
func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Correlation-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// Run serves the API and consumes generation tasks, as enabled in config,
// until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := a.gemini.Close(); err != nil {
			slog.Warn("failed to close gemini client", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.EnableAPI {
		g.Go(func() error { return a.serve(gctx) })
	}
	if a.cfg.EnableGenerationWorker {
		g.Go(func() error { return a.consume(gctx) })
	}

	return g.Wait()
}

func (a *App) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) consume(ctx context.Context) error {
	concurrency := max(a.cfg.GenerationConcurrency, 1)

	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = concurrency
	// Generation runs for minutes; keep NSQ from redelivering mid-run.
	nsqCfg.MsgTimeout = worker.DefaultGenerationTimeout + time.Minute

	consumer, err := nsq.NewConsumer(config.TopicGenerateTask, config.ChannelGenerationWorker, nsqCfg)
	if err != nil {
		return fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.AddConcurrentHandlers(a.GenerationConsumer, concurrency)

	if a.cfg.NSQLookupd != "" {
		err = consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd)
	} else {
		err = consumer.ConnectToNSQD(a.cfg.NSQDHost)
	}
	if err != nil {
		consumer.Stop()
		return fmt.Errorf("nsq connect error: %w", err)
	}
	slog.Info("generation worker connected", "topic", config.TopicGenerateTask, "concurrency", concurrency)

	<-ctx.Done()
	consumer.Stop()
	<-consumer.StopChan
	return nil
}
