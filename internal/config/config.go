package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"interviewprep"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"interviewprep"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	EnableAPI              bool   `envconfig:"ENABLE_API" default:"true"`
	EnableGenerationWorker bool   `envconfig:"ENABLE_GENERATION_WORKER" default:"false"`
	GenerationConcurrency  int    `envconfig:"GENERATION_CONCURRENCY" default:"4"`
	MigrationPath          string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"20"`

	// Gemini
	GeminiAPIKey                 string `envconfig:"GEMINI_API_KEY"`
	GeminiEmbeddingModel         string `envconfig:"GEMINI_EMBEDDING_MODEL" default:"gemini-embedding-001"`
	GeminiFallbackEmbeddingModel string `envconfig:"GEMINI_FALLBACK_EMBEDDING_MODEL" default:"text-embedding-004"`
	GeminiGenerationModel        string `envconfig:"GEMINI_GENERATION_MODEL" default:"gemini-2.5-pro"`
	GeminiDirectModel            string `envconfig:"GEMINI_DIRECT_MODEL" default:"gemini-2.5-flash"`
	GeminiRequestsPerMinute      int    `envconfig:"GEMINI_REQUESTS_PER_MINUTE" default:"60"`

	// Pipeline
	ChunkSize            int     `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap         int     `envconfig:"CHUNK_OVERLAP" default:"200"`
	ProbeTopK            int     `envconfig:"PROBE_TOP_K" default:"2"`
	ContextCharLimit     int     `envconfig:"CONTEXT_CHAR_LIMIT" default:"8000"`
	MaxDocumentChars     int     `envconfig:"MAX_DOCUMENT_CHARS" default:"100000"`
	DefaultQuestionCount int     `envconfig:"DEFAULT_QUESTION_COUNT" default:"10"`
	DefaultDifficulty    string  `envconfig:"DEFAULT_DIFFICULTY" default:"medium"`
	DefaultLanguage      string  `envconfig:"DEFAULT_LANGUAGE" default:"en"`
	Temperature          float32 `envconfig:"GENERATION_TEMPERATURE" default:"0.7"`
	TopP                 float32 `envconfig:"GENERATION_TOP_P" default:"0.9"`
	TopK                 int32   `envconfig:"GENERATION_TOP_K" default:"40"`
	MaxOutputTokens      int32   `envconfig:"GENERATION_MAX_OUTPUT_TOKENS" default:"8192"`

	// Resilience
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelayMS           int `envconfig:"RETRY_BASE_DELAY_MS" default:"1000"`
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell win; a missing .env is fine.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.GeminiEmbeddingModel == "" {
		return fmt.Errorf("%w: GEMINI_EMBEDDING_MODEL", ErrMissingRequired)
	}
	if c.GeminiGenerationModel == "" {
		return fmt.Errorf("%w: GEMINI_GENERATION_MODEL", ErrMissingRequired)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: CHUNK_SIZE must be positive", ErrInvalidValue)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: CHUNK_OVERLAP must not be negative", ErrInvalidValue)
	}
	if c.MaxDocumentChars <= 0 {
		return fmt.Errorf("%w: MAX_DOCUMENT_CHARS must be positive", ErrInvalidValue)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("%w: RETRY_MAX_ATTEMPTS must be at least 1", ErrInvalidValue)
	}
	if c.RetryBaseDelayMS < 0 {
		return fmt.Errorf("%w: RETRY_BASE_DELAY_MS must not be negative", ErrInvalidValue)
	}
	switch strings.ToLower(c.DefaultDifficulty) {
	case "easy", "medium", "hard":
	default:
		return fmt.Errorf("%w: DEFAULT_DIFFICULTY %q", ErrInvalidValue, c.DefaultDifficulty)
	}
	return nil
}

// RetryBaseDelay is RETRY_BASE_DELAY_MS as a duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// DSN builds the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}
