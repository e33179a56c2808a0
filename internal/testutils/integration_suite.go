package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"interviewprep/internal/config"
)

// IntegrationSuite starts Postgres (migrated) and nsqd in containers.
type IntegrationSuite struct {
	T       *testing.T
	DB      *sql.DB
	DSN     string
	NSQ     *nsq.Producer
	NSQAddr string
	NSQHTTP string

	pgContainer  *postgres.PostgresContainer
	nsqContainer testcontainers.Container
}

func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	return &IntegrationSuite{T: t}
}

// MigrationPath is the file:// URL of the repository's migrations directory.
func MigrationPath() string {
	_, b, _, _ := runtime.Caller(0)
	return fmt.Sprintf("file://%s/../../migrations", filepath.Dir(b))
}

func (s *IntegrationSuite) Setup() {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("interviewprep_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(s.T, err)
	s.pgContainer = pgContainer

	s.DSN, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T, err)

	s.DB, err = sql.Open("postgres", s.DSN)
	require.NoError(s.T, err)

	m, err := migrate.New(MigrationPath(), s.DSN)
	require.NoError(s.T, err)
	require.NoError(s.T, m.Up())

	nsqReq := testcontainers.ContainerRequest{
		Image:        "nsqio/nsq:v1.3.0",
		ExposedPorts: []string{"4150/tcp", "4151/tcp"},
		Cmd:          []string{"/nsqd", "--broadcast-address=localhost"},
		WaitingFor:   wait.ForLog("TCP: listening on").WithStartupTimeout(60 * time.Second),
	}
	nsqC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: nsqReq,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.nsqContainer = nsqC

	nsqHost, err := nsqC.Host(ctx)
	require.NoError(s.T, err)
	nsqPort, err := nsqC.MappedPort(ctx, "4150")
	require.NoError(s.T, err)

	s.NSQAddr = fmt.Sprintf("%s:%s", nsqHost, nsqPort.Port())
	nsqHTTPPort, err := nsqC.MappedPort(ctx, "4151")
	require.NoError(s.T, err)
	s.NSQHTTP = fmt.Sprintf("%s:%s", nsqHost, nsqHTTPPort.Port())
	s.NSQ, err = nsq.NewProducer(s.NSQAddr, nsq.NewConfig())
	require.NoError(s.T, err)
}

// GetAppConfig returns a config pointing at the suite's containers, with
// lookupd disabled so consumers connect to nsqd directly.
func (s *IntegrationSuite) GetAppConfig() *config.Config {
	ctx := context.Background()

	host, err := s.pgContainer.Host(ctx)
	require.NoError(s.T, err)
	port, err := s.pgContainer.MappedPort(ctx, "5432")
	require.NoError(s.T, err)

	return &config.Config{
		DBHost:                       host,
		DBPort:                       port.Int(),
		DBUser:                       "test",
		DBPass:                       "test",
		DBName:                       "interviewprep_test",
		NSQDHost:                     s.NSQAddr,
		NSQDHTTP:                     s.NSQHTTP,
		EnableAPI:                    true,
		GenerationConcurrency:        1,
		MigrationPath:                MigrationPath(),
		ServerPort:                   8081,
		QueryLogPath:                 s.T.TempDir() + "/query.log",
		MaxUploadSizeMB:              20,
		GeminiEmbeddingModel:         "gemini-embedding-001",
		GeminiFallbackEmbeddingModel: "text-embedding-004",
		GeminiGenerationModel:        "gemini-2.5-pro",
		GeminiDirectModel:            "gemini-2.5-flash",
		ChunkSize:                    1000,
		ChunkOverlap:                 200,
		ProbeTopK:                    2,
		ContextCharLimit:             8000,
		MaxDocumentChars:             100000,
		DefaultQuestionCount:         10,
		DefaultDifficulty:            "medium",
		DefaultLanguage:              "en",
		RetryMaxAttempts:             1,
		BootstrapRetryAttempts:       5,
		BootstrapRetryDelaySeconds:   1,
	}
}

func (s *IntegrationSuite) Teardown() {
	ctx := context.Background()
	if s.NSQ != nil {
		s.NSQ.Stop()
	}
	if s.DB != nil {
		s.DB.Close()
	}
	if s.pgContainer != nil {
		s.pgContainer.Terminate(ctx)
	}
	if s.nsqContainer != nil {
		s.nsqContainer.Terminate(ctx)
	}
}
