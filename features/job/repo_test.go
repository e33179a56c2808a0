package job_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewprep/features/job"
)

var jobColumns = []string{"id", "generation_id", "handler", "payload", "error", "retries", "created_at"}

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)
	now := time.Now()
	j := &job.Job{GenerationID: "gen-1", Handler: job.HandlerGeneration, Payload: json.RawMessage(`{"a":1}`), Error: "boom"}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO failed_jobs (generation_id, handler, payload, error) VALUES ($1, $2, $3, $4) RETURNING id, created_at, retries`)).
		WithArgs("gen-1", job.HandlerGeneration, []byte(`{"a":1}`), "boom").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "retries"}).AddRow("job-1", now, 0))

	require.NoError(t, repo.Save(context.Background(), j))
	assert.Equal(t, "job-1", j.ID)
	assert.Equal(t, now, j.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ListAndGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, generation_id, handler, payload, error, retries, created_at FROM failed_jobs ORDER BY created_at DESC`)).
		WillReturnRows(sqlmock.NewRows(jobColumns).
			AddRow("j2", "g2", job.HandlerGeneration, []byte(`{"n":2}`), "e2", 0, now).
			AddRow("j1", "g1", job.HandlerGeneration, []byte(`{"n":1}`), "e1", 1, now.Add(-time.Minute)))

	jobs, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j2", jobs[0].ID)
	assert.JSONEq(t, `{"n":1}`, string(jobs[1].Payload))
	assert.Equal(t, 1, jobs[1].Retries)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, generation_id, handler, payload, error, retries, created_at FROM failed_jobs WHERE id = $1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM failed_jobs WHERE id = $1`)).
		WithArgs("j1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Delete(context.Background(), "j1"))

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM failed_jobs WHERE id = $1`)).
		WithArgs("j2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "j2"), sql.ErrNoRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM failed_jobs`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := job.NewPostgresRepo(db).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
