package questionset

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const DefaultListLimit = 50

type Repository interface {
	Save(ctx context.Context, set *QuestionSet) error
	Get(ctx context.Context, id string) (*QuestionSet, error)
	List(ctx context.Context, limit, offset int) ([]QuestionSet, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	CountQuestions(ctx context.Context) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const selectColumns = `id, title, filename, difficulty, language, categories, questions, total_questions, metadata, created_at`

func (r *PostgresRepo) Save(ctx context.Context, set *QuestionSet) error {
	questions, err := json.Marshal(set.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	metadata, err := json.Marshal(set.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `INSERT INTO question_sets (title, filename, difficulty, language, categories, questions, total_questions, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query,
		set.Title, set.Filename, string(set.Difficulty), set.Language, pq.Array(set.Categories),
		questions, set.TotalQuestions, metadata,
	).Scan(&set.ID, &set.CreatedAt)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSet(row scanner) (*QuestionSet, error) {
	var (
		s         QuestionSet
		questions []byte
		metadata  []byte
	)
	err := row.Scan(&s.ID, &s.Title, &s.Filename, &s.Difficulty, &s.Language, pq.Array(&s.Categories),
		&questions, &s.TotalQuestions, &metadata, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &s.Questions); err != nil {
		return nil, fmt.Errorf("decode questions of %s: %w", s.ID, err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", s.ID, err)
		}
	}
	if s.Categories == nil {
		s.Categories = []string{}
	}
	return &s, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*QuestionSet, error) {
	query := `SELECT ` + selectColumns + ` FROM question_sets WHERE id = $1`
	return scanSet(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepo) List(ctx context.Context, limit, offset int) ([]QuestionSet, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + selectColumns + ` FROM question_sets ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []QuestionSet
	for rows.Next() {
		s, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *s)
	}
	return sets, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM question_sets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM question_sets`).Scan(&count)
	return count, err
}

func (r *PostgresRepo) CountQuestions(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(total_questions), 0) FROM question_sets`).Scan(&count)
	return count, err
}

// CountSince returns how many sets, and how many questions in them, were
// created at or after since.
func (r *PostgresRepo) CountSince(ctx context.Context, since time.Time) (int, int, error) {
	var sets, questions int
	query := `SELECT COUNT(*), COALESCE(SUM(total_questions), 0) FROM question_sets WHERE created_at >= $1`
	err := r.db.QueryRowContext(ctx, query, since).Scan(&sets, &questions)
	return sets, questions, err
}
