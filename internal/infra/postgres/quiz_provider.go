package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-session-service/internal/domain"
)

// QuizProvider loads published quiz definitions (JSONB) from Postgres by
// their public slug.
type QuizProvider struct {
	pool *pgxpool.Pool
}

func NewQuizProvider(pool *pgxpool.Pool) *QuizProvider {
	return &QuizProvider{pool: pool}
}

func (p *QuizProvider) FetchBySlug(ctx context.Context, slug string) (domain.Quiz, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE slug=$1`, slug).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}
