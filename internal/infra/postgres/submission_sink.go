package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-session-service/internal/domain"
)

// SubmissionSink writes accepted responses into the quiz_responses
// table.
type SubmissionSink struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

func NewSubmissionSink(pool *pgxpool.Pool) *SubmissionSink {
	return &SubmissionSink{pool: pool, clock: time.Now}
}

func (s *SubmissionSink) Submit(ctx context.Context, slug string, sub domain.Submission) error {
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO quiz_responses
			(id, quiz_slug, answers, respondent_name, respondent_email, completing_time, score, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), slug, answers,
		nullable(sub.RespondentName), nullable(sub.RespondentEmail),
		sub.ElapsedSeconds, sub.ScorePercent, s.clock().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
