package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
)

func TestQuizProviderCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	source := &countingSource{
		QuizSource: memory.NewStaticQuizProvider(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	provider := NewQuizProvider(client, source, time.Minute)

	quiz, err := provider.FetchBySlug(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("fetch quiz: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected source called once, got %d", source.calls)
	}
	if len(quiz.Questions) != 1 || quiz.Questions[0].CorrectOption != "4" {
		t.Fatalf("definition must round-trip through the cache, got %+v", quiz)
	}

	// second call hits redis, source untouched
	quiz, err = provider.FetchBySlug(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("fetch quiz 2: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls=%d", source.calls)
	}
	if quiz.Title != "Sample" {
		t.Fatalf("cached definition mangled: %+v", quiz)
	}
}

func TestQuizProviderMissPropagates(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	provider := NewQuizProvider(client, memory.NewStaticQuizProvider(nil), time.Minute)

	if _, err := provider.FetchBySlug(context.Background(), "missing"); err != domain.ErrQuizNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

type countingSource struct {
	memory.QuizSource
	calls int
}

func (s *countingSource) FetchBySlug(ctx context.Context, slug string) (domain.Quiz, error) {
	s.calls++
	return s.QuizSource.FetchBySlug(ctx, slug)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:        "quiz-1",
		Slug:      "quiz-1",
		Title:     "Sample",
		Kind:      domain.KindAssessment,
		Status:    domain.StatusPublished,
		Anonymous: true,
		Questions: []domain.Question{
			{
				ID:            "q1",
				Text:          "What is 2 + 2?",
				Kind:          domain.SingleChoice,
				Required:      true,
				Options:       []string{"3", "4"},
				CorrectOption: "4",
				Order:         1,
			},
		},
	}
}
