package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-session-service/internal/domain"
	pginfra "quiz-session-service/internal/infra/postgres"
	pgmigrations "quiz-session-service/internal/infra/postgres/migrations"
	infraredis "quiz-session-service/internal/infra/redis"
	"quiz-session-service/internal/session"
)

func TestSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	provider := infraredis.NewQuizProvider(redisClient, pginfra.NewQuizProvider(pool), 5*time.Minute)
	markers := infraredis.NewMarkerStore(redisClient)
	sink := pginfra.NewSubmissionSink(pool)
	service := session.NewService(provider, sink, markers, session.Options{})

	nav, err := service.Start(ctx, "demo-quiz", "client-a")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	defer nav.Close()

	if err := nav.SetAnswer("q1", domain.TextAnswer("4")); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	if err := nav.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if err := nav.SetAnswer("q2", domain.ChoicesAnswer([]string{"2", "3"})); err != nil {
		t.Fatalf("answer q2: %v", err)
	}
	if err := nav.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := nav.Snapshot()
	if snap.Stage != session.StageSubmitted {
		t.Fatalf("expected SUBMITTED, got %s (%s)", snap.Stage, snap.Message)
	}
	if snap.Result == nil || snap.Result.Percent != 100 {
		t.Fatalf("expected full score, got %+v", snap.Result)
	}

	var count int
	var score float64
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(MAX(score), -1) FROM quiz_responses WHERE quiz_slug=$1`,
		"demo-quiz").Scan(&count, &score)
	if err != nil {
		t.Fatalf("count responses: %v", err)
	}
	if count != 1 || score != 100 {
		t.Fatalf("expected one stored response with score 100, got count=%d score=%v", count, score)
	}

	// the marker survives the session: a second start is rejected before
	// the definition is fetched
	nav2, err := service.Start(ctx, "demo-quiz", "client-a")
	if err != domain.ErrAlreadySubmitted {
		t.Fatalf("expected already-submitted, got %v", err)
	}
	defer nav2.Close()
	if nav2.Snapshot().Stage != session.StageAlreadySubmitted {
		t.Fatalf("expected ALREADY_SUBMITTED stage, got %s", nav2.Snapshot().Stage)
	}

	// a fresh client key starts clean
	nav3, err := service.Start(ctx, "demo-quiz", "client-b")
	if err != nil {
		t.Fatalf("start with fresh client: %v", err)
	}
	defer nav3.Close()
	if nav3.Snapshot().Stage != session.StageQuestion {
		t.Fatalf("expected QUESTION stage for fresh client, got %s", nav3.Snapshot().Stage)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO quizzes (id, slug, data) VALUES (?, ?, ?::jsonb) ON CONFLICT (slug) DO UPDATE SET data=EXCLUDED.data`,
		quiz.ID, quiz.Slug, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:        "quiz-1",
		Slug:      "demo-quiz",
		Title:     "Demo",
		Kind:      domain.KindAssessment,
		Status:    domain.StatusPublished,
		Anonymous: true,
		Questions: []domain.Question{
			{
				ID:            "q1",
				Text:          "What is 2 + 2?",
				Kind:          domain.SingleChoice,
				Required:      true,
				Options:       []string{"3", "4", "5"},
				CorrectOption: "4",
				Order:         1,
			},
			{
				ID:             "q2",
				Text:           "Which of these are prime?",
				Kind:           domain.MultipleChoice,
				Required:       true,
				Options:        []string{"2", "3", "4"},
				CorrectOptions: []string{"2", "3"},
				Order:          2,
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
