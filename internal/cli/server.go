package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-session-service/internal/config"
	"quiz-session-service/internal/domain"
	apiclient "quiz-session-service/internal/infra/api"
	"quiz-session-service/internal/infra/memory"
	pginfra "quiz-session-service/internal/infra/postgres"
	redisinfra "quiz-session-service/internal/infra/redis"
	"quiz-session-service/internal/session"
	transport "quiz-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	// quiz source: upstream API when configured, else Postgres, else the
	// built-in sample for local poking
	var source memory.QuizSource
	var sink session.SubmissionSink
	switch {
	case cfg.Upstream.BaseURL != "":
		client := apiclient.NewClient(cfg.Upstream.BaseURL)
		source = client
		sink = client
	case pool != nil:
		source = pginfra.NewQuizProvider(pool)
		sink = pginfra.NewSubmissionSink(pool)
	default:
		source = memory.NewStaticQuizProvider(sampleQuizzes())
		sink = memory.NewRecordingSink()
	}

	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	var provider session.QuizProvider
	if redisClient != nil {
		provider = redisinfra.NewQuizProvider(redisClient, source, quizTTL)
	} else {
		provider = memory.NewCachedQuizProvider(source, quizTTL)
	}

	var markers session.MarkerStore
	if redisClient != nil {
		markers = redisinfra.NewMarkerStore(redisClient)
	} else {
		markers = memory.NewMarkerStore()
	}

	service := session.NewService(provider, sink, markers, session.Options{
		AutoAdvanceDelay: config.Duration(cfg.Session.AutoAdvanceDelay, 0),
	})
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides a minimal definition so the server can run
// without Postgres or an upstream API.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"demo-quiz": {
			ID:               "quiz-1",
			Slug:             "demo-quiz",
			Title:            "Demo Assessment",
			Kind:             domain.KindAssessment,
			Status:           domain.StatusPublished,
			Anonymous:        true,
			TimeLimitMinutes: 5,
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
					Options:        []string{"2", "3", "4", "5"},
					CorrectOptions: []string{"2", "3", "5"},
					Order:          2,
				},
				{
					ID:       "q3",
					Text:     "Any feedback?",
					Kind:     domain.FreeText,
					Required: false,
					Order:    3,
				},
			},
		},
	}
}
