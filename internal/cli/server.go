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

	"quiztap-service/internal/app"
	"quiztap-service/internal/config"
	"quiztap-service/internal/domain"
	"quiztap-service/internal/infra/memory"
	pgstore "quiztap-service/internal/infra/postgres"
	redisinfra "quiztap-service/internal/infra/redis"
	transport "quiztap-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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
	redisTTL := config.Duration(cfg.Redis.TTL, 10*time.Minute)
	catalogTTL := config.Duration(cfg.Quiz.CatalogTTL, 10*time.Minute)
	countdown := config.Duration(cfg.Quiz.Countdown, app.DefaultCountdown)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var store app.GameStore
	var loader memory.CatalogLoader = memory.NewStaticCatalogLoader(sampleQuestions())
	if pool != nil {
		db := openBun(cfg.Postgres.URL)
		defer db.Close()
		store = pgstore.NewGameStore(db)
		loader = pgstore.NewCatalogLoader(pool)
	} else {
		log.Printf("no postgres configured, running demo mode with in-memory store")
		store = memory.NewGameStore()
	}

	var catalog app.CatalogRepository
	if redisClient != nil {
		catalog = redisinfra.NewCatalogRepository(redisClient, loader, catalogTTL)
	} else {
		catalog = memory.NewCatalogRepository(loader, catalogTTL)
	}

	var registry app.SessionRegistry
	if redisClient != nil {
		registry = redisinfra.NewSessionRegistry(redisClient, redisTTL)
	} else {
		registry = memory.NewSessionRegistry()
	}

	playHandler := transport.NewPlayHandler(store, catalog, registry, app.WithCountdown(countdown, time.Second))
	leaderboardHandler := transport.NewLeaderboardHandler(store)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/play", playHandler.ServeWS)
	mux.Handle("/leaderboard", leaderboardHandler)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
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

// sampleQuestions seeds demo mode so the service is playable without postgres.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            1,
			Text:          "What is 2 + 2?",
			Options:       [4]string{"3", "4", "5", "22"},
			CorrectOption: 2,
		},
		{
			ID:            2,
			Text:          "Which planet is known as the Red Planet?",
			Options:       [4]string{"Venus", "Jupiter", "Mars", "Saturn"},
			CorrectOption: 3,
		},
		{
			ID:            3,
			Text:          "How many continents are there?",
			Options:       [4]string{"5", "6", "7", "8"},
			CorrectOption: 3,
		},
	}
}
