package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fittracker/internal/api"
	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/collections"
	"example.com/fittracker/internal/config"
	"example.com/fittracker/internal/outbox"
	persistence "example.com/fittracker/internal/persistence/postgres"
	httptransport "example.com/fittracker/internal/transport/http"
)

func main() {
	cfg := config.Load()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var repo collections.Repository = collections.NewMemoryRepository()
	var dispatcher *outbox.Dispatcher
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := persistence.Migrate(ctx, pool); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
		repo = persistence.NewRepository(pool)

		if len(cfg.KafkaBrokers) > 0 {
			publisher := outbox.NewRecordPublisher(cfg.KafkaBrokers)
			defer publisher.Close()
			dispatcher = outbox.NewDispatcher(
				outbox.NewPGStore(pool, cfg.OutboxLease, cfg.OutboxMaxAttempts),
				publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
			go dispatcher.Start(ctx)
		}
	} else {
		log.Printf("POSTGRES_URL not set, records are kept in memory")
	}

	service := collections.NewService(repo, collections.DefaultValidators())
	handler := api.NewHandler(service)
	mux := httptransport.WithMetrics(http.NewServeMux())
	handler.RegisterRoutes(mux)

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, auth.SkipPaths("/healthz", "/metrics"))

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.Chain(mux,
			httptransport.RequestLogger(log.Default()),
			httptransport.CORS("http://localhost:5173"),
			authMiddleware.Wrap,
		))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("fittracker api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
