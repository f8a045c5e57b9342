package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/devledger/internal/api"
	"example.com/devledger/internal/auth"
	"example.com/devledger/internal/cache"
	"example.com/devledger/internal/config"
	"example.com/devledger/internal/domain"
	"example.com/devledger/internal/ingest"
	"example.com/devledger/internal/journal"
	"example.com/devledger/internal/ledger"
	"example.com/devledger/internal/outbox"
	persistence "example.com/devledger/internal/persistence/postgres"
	"example.com/devledger/internal/provider"
	httptransport "example.com/devledger/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)

	go dispatcher.Start(ctx)

	adapters := []domain.ProviderAdapter{
		provider.NewGitHubAdapter(cfg.GitHubBaseURL, cfg.GitHubToken),
		provider.NewStackOverflowAdapter(cfg.StackOverflowBaseURL, cfg.StackOverflowKey),
	}
	runner := ingest.NewRunner(repo, adapters,
		ingest.WithRetryPolicy(cfg.SyncMaxAttempts, cfg.SyncBaseDelay, cfg.MaxRateLimitWait))

	var serviceOpts []ledger.Option
	if cfg.RedisAddress != "" {
		redisCache, cacheErr := cache.NewRedis(cfg.RedisAddress)
		if cacheErr != nil {
			log.Fatalf("failed to connect to redis: %v", cacheErr)
		}
		defer redisCache.Close()
		serviceOpts = append(serviceOpts, ledger.WithCache(redisCache))
	}

	var journalReader domain.JournalReader
	var projects domain.ProjectCounter
	if cfg.JournalURL != "" {
		client := journal.NewClient(cfg.JournalURL)
		journalReader = client
		projects = client
	}

	service := ledger.NewService(repo, runner, journalReader, projects, serviceOpts...)

	handler := api.NewHandler(service)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(
		auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
		func(r *http.Request) bool {
			return r.URL.Path == "/healthz" || strings.HasPrefix(r.URL.Path, "/metrics")
		},
	)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, authMiddleware.Wrap(logger(mux)))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("devledger-api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	dispatcher.Wait()
}
