package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/devledger/internal/config"
	"example.com/devledger/internal/domain"
	"example.com/devledger/internal/ingest"
	persistence "example.com/devledger/internal/persistence/postgres"
	"example.com/devledger/internal/provider"
)

const maxConcurrentSyncs = 4

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

	adapters := []domain.ProviderAdapter{
		provider.NewGitHubAdapter(cfg.GitHubBaseURL, cfg.GitHubToken),
		provider.NewStackOverflowAdapter(cfg.StackOverflowBaseURL, cfg.StackOverflowKey),
	}
	runner := ingest.NewRunner(repo, adapters,
		ingest.WithRetryPolicy(cfg.SyncMaxAttempts, cfg.SyncBaseDelay, cfg.MaxRateLimitWait))

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("sync worker metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	log.Printf("sync worker started (interval=%s)", cfg.SyncInterval)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Run one sweep on startup so a fresh deployment does not wait a full
	// interval before the first sync.
	sweep(ctx, repo, runner)

	for {
		select {
		case <-ctx.Done():
			goto shutdown
		case <-ticker.C:
			sweep(ctx, repo, runner)
		case <-stop:
			log.Println("sync worker received shutdown signal")
			cancel()
			goto shutdown
		}
	}

shutdown:
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}

func sweep(ctx context.Context, repo *persistence.Repository, runner *ingest.Runner) {
	accounts, err := repo.ListAccounts(ctx)
	if err != nil {
		log.Printf("list accounts failed: %v", err)
		return
	}
	if len(accounts) == 0 {
		return
	}

	sem := make(chan struct{}, maxConcurrentSyncs)
	var wg sync.WaitGroup

	for _, account := range accounts {
		wg.Add(1)
		go func(account domain.ProviderAccount) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, syncErr := runner.Sync(ctx, account.UserID, account.Source)
			if syncErr != nil {
				log.Printf("sync failed (user=%s, source=%s): %v", account.UserID, account.Source, syncErr)
				return
			}
			if result.Added > 0 || result.Skipped > 0 {
				log.Printf("sync completed (user=%s, source=%s, added=%d, skipped=%d)",
					account.UserID, account.Source, result.Added, result.Skipped)
			}
		}(account)
	}

	wg.Wait()
}
