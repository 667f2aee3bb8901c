/**
 * @description
 * Worker Service Entry Point.
 * Responsible for background tasks:
 * 1. Re-reading every circle contract on a cron schedule.
 * 2. Caching the derived views and publishing them for SSE clients.
 *
 * @dependencies
 * - backend/internal/config
 * - backend/internal/db
 * - backend/internal/chain
 * - backend/internal/services
 * - github.com/robfig/cron/v3
 */

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/savings-circle/backend/internal/chain"
	"github.com/savings-circle/backend/internal/config"
	"github.com/savings-circle/backend/internal/db"
	"github.com/savings-circle/backend/internal/logger"
	"github.com/savings-circle/backend/internal/metrics"
	"github.com/savings-circle/backend/internal/services"
)

// metricsAddr serves the worker's /metrics; the API exposes its own
const metricsAddr = ":9091"

func main() {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	logger.Setup(cfg.Server.Env)
	defer logger.Sync()

	logger.Info("Starting Savings Circle Worker...")

	// 2. Connect DBs
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		logger.Fatal("Postgres connection failed: %v", err)
	}

	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("Redis connection failed: %v", err)
	}

	// 3. Initialize Services
	eth, err := chain.Dial(cfg.Chain.RPCURL)
	if err != nil {
		logger.Fatal("Chain RPC connection failed: %v", err)
	}
	reader, err := chain.NewCircleReader(eth, cfg.Chain.ReadTimeout)
	if err != nil {
		logger.Fatal("Circle reader init failed: %v", err)
	}

	groups := services.NewGroupService(pgDB)
	circles := services.NewCircleService(pgDB, groups, services.NewParticipantService(pgDB), reader, redisClient, services.CircleServiceOptions{
		TokenDecimals: cfg.Chain.TokenDecimals,
		CacheTTL:      cfg.Chain.CacheTTL,
	})

	// 4. Context with Cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. Schedule
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := scheduler.AddFunc(cfg.Worker.RefreshSchedule, func() {
		refreshCircles(ctx, circles)
	}); err != nil {
		logger.Fatal("Invalid CIRCLE_REFRESH_SCHEDULE %q: %v", cfg.Worker.RefreshSchedule, err)
	}

	// Initial run so caches are warm before the first tick
	refreshCircles(ctx, circles)
	scheduler.Start()

	metricsServer := &http.Server{Addr: metricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed: %v", err)
		}
	}()

	// 6. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	<-scheduler.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("Worker exited.")
}

// refreshCircles runs one refresh pass and records its outcome
func refreshCircles(ctx context.Context, circles *services.CircleService) {
	start := time.Now()
	refreshed, err := circles.RefreshAll(ctx)
	switch {
	case errors.Is(err, services.ErrRefreshInProgress):
		logger.Info("Circle refresh skipped, another worker holds the lock")
		metrics.RecordRefresh("skipped", 0, time.Since(start))
	case err != nil:
		logger.Error("Circle refresh failed: %v", err)
		metrics.RecordRefresh("error", refreshed, time.Since(start))
	default:
		logger.Info("Refreshed %d circles in %s", refreshed, time.Since(start).Round(time.Millisecond))
		metrics.RecordRefresh("ok", refreshed, time.Since(start))
	}
}
