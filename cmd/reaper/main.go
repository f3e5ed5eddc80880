package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sitesignal/packages/config"
	"sitesignal/packages/db"
	"sitesignal/packages/logging"
	"sitesignal/packages/metrics"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogFile, cfg.LogLevel, "sitesignal-reaper")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("--- Starting SiteSignal Reaper ---")

	if err := cfg.RequireDatabase(); err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	go metrics.ExposeMetrics(cfg.MetricsAddr)

	storage, err := db.New(context.Background(), cfg.DatabaseURL, db.Config{
		JobTimeout:          cfg.JobTimeout,
		ResultWriteInterval: cfg.ResultWriteInterval,
		ResultQueueSize:     cfg.ResultQueueSize,
	})
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	mainTicker := time.NewTicker(10 * time.Second)
	defer mainTicker.Stop()

	stalledJobTicker := time.NewTicker(15 * time.Minute)
	defer stalledJobTicker.Stop()

	rescoreTicker := time.NewTicker(6 * time.Hour)
	defer rescoreTicker.Stop()

	slog.Info("Reaper tasks scheduled",
		"pending_count_refresh", "10s",
		"stalled_job_reset", "15m",
		"stale_score_requeue", "6h",
		"rescore_after", cfg.RescoreAfter.String(),
	)

	go func() {
		_ = storage.RefreshPendingCount(ctx)
		_ = storage.ResetStalledJobs(ctx)
		requeueStale(ctx, storage, cfg.RescoreAfter)
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received. Exiting...")
			return
		case <-mainTicker.C:
			if err := storage.RefreshPendingCount(ctx); err != nil {
				slog.Error("Failed to refresh pending lead count", "error", err)
			}
		case <-stalledJobTicker.C:
			if err := storage.ResetStalledJobs(ctx); err != nil {
				slog.Error("Failed to reset stalled jobs", "error", err)
			}
		case <-rescoreTicker.C:
			requeueStale(ctx, storage, cfg.RescoreAfter)
		}
	}
}

func requeueStale(ctx context.Context, storage *db.Storage, olderThan time.Duration) {
	n, err := storage.RequeueStaleScores(ctx, olderThan)
	if err != nil {
		slog.Error("Failed to requeue stale scores", "error", err)
		return
	}
	if n > 0 {
		slog.Info("Reaper: Requeued stale scores", "count", n)
	}
}
