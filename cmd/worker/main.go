package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sitesignal/packages/config"
	"sitesignal/packages/crawler"
	"sitesignal/packages/db"
	"sitesignal/packages/logging"
	"sitesignal/packages/scorer"
	"sitesignal/packages/worker"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogFile, cfg.LogLevel, "sitesignal-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("--- Starting SiteSignal Worker ---")

	if err := cfg.RequireDatabase(); err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	dbCfg := db.Config{
		JobTimeout:          cfg.JobTimeout,
		ResultWriteInterval: cfg.ResultWriteInterval,
		ResultQueueSize:     cfg.ResultQueueSize,
	}
	// The result writer outlives the signal context so Close can flush it.
	storage, err := db.New(context.Background(), cfg.DatabaseURL, dbCfg)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	fetcher := crawler.New(cfg.FetchTimeout, cfg.UserAgent, cfg.MaxBodyBytes)
	sc := scorer.New(fetcher,
		scorer.WithStrategy(scorer.ParseStrategy(cfg.ScoringStrategy)),
		scorer.WithPhoneRegion(cfg.PhoneRegion),
	)

	appWorker := worker.New(worker.Config{BatchSize: cfg.BatchSize, MaxWorkers: cfg.MaxWorkers}, storage, sc)

	ticker := time.NewTicker(cfg.SleepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received. Exiting...")
			return
		case <-ticker.C:
			slog.Debug("Worker cycle starting")
			appWorker.ProcessJobs(ctx)
		}
	}
}
