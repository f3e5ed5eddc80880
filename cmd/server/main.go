package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sitesignal/packages/api"
	"sitesignal/packages/cache"
	"sitesignal/packages/config"
	"sitesignal/packages/crawler"
	"sitesignal/packages/db"
	"sitesignal/packages/leads"
	"sitesignal/packages/logging"
	"sitesignal/packages/metrics"
	"sitesignal/packages/outreach"
	"sitesignal/packages/scorer"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogFile, cfg.LogLevel, "sitesignal-api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("--- Starting SiteSignal API ---")

	go metrics.ExposeMetrics(cfg.MetricsAddr)

	fetcher := crawler.New(cfg.FetchTimeout, cfg.UserAgent, cfg.MaxBodyBytes)
	heuristic := scorer.New(fetcher, scorer.WithStrategy(scorer.Heuristic), scorer.WithPhoneRegion(cfg.PhoneRegion))
	dom := scorer.New(fetcher, scorer.WithStrategy(scorer.DOM), scorer.WithPhoneRegion(cfg.PhoneRegion))

	defaultStrategy := scorer.ParseStrategy(cfg.ScoringStrategy)
	defaultScorer := heuristic
	if defaultStrategy == scorer.DOM {
		defaultScorer = dom
	}

	leadOpts := []leads.Option{leads.WithConcurrency(cfg.ScoreConcurrency)}
	apiOpts := []api.Option{
		api.WithStrategy(scorer.Heuristic, heuristic),
		api.WithStrategy(scorer.DOM, dom),
		api.WithRateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
	}
	if cfg.TrustProxyHeaders {
		apiOpts = append(apiOpts, api.WithTrustedProxyHeaders())
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis unavailable, lead results will not be cached", "addr", cfg.RedisAddr, "error", err)
	} else {
		leadOpts = append(leadOpts, leads.WithCache(cache.NewRedis(rdb, cfg.CacheTTL)))
	}

	if cfg.DatabaseURL != "" {
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			slog.Error("Failed to apply migrations", "error", err)
			os.Exit(1)
		}
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
		leadOpts = append(leadOpts, leads.WithStore(storage))
		apiOpts = append(apiOpts, api.WithQueue(storage), api.WithLeadReader(storage))
	} else {
		slog.Warn("DATABASE_URL not set, lead persistence and the scoring queue are disabled")
	}

	if cfg.GeminiAPIKey != "" {
		gen, err := outreach.NewGemini(ctx, cfg.GeminiAPIKey, cfg.OutreachModel)
		if err != nil {
			slog.Error("Failed to create outreach generator", "error", err)
			os.Exit(1)
		}
		apiOpts = append(apiOpts, api.WithGenerator(gen))
	}

	apiOpts = append(apiOpts, api.WithLeads(leads.NewService(defaultScorer, leadOpts...)))
	server := api.New(defaultStrategy, defaultScorer, apiOpts...)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "address", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutdown signal received. Exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
}
