// Package config
package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

type Config struct {
	DatabaseURL string

	// Scoring
	FetchTimeout     time.Duration
	UserAgent        string
	MaxBodyBytes     int64
	ScoringStrategy  string
	PhoneRegion      string
	ScoreConcurrency int

	// Queue worker
	MaxWorkers          int
	BatchSize           int
	SleepInterval       time.Duration
	JobTimeout          time.Duration
	RescoreAfter        time.Duration
	ResultWriteInterval time.Duration
	ResultQueueSize     int

	// Redis result cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// HTTP
	ListenAddr         string
	MetricsAddr        string
	RateLimitPerSecond float64
	RateLimitBurst     int
	TrustProxyHeaders  bool

	// Outreach
	GeminiAPIKey  string
	OutreachModel string

	LogFile  string
	LogLevel string
}

var ErrMissingDatabaseURL = errors.New("missing required environment variable: DATABASE_URL")

// Load reads .env when present, then the process environment.
// Unparseable values fall back to their defaults with a warning.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Could not read .env file", "error", err)
	}

	cfg := Config{}
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")

	cfg.FetchTimeout = durationEnv("FETCH_TIMEOUT", 15*time.Second)
	cfg.UserAgent = getEnv("USER_AGENT", DefaultUserAgent)
	cfg.MaxBodyBytes = int64(intEnv("MAX_BODY_BYTES", 10<<20))
	cfg.ScoringStrategy = getEnv("SCORING_STRATEGY", "heuristic")
	cfg.PhoneRegion = getEnv("PHONE_REGION", "US")
	cfg.ScoreConcurrency = intEnv("SCORE_CONCURRENCY", 5)

	cfg.MaxWorkers = intEnv("MAX_WORKERS", 10)
	cfg.BatchSize = intEnv("BATCH_SIZE", 50)
	cfg.SleepInterval = durationEnv("SLEEP_INTERVAL", 5*time.Second)
	cfg.JobTimeout = durationEnv("JOB_TIMEOUT", 15*time.Minute)
	cfg.RescoreAfter = durationEnv("RESCORE_AFTER", 720*time.Hour)
	cfg.ResultWriteInterval = durationEnv("RESULT_WRITE_INTERVAL", 2*time.Second)
	cfg.ResultQueueSize = intEnv("RESULT_QUEUE_SIZE", 500)

	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = intEnv("REDIS_DB", 0)
	cfg.CacheTTL = durationEnv("CACHE_TTL", time.Hour)

	cfg.ListenAddr = getEnv("LISTEN_ADDR", ":8080")
	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":9093")
	cfg.RateLimitPerSecond = floatEnv("RATE_LIMIT_PER_SECOND", 1)
	cfg.RateLimitBurst = intEnv("RATE_LIMIT_BURST", 5)
	cfg.TrustProxyHeaders = boolEnv("TRUST_PROXY_HEADERS", false)

	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", "")
	cfg.OutreachModel = getEnv("OUTREACH_MODEL", "gemini-2.0-flash")

	cfg.LogFile = getEnv("LOG_FILE", "logs/sitesignal.log")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	return cfg
}

// RequireDatabase is called by the binaries that need Postgres.
func (c Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func intEnv(key string, defaultVal int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", raw, "error", err)
		return defaultVal
	}
	return v
}

func floatEnv(key string, defaultVal float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("Invalid number in environment, using default", "key", key, "value", raw, "error", err)
		return defaultVal
	}
	return v
}

func boolEnv(key string, defaultVal bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("Invalid boolean in environment, using default", "key", key, "value", raw, "error", err)
		return defaultVal
	}
	return v
}

func durationEnv(key string, defaultVal time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("Invalid duration in environment, using default", "key", key, "value", raw, "error", err)
		return defaultVal
	}
	return v
}
