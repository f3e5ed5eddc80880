// Package metrics
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_name"},
	)
	ScoreDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitesignal_score_duration_seconds",
			Help:    "Time spent fetching and scoring one website.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"strategy"},
	)
	ScoresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitesignal_scores_total",
			Help: "Websites scored, labeled by outcome (scored or failed).",
		},
		[]string{"outcome"},
	)
	FetchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitesignal_fetch_failures_total",
			Help: "Website fetches that failed before any HTML was received.",
		},
	)
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitesignal_cache_requests_total",
			Help: "Lead cache lookups, labeled by result (hit, miss, error).",
		},
		[]string{"result"},
	)
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitesignal_rate_limited_requests_total",
			Help: "API requests rejected by the per-IP rate limiter.",
		},
	)
	PendingLeads = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitesignal_pending_leads",
			Help: "Leads waiting to be scored.",
		},
	)
	ResultsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitesignal_results_dropped_total",
			Help: "Score results dropped because the write queue was full.",
		},
	)
)

func init() {
	prometheus.MustRegister(DBQueryDuration)
	prometheus.MustRegister(ScoreDuration)
	prometheus.MustRegister(ScoresTotal)
	prometheus.MustRegister(FetchFailures)
	prometheus.MustRegister(CacheRequests)
	prometheus.MustRegister(RateLimited)
	prometheus.MustRegister(PendingLeads)
	prometheus.MustRegister(ResultsDropped)
}

func ExposeMetrics(addr string) {
	slog.Info("Exposing Prometheus metrics", "address", addr)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("Failed to start Prometheus metrics server", "error", err)
	}
}
