package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"order-stats-pipeline/internal/aggregate"
	"order-stats-pipeline/internal/config"
	"order-stats-pipeline/internal/dlq"
	"order-stats-pipeline/internal/store"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpLatencySeconds)
}

const defaultTopN = 10

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize Redis aggregate store
	aggStore, err := store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("Failed to initialize aggregate store", zap.Error(err))
	}
	defer aggStore.Close()

	// DLQ client for inspection endpoints
	deadLetter, err := dlq.NewRedisDLQ(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis DLQ", zap.Error(err))
	}
	defer deadLetter.Close()

	// Create HTTP server
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := aggStore.Ping(r.Context()); err != nil {
			http.Error(w, "aggregate store unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// API endpoints
	mux.HandleFunc("/stats/global", func(w http.ResponseWriter, r *http.Request) {
		handleGlobalStats(w, r, aggStore, logger)
	})

	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		handleUserStats(w, r, aggStore, logger)
	})

	mux.HandleFunc("/leaderboard/", func(w http.ResponseWriter, r *http.Request) {
		handleLeaderboard(w, r, aggStore, logger)
	})

	mux.HandleFunc("/dlq", func(w http.ResponseWriter, r *http.Request) {
		handleDLQ(w, r, deadLetter, cfg.Kafka.Topic, logger)
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Service.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("Starting API service", zap.String("port", cfg.Service.Port))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func handleGlobalStats(w http.ResponseWriter, r *http.Request, aggStore *store.RedisStore, logger *zap.Logger) {
	start := time.Now()
	defer func() {
		httpLatencySeconds.WithLabelValues(r.Method, "/stats/global").Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodGet {
		httpRequestsTotal.WithLabelValues(r.Method, "/stats/global", "405").Inc()
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := aggStore.GlobalStats(r.Context())
	if err != nil {
		httpRequestsTotal.WithLabelValues(r.Method, "/stats/global", "500").Inc()
		logger.Error("Failed to read global stats", zap.Error(err))
		http.Error(w, "Failed to read global stats", http.StatusInternalServerError)
		return
	}

	httpRequestsTotal.WithLabelValues(r.Method, "/stats/global", "200").Inc()
	writeJSON(w, stats)
}

// handleUserStats serves GET /users/{id}/stats.
func handleUserStats(w http.ResponseWriter, r *http.Request, aggStore *store.RedisStore, logger *zap.Logger) {
	start := time.Now()
	defer func() {
		httpLatencySeconds.WithLabelValues(r.Method, "/users/").Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodGet {
		httpRequestsTotal.WithLabelValues(r.Method, "/users/", "405").Inc()
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "users" || parts[2] != "stats" || parts[1] == "" {
		httpRequestsTotal.WithLabelValues(r.Method, "/users/", "404").Inc()
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	stats, err := aggStore.UserStats(r.Context(), parts[1])
	if err != nil {
		httpRequestsTotal.WithLabelValues(r.Method, "/users/", "500").Inc()
		logger.Error("Failed to read user stats", zap.String("userId", parts[1]), zap.Error(err))
		http.Error(w, "Failed to read user stats", http.StatusInternalServerError)
		return
	}

	httpRequestsTotal.WithLabelValues(r.Method, "/users/", "200").Inc()
	writeJSON(w, stats)
}

// handleLeaderboard serves GET /leaderboard/{kind}/{bucket}?limit=N.
func handleLeaderboard(w http.ResponseWriter, r *http.Request, aggStore *store.RedisStore, logger *zap.Logger) {
	start := time.Now()
	defer func() {
		httpLatencySeconds.WithLabelValues(r.Method, "/leaderboard/").Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodGet {
		httpRequestsTotal.WithLabelValues(r.Method, "/leaderboard/", "405").Inc()
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "leaderboard" || parts[2] == "" {
		httpRequestsTotal.WithLabelValues(r.Method, "/leaderboard/", "404").Inc()
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	kind, err := aggregate.ParsePeriodKind(parts[1])
	if err != nil {
		httpRequestsTotal.WithLabelValues(r.Method, "/leaderboard/", "400").Inc()
		http.Error(w, "Invalid period kind, expected day|week|month|year", http.StatusBadRequest)
		return
	}

	limit := int64(defaultTopN)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			httpRequestsTotal.WithLabelValues(r.Method, "/leaderboard/", "400").Inc()
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	entries, err := aggStore.TopUsers(r.Context(), kind, parts[2], limit)
	if err != nil {
		httpRequestsTotal.WithLabelValues(r.Method, "/leaderboard/", "500").Inc()
		logger.Error("Failed to read leaderboard",
			zap.String("kind", string(kind)),
			zap.String("bucket", parts[2]),
			zap.Error(err),
		)
		http.Error(w, "Failed to read leaderboard", http.StatusInternalServerError)
		return
	}

	httpRequestsTotal.WithLabelValues(r.Method, "/leaderboard/", "200").Inc()
	writeJSON(w, map[string]interface{}{
		"period":  kind,
		"bucket":  parts[2],
		"entries": entries,
	})
}

// handleDLQ serves GET /dlq?limit=N, newest records first.
func handleDLQ(w http.ResponseWriter, r *http.Request, deadLetter *dlq.RedisDLQ, topic string, logger *zap.Logger) {
	start := time.Now()
	defer func() {
		httpLatencySeconds.WithLabelValues(r.Method, "/dlq").Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodGet {
		httpRequestsTotal.WithLabelValues(r.Method, "/dlq", "405").Inc()
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := int64(defaultTopN)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			httpRequestsTotal.WithLabelValues(r.Method, "/dlq", "400").Inc()
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := deadLetter.Records(r.Context(), topic, 0, limit-1)
	if err != nil {
		httpRequestsTotal.WithLabelValues(r.Method, "/dlq", "500").Inc()
		logger.Error("Failed to read DLQ", zap.Error(err))
		http.Error(w, "Failed to read DLQ", http.StatusInternalServerError)
		return
	}

	httpRequestsTotal.WithLabelValues(r.Method, "/dlq", "200").Inc()
	writeJSON(w, map[string]interface{}{
		"topic":   topic,
		"records": records,
	})
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
