package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"order-stats-pipeline/internal/config"
	"order-stats-pipeline/internal/dlq"
	"order-stats-pipeline/internal/kafka"
	"order-stats-pipeline/internal/store"
	"order-stats-pipeline/internal/worker"
)

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

	// Initialize Kafka consumer
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, logger)
	defer consumer.Close()

	// Initialize Redis aggregate store
	aggStore, err := store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("Failed to initialize aggregate store", zap.Error(err))
	}
	defer aggStore.Close()

	// Initialize Redis DLQ
	deadLetter, err := dlq.NewRedisDLQ(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis DLQ", zap.Error(err))
	}
	defer deadLetter.Close()

	// Start metrics server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := aggStore.Ping(r.Context()); err != nil {
				http.Error(w, "aggregate store unreachable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		server := &http.Server{
			Addr:    ":" + cfg.Service.Port,
			Handler: mux,
		}

		logger.Info("Starting metrics server", zap.String("port", cfg.Service.Port))
		if err := server.ListenAndServe(); err != nil {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Stop polling on SIGINT/SIGTERM; unacknowledged messages redeliver.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting worker",
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("groupID", cfg.Kafka.GroupID),
	)

	w := worker.New(consumer, aggStore, deadLetter, logger)
	if err := w.Run(ctx); err != nil {
		logger.Error("Worker exited with error", zap.Error(err))
	}
}
