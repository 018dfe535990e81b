package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"order-stats-pipeline/internal/config"
	"order-stats-pipeline/internal/kafka"
	"order-stats-pipeline/internal/order"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	ordersProducedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_produced_total",
			Help: "Total number of orders produced to Kafka",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(ordersProducedTotal)
}

// Sample data for the generator mode.
var (
	sampleUsers = []string{"U5678", "U1234", "U9999", "U1111", "U2222"}

	sampleProducts = []struct {
		productID string
		price     decimal.Decimal
	}{
		{"P001", decimal.NewFromFloat(20.00)},
		{"P002", decimal.NewFromFloat(59.99)},
		{"P003", decimal.NewFromFloat(15.50)},
		{"P004", decimal.NewFromFloat(100.00)},
		{"P005", decimal.NewFromFloat(5.99)},
	}
)

func main() {
	generate := flag.Int("generate", 0, "publish N random sample orders and exit")
	flag.Parse()

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

	// Initialize Kafka producer
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	defer producer.Close()

	if *generate > 0 {
		if err := generateOrders(producer, *generate, logger); err != nil {
			logger.Fatal("Failed to generate orders", zap.Error(err))
		}
		return
	}

	// Create HTTP server
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Producer endpoint
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		handlePublish(w, r, producer, logger)
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Service.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("Starting producer service", zap.String("port", cfg.Service.Port))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func handlePublish(w http.ResponseWriter, r *http.Request, producer *kafka.Producer, logger *zap.Logger) {
	if r.Method != http.MethodPost {
		httpRequestsTotal.WithLabelValues(r.Method, "/orders", "405").Inc()
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var raw order.RawOrder
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httpRequestsTotal.WithLabelValues(r.Method, "/orders", "400").Inc()
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// The worker owns validation; the producer only requires a key.
	if raw.OrderID == "" {
		httpRequestsTotal.WithLabelValues(r.Method, "/orders", "400").Inc()
		http.Error(w, "order_id is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := producer.PublishOrder(ctx, &raw); err != nil {
		httpRequestsTotal.WithLabelValues(r.Method, "/orders", "500").Inc()
		logger.Error("Failed to publish order", zap.Error(err))
		http.Error(w, "Failed to publish order", http.StatusInternalServerError)
		return
	}

	ordersProducedTotal.Inc()
	httpRequestsTotal.WithLabelValues(r.Method, "/orders", "200").Inc()

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Order published successfully"))
}

// generateOrders publishes n random sample orders. Roughly one in ten gets a
// deliberately wrong order_value so the worker's correction path is exercised.
func generateOrders(producer *kafka.Producer, n int, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(n)*time.Second+30*time.Second)
	defer cancel()

	for i := 0; i < n; i++ {
		raw := randomOrder()
		if err := producer.PublishOrder(ctx, raw); err != nil {
			return fmt.Errorf("failed to publish order %d of %d: %w", i+1, n, err)
		}
		ordersProducedTotal.Inc()
	}

	logger.Info("Sample orders published", zap.Int("count", n))
	return nil
}

func randomOrder() *order.RawOrder {
	itemCount := 1 + rand.Intn(5)
	items := make([]order.Item, 0, itemCount)
	total := decimal.Zero
	for i := 0; i < itemCount; i++ {
		product := sampleProducts[rand.Intn(len(sampleProducts))]
		quantity := int64(1 + rand.Intn(10))
		items = append(items, order.Item{
			ProductID:    product.productID,
			Quantity:     quantity,
			PricePerUnit: product.price,
		})
		total = total.Add(product.price.Mul(decimal.NewFromInt(quantity)))
	}

	value := total.Round(2)
	if rand.Intn(10) == 0 {
		// Wrong on purpose: exercises auto-correction downstream.
		value = value.Add(decimal.NewFromFloat(13.37))
	}

	return &order.RawOrder{
		OrderID:         fmt.Sprintf("ORD-%s", uuid.NewString()),
		UserID:          sampleUsers[rand.Intn(len(sampleUsers))],
		OrderTimestamp:  time.Now().UTC().Format(time.RFC3339),
		OrderValue:      value,
		Items:           items,
		ShippingAddress: "123 Main St, Springfield",
		PaymentMethod:   "CreditCard",
	}
}
