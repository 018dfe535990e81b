package worker

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"order-stats-pipeline/internal/aggregate"
	"order-stats-pipeline/internal/order"
)

var (
	ordersProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_processed_total",
			Help: "Total number of order messages processed",
		},
		[]string{"result"},
	)

	ordersCorrectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_corrected_total",
			Help: "Total number of orders whose stated value was corrected",
		},
	)

	dlqCountTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_count_total",
			Help: "Total number of messages sent to DLQ",
		},
	)

	storeLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "store_latency_seconds",
			Help:    "Aggregate store apply latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ordersProcessedTotal)
	prometheus.MustRegister(ordersCorrectedTotal)
	prometheus.MustRegister(dlqCountTotal)
	prometheus.MustRegister(storeLatencySeconds)
}

// Queue is the at-least-once message source. Fetch returns the next message
// without acknowledging it; Commit acknowledges it so it is not redelivered.
type Queue interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, message kafka.Message) error
}

// DeadLetter routes messages that failed decode or validation out of the
// processing path.
type DeadLetter interface {
	Push(ctx context.Context, topic string, partition int, offset int64, payload []byte, reason string) error
}

// Worker runs the fetch, decode, validate, aggregate, acknowledge loop for
// one consumer replica. Several replicas run concurrently against the same
// consumer group; all coordination happens through the queue and the shared
// aggregate store.
type Worker struct {
	queue      Queue
	aggregator *aggregate.Aggregator
	deadLetter DeadLetter
	logger     *zap.Logger

	retryBase time.Duration
	retryMax  time.Duration
}

func New(queue Queue, store aggregate.Store, deadLetter DeadLetter, logger *zap.Logger) *Worker {
	return &Worker{
		queue:      queue,
		aggregator: aggregate.New(store),
		deadLetter: deadLetter,
		logger:     logger,
		retryBase:  time.Second,
		retryMax:   30 * time.Second,
	}
}

// Run consumes messages until the context is cancelled or the queue is
// closed. A single message's failure never stops the loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		message, err := w.queue.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				w.logger.Info("worker stopping")
				return nil
			}
			w.logger.Error("failed to fetch message", zap.Error(err))
			continue
		}

		w.handle(ctx, message)
	}
}

// handle runs one message through the strict per-message sequence:
// decode -> validate -> aggregate -> acknowledge. Decode and validation
// failures dead-letter the message and acknowledge it. A store failure is
// retried in place: the consumer group keeps one committed position per
// partition, so committing any later offset would advance past the failed
// message and lose the order. The worker therefore never moves on until the
// apply succeeds or shutdown leaves the message unacknowledged for
// redelivery.
func (w *Worker) handle(ctx context.Context, message kafka.Message) {
	raw, err := order.Decode(message.Value)
	if err != nil {
		w.logger.Error("failed to decode order payload",
			zap.Int64("offset", message.Offset),
			zap.Error(err),
		)
		ordersProcessedTotal.WithLabelValues("decode_error").Inc()
		w.reject(ctx, message, err.Error())
		return
	}

	o, corrected, err := order.Validate(raw)
	if err != nil {
		w.logger.Warn("order failed validation",
			zap.String("orderId", raw.OrderID),
			zap.Error(err),
		)
		ordersProcessedTotal.WithLabelValues("invalid").Inc()
		w.reject(ctx, message, err.Error())
		return
	}

	if corrected {
		ordersCorrectedTotal.Inc()
		w.logger.Warn("order value mismatch, corrected from items",
			zap.String("orderId", o.ID),
			zap.String("stated", raw.OrderValue.String()),
			zap.String("corrected", o.Value.String()),
		)
	}

	if err := w.applyWithRetry(ctx, o); err != nil {
		// Shutting down mid-retry: not acknowledged, so the message is
		// redelivered to the next replica.
		w.logger.Error("failed to apply aggregate delta, leaving message for redelivery",
			zap.String("orderId", o.ID),
			zap.Error(err),
		)
		return
	}

	if err := w.queue.Commit(ctx, message); err != nil {
		w.logger.Error("failed to commit offset", zap.Error(err))
		return
	}

	ordersProcessedTotal.WithLabelValues("ok").Inc()
	w.logger.Info("order aggregated",
		zap.String("orderId", o.ID),
		zap.String("userId", o.UserID),
		zap.String("value", o.Value.String()),
		zap.Time("orderTimestamp", o.Timestamp),
	)
}

// applyWithRetry applies the order's delta, retrying with backoff on store
// failures. It returns only on success or on context cancellation.
func (w *Worker) applyWithRetry(ctx context.Context, o *order.Order) error {
	backoff := w.retryBase
	for {
		start := time.Now()
		err := w.aggregator.Process(ctx, o)
		storeLatencySeconds.Observe(time.Since(start).Seconds())
		if err == nil {
			return nil
		}

		ordersProcessedTotal.WithLabelValues("store_error").Inc()
		w.logger.Error("failed to apply aggregate delta, retrying",
			zap.String("orderId", o.ID),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > w.retryMax {
			backoff = w.retryMax
		}
	}
}

// reject dead-letters a message and acknowledges it so it is never retried.
func (w *Worker) reject(ctx context.Context, message kafka.Message, reason string) {
	if err := w.deadLetter.Push(ctx, message.Topic, message.Partition, message.Offset, message.Value, reason); err != nil {
		w.logger.Error("failed to push to DLQ", zap.Error(err))
	} else {
		dlqCountTotal.Inc()
	}

	if err := w.queue.Commit(ctx, message); err != nil {
		w.logger.Error("failed to commit offset after dead-letter", zap.Error(err))
	}
}
