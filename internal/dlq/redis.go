package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"order-stats-pipeline/internal/store"
)

// RedisDLQ holds messages that failed decode or validation. They are kept in
// a Redis list for inspection instead of being retried.
type RedisDLQ struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisDLQ(addr, password string, db int, logger *zap.Logger) (*RedisDLQ, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDLQ{
		client: client,
		logger: logger,
	}, nil
}

func (d *RedisDLQ) Close() error {
	return d.client.Close()
}

// Push stores a failed message in the dead letter queue.
func (d *RedisDLQ) Push(ctx context.Context, topic string, partition int, offset int64, payload []byte, reason string) error {
	orderID := extractOrderID(payload)
	record := store.DLQRecord{
		OrderID:   orderID,
		Topic:     topic,
		Partition: partition,
		Offset:    offset,
		Payload:   string(payload),
		Reason:    reason,
		FailedAt:  time.Now().UTC(),
	}

	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ record: %w", err)
	}

	// Push to Redis list (newest first)
	key := fmt.Sprintf("dlq:%s", topic)
	if err := d.client.LPush(ctx, key, jsonData).Err(); err != nil {
		return fmt.Errorf("failed to push to DLQ: %w", err)
	}

	d.logger.Error("message pushed to DLQ",
		zap.String("orderId", orderID),
		zap.String("topic", topic),
		zap.Int("partition", partition),
		zap.Int64("offset", offset),
		zap.String("reason", reason),
	)

	return nil
}

// Records retrieves dead-lettered messages, newest first.
func (d *RedisDLQ) Records(ctx context.Context, topic string, start, stop int64) ([]store.DLQRecord, error) {
	key := fmt.Sprintf("dlq:%s", topic)
	raw, err := d.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read DLQ: %w", err)
	}

	records := make([]store.DLQRecord, 0, len(raw))
	for _, item := range raw {
		var record store.DLQRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			d.logger.Warn("skipping unreadable DLQ record", zap.Error(err))
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// extractOrderID attempts to pull the order_id out of a possibly malformed
// payload.
func extractOrderID(payload []byte) string {
	var partial struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(payload, &partial); err == nil && partial.OrderID != "" {
		return partial.OrderID
	}
	return "unknown"
}
