package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Consumer wraps a consumer-group reader with manual offset commits. An
// offset is committed only when the worker explicitly acknowledges the
// message, so an uncommitted message is redelivered after a restart or
// rebalance.
type Consumer struct {
	reader *kafka.Reader
	logger *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.FirstOffset,
	})

	return &Consumer{
		reader: reader,
		logger: logger,
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Fetch blocks until a message is available. It never advances the committed
// offset.
func (c *Consumer) Fetch(ctx context.Context) (kafka.Message, error) {
	message, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to fetch message: %w", err)
	}

	return message, nil
}

// Commit acknowledges a message so it is not redelivered.
func (c *Consumer) Commit(ctx context.Context, message kafka.Message) error {
	return c.reader.CommitMessages(ctx, message)
}
