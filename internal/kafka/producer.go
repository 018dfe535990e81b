package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"order-stats-pipeline/internal/order"
)

type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{
		writer: writer,
		logger: logger,
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishOrder publishes an order keyed by order_id.
func (p *Producer) PublishOrder(ctx context.Context, raw *order.RawOrder) error {
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(raw.OrderID),
		Value: jsonData,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	p.logger.Info("order published to Kafka",
		zap.String("orderId", raw.OrderID),
		zap.String("userId", raw.UserID),
		zap.String("topic", p.writer.Topic),
	)

	return nil
}
