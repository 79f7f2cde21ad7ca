package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"autoparts/internal/logger"
)

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers    []string
	OrderTopic string
}

// KafkaPublisher writes events to Kafka, keyed by aggregate id.
type KafkaPublisher struct {
	writer     *kafka.Writer
	orderTopic string
}

// NewPublisher returns a Kafka publisher, or a NopPublisher when no brokers
// are configured.
func NewPublisher(cfg KafkaConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(cfg)
}

// NewKafkaPublisher creates a Kafka publisher.
func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteTimeout:           5 * time.Second,
	}
	return &KafkaPublisher{writer: writer, orderTopic: cfg.OrderTopic}
}

// PublishOrderCreated sends an order.created event.
func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, evt OrderCreated) error {
	msg, err := encodeOrderCreated(p.orderTopic, evt)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order %d: %w", evt.OrderID, err)
	}

	logger.FromContext(ctx).Debug("kafka message sent", "topic", p.orderTopic, "order_id", evt.OrderID)
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encodeOrderCreated(topic string, evt OrderCreated) (kafka.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal order event: %w", err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatUint(uint64(evt.OrderID), 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("order.created")},
		},
	}, nil
}
