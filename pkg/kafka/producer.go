// Package kafka publishes domain events with franz-go.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/prohmpiriya/multicore-crm/pkg/logger"
)

// Event is the envelope written to every topic
type Event struct {
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Publisher sends events to a topic
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) error
	Close()
}

// ProducerConfig holds producer settings
type ProducerConfig struct {
	Brokers  []string
	ClientID string
}

// Producer is a synchronous franz-go producer
type Producer struct {
	client *kgo.Client
}

// NewProducer creates a producer and checks broker connectivity
func NewProducer(ctx context.Context, cfg ProducerConfig) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping kafka: %w", err)
	}

	return &Producer{client: client}, nil
}

// Publish writes event to topic and waits for the broker ack
func (p *Producer) Publish(ctx context.Context, topic string, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(event.Key),
		Value: data,
		Headers: []kgo.RecordHeader{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s to %s: %w", event.Type, topic, err)
	}
	return nil
}

// Close flushes and closes the client
func (p *Producer) Close() {
	p.client.Close()
}

// LogPublisher logs events instead of sending them. Used when Kafka is disabled.
type LogPublisher struct {
	log *logger.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

// Publish logs the event type and key
func (p *LogPublisher) Publish(ctx context.Context, topic string, event Event) error {
	p.log.WithContext(ctx).Debug("event not published, kafka disabled",
		zap.String("topic", topic),
		zap.String("type", event.Type),
		zap.String("key", event.Key),
	)
	return nil
}

// Close is a no-op
func (p *LogPublisher) Close() {}
