// Package kafka publishes lifecycle events to an Apache Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/meshmindco/meshmind/pkg/eventstream"
)

// DefaultTopic is the topic events are published to when none is configured.
const DefaultTopic = "meshmind.sessions"

const defaultBatchTimeout = 100 * time.Millisecond

// Config holds construction parameters for a Publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic overrides DefaultTopic when non-empty.
	Topic string

	// Logger is the zap logger. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Publisher writes JSON-encoded events to a Kafka topic, keyed by session id
// so one session's events land on one partition in order.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

var _ eventstream.Publisher = (*Publisher)(nil)

// New creates a Kafka publisher.
func New(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: defaultBatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return &Publisher{
		writer: writer,
		logger: cfg.Logger,
	}, nil
}

// Publish writes one event to the topic.
func (p *Publisher) Publish(ctx context.Context, event eventstream.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key()),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publishing %s event: %w", event.Type, err)
	}

	p.logger.Debug("event published",
		zap.String("type", event.Type),
		zap.String("key", event.Key()),
	)
	return nil
}

// Close flushes buffered messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
