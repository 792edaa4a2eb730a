package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/garage-occupancy-service/internal/config"
	"github.com/couchcryptid/garage-occupancy-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// MessageKey keys every snapshot message so the topic keeps one ordered stream.
const MessageKey = "garage-occupancy"

// messageWriter is the subset of *kafkago.Writer used by Publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces snapshot observations to a Kafka topic.
// It implements ingest.Publisher.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured snapshot topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, topic: cfg.KafkaTopic, logger: logger}
}

// Publish serializes one observation and writes it synchronously.
func (p *Publisher) Publish(ctx context.Context, obs domain.Observation) error {
	msg, err := serializeToMessage(obs)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write snapshot to %s: %w", p.topic, err)
	}
	p.logger.DebugContext(ctx, "snapshot written", "topic", p.topic, "bytes", len(msg.Value))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an Observation into a Kafka message.
func serializeToMessage(obs domain.Observation) (kafkago.Message, error) {
	data, err := json.Marshal(obs)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "garage_count", Value: []byte(strconv.Itoa(len(obs.Garages)))},
			{Key: "observed_at", Value: []byte(obs.ObservedAt.Format(time.RFC3339))},
		},
	}, nil
}
