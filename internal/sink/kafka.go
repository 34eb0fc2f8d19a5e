package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/i474232898/weather-poller/internal/weather"
)

// kafkaWriter abstracts kafka.Writer for testability.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig holds Kafka producer settings.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Kafka publishes each record as one message keyed by the observation key.
type Kafka struct {
	writer kafkaWriter
	topic  string
}

func NewKafka(cfg KafkaConfig) *Kafka {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: timeout,
	}
	return &Kafka{writer: w, topic: topic}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Emit(ctx context.Context, rec weather.Record) error {
	key, err := json.Marshal(rec.Key)
	if err != nil {
		return &EmitError{Sink: k.Name(), Err: fmt.Errorf("encode key: %w", err)}
	}
	value, err := json.Marshal(rec.Value)
	if err != nil {
		return &EmitError{Sink: k.Name(), Err: fmt.Errorf("encode value: %w", err)}
	}

	msg := kafka.Message{Key: key, Value: value, Time: rec.ObservedAt()}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return &EmitError{Sink: k.Name(), Err: err}
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
