package ack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/logger"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka acknowledgment sink.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	// Async hands messages to the writer's background batcher; delivery errors
	// are only logged.
	Async bool
}

// KafkaSink publishes acknowledgment receipts keyed by notification id.
type KafkaSink struct {
	writer MessageWriter
	topic  string
	log    *zap.Logger
}

// NewKafkaSink builds a sink backed by a kafka.Writer.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("ack: at least one kafka broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("ack: kafka topic is required")
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 100 * time.Millisecond
	}

	log := logger.WithModule("ack.kafka")
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequireOne,
		Async:                  cfg.Async,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn("ack batch failed", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
	return NewKafkaSinkWithWriter(writer, cfg.Topic), nil
}

// NewKafkaSinkWithWriter wraps an existing writer.
func NewKafkaSinkWithWriter(writer MessageWriter, topic string) *KafkaSink {
	return &KafkaSink{
		writer: writer,
		topic:  topic,
		log:    logger.WithModule("ack.kafka"),
	}
}

// RecordAck implements realtime.AckSink.
func (s *KafkaSink) RecordAck(ctx context.Context, receipt realtime.AckReceipt) error {
	value, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("ack: encode receipt: %w", err)
	}

	key := receipt.NotificationID
	if key == "" {
		key = receipt.EventID
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  receipt.ReceivedAt,
		Headers: []kafka.Header{
			{Key: "user_id", Value: []byte(receipt.UserID)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("ack: publish to %s: %w", s.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
