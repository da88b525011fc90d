package ack

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/logger"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

var receipt = realtime.AckReceipt{
	NotificationID: "n-1",
	EventID:        "e-1",
	UserID:         "u-1",
	SessionID:      "s-1",
	ReceivedAt:     time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC),
}

func TestKafkaSinkPublishesReceipt(t *testing.T) {
	writer := &fakeWriter{}
	sink := NewKafkaSinkWithWriter(writer, "clinic.acks")

	require.NoError(t, sink.RecordAck(context.Background(), receipt))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	require.Equal(t, "n-1", string(msg.Key))
	require.Equal(t, receipt.ReceivedAt, msg.Time)
	require.Equal(t, "user_id", msg.Headers[0].Key)

	var decoded realtime.AckReceipt
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	require.Equal(t, receipt, decoded)

	require.NoError(t, sink.Close())
	require.True(t, writer.closed)
}

func TestKafkaSinkKeysByEventWhenIDMissing(t *testing.T) {
	writer := &fakeWriter{}
	sink := NewKafkaSinkWithWriter(writer, "clinic.acks")

	r := receipt
	r.NotificationID = ""
	require.NoError(t, sink.RecordAck(context.Background(), r))
	require.Equal(t, "e-1", string(writer.messages[0].Key))
}

func TestKafkaSinkWrapsWriterErrors(t *testing.T) {
	boom := errors.New("broker unavailable")
	sink := NewKafkaSinkWithWriter(&fakeWriter{err: boom}, "clinic.acks")

	err := sink.RecordAck(context.Background(), receipt)
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "clinic.acks")
}

func TestNewKafkaSinkValidatesConfig(t *testing.T) {
	_, err := NewKafkaSink(KafkaConfig{Topic: "acks"})
	require.Error(t, err)

	_, err = NewKafkaSink(KafkaConfig{Brokers: []string{" "}, Topic: "acks"})
	require.Error(t, err)

	_, err = NewKafkaSink(KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.Error(t, err)

	sink, err := NewKafkaSink(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "acks", Async: true})
	require.NoError(t, err)
	require.NoError(t, sink.Close())
}

func TestLogSinkWritesStructuredEntry(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	t.Cleanup(logger.Replace(zap.New(core)))

	sink := NewLogSink()
	require.NoError(t, sink.RecordAck(context.Background(), receipt))

	entries := recorded.FilterMessage("notification acknowledged").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "n-1", fields["notification_id"])
	require.Equal(t, "ack", fields["module"])
	require.NoError(t, sink.Close())
}
