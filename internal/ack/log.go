package ack

import (
	"context"

	"go.uber.org/zap"

	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/logger"
)

// LogSink writes receipts to the structured log. Used when no broker is configured.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{log: logger.WithModule("ack")}
}

func (s *LogSink) RecordAck(_ context.Context, receipt realtime.AckReceipt) error {
	s.log.Info("notification acknowledged",
		zap.String("notification_id", receipt.NotificationID),
		zap.String("event_id", receipt.EventID),
		zap.String("user_id", receipt.UserID),
		zap.String("session_id", receipt.SessionID),
		zap.Time("received_at", receipt.ReceivedAt),
	)
	return nil
}

func (s *LogSink) Close() error { return nil }
