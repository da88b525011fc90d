package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
)

// Server-to-client event names.
const (
	EventNotification = "notification"
	EventPong         = "pong"
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventError        = "error"
	EventConnected    = "connected"

	// Read-state sync between tabs of the same user.
	EventNotificationRead    = "notification.read"
	EventNotificationReadAll = "notification.read_all"
)

// Client-to-server actions.
const (
	ActionAck         = "ack"
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

// Frame is a server-to-client message.
type Frame struct {
	Event   string `json:"event"`
	Channel string `json:"channel,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ClientFrame is a client-to-server control message.
type ClientFrame struct {
	Action         string   `json:"action"`
	Channels       []string `json:"channels,omitempty"`
	NotificationID string   `json:"notificationId,omitempty"`
	EventID        string   `json:"eventId,omitempty"`
}

// InboundFrame is a server frame as seen by a client, with data left raw.
type InboundFrame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NotificationPayload is the data of an EventNotification frame.
type NotificationPayload struct {
	ID          string          `json:"id"`
	EventID     string          `json:"eventId,omitempty"`
	Type        string          `json:"type,omitempty"`
	Priority    models.Priority `json:"priority"`
	Title       string          `json:"title"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data,omitempty"`
	ActionURL   string          `json:"actionUrl,omitempty"`
	RequiresAck bool            `json:"requiresAck"`
	Read        bool            `json:"read"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ReadEvent is the data of an EventNotificationRead frame.
type ReadEvent struct {
	ID      string `json:"id"`
	EventID string `json:"eventId,omitempty"`
}

// SubscriptionResult is the data of subscribed/unsubscribed replies.
type SubscriptionResult struct {
	Channels []string `json:"channels"`
	Denied   []string `json:"denied,omitempty"`
}

// AckReceipt records that a client surfaced a notification requiring acknowledgment.
type AckReceipt struct {
	NotificationID string    `json:"notificationId"`
	EventID        string    `json:"eventId,omitempty"`
	UserID         string    `json:"userId"`
	SessionID      string    `json:"sessionId"`
	ReceivedAt     time.Time `json:"receivedAt"`
}

// AckSink receives acknowledgment receipts. Implementations decide persistence.
type AckSink interface {
	RecordAck(ctx context.Context, receipt AckReceipt) error
}

// AckSinkFunc adapts a function to AckSink.
type AckSinkFunc func(ctx context.Context, receipt AckReceipt) error

func (f AckSinkFunc) RecordAck(ctx context.Context, receipt AckReceipt) error {
	return f(ctx, receipt)
}
