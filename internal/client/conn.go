package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/logger"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/response"
)

const (
	DefaultMaxAttempts = 10
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second

	writeWait  = 10 * time.Second
	pongWait   = 75 * time.Second
	outboxSize = 16
)

// ErrAuthRejected is returned by Run when the server refuses the credentials.
var ErrAuthRejected = errors.New("realtime: authentication rejected")

// HandshakeError is a rejected upgrade, decoded from the error envelope.
type HandshakeError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("realtime: handshake rejected (%d): %s", e.StatusCode, e.Message)
}

// FrameHandler receives every server frame in arrival order.
type FrameHandler func(frame realtime.InboundFrame)

// ConnConfig configures a Conn.
type ConnConfig struct {
	URL         string
	Token       string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Dialer      *websocket.Dialer
}

// Conn keeps one websocket session to the gateway alive, reconnecting after
// involuntary disconnects.
type Conn struct {
	cfg  ConnConfig
	log  *zap.Logger
	wait func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	outbox chan realtime.ClientFrame
}

// NewConn applies defaults to cfg and builds a Conn.
func NewConn(cfg ConnConfig) *Conn {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Conn{
		cfg:  cfg,
		log:  logger.WithModule("client.conn"),
		wait: sleepContext,
	}
}

// NewBackOff returns the reconnect schedule: delays double from base up to
// maxDelay without jitter, and the policy stops after attempts retries.
func NewBackOff(base, maxDelay time.Duration, attempts int) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.MaxInterval = maxDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithMaxRetries(exp, uint64(attempts))
}

// Run connects and dispatches frames to handle until ctx is done, the
// credentials are rejected, or reconnect attempts are exhausted. Exhaustion is
// logged and returns nil.
func (c *Conn) Run(ctx context.Context, handle FrameHandler) error {
	policy := NewBackOff(c.cfg.BaseDelay, c.cfg.MaxDelay, c.cfg.MaxAttempts)
	attempt := 0
	for {
		connected, err := c.session(ctx, handle)
		if ctx.Err() != nil {
			return nil
		}

		var rejected *HandshakeError
		if errors.As(err, &rejected) && rejected.StatusCode == http.StatusUnauthorized {
			c.log.Error("connection rejected", zap.String("code", rejected.Code), zap.String("reason", rejected.Message))
			return fmt.Errorf("%w: %s", ErrAuthRejected, rejected.Message)
		}

		if connected {
			policy.Reset()
			attempt = 0
		}
		delay := policy.NextBackOff()
		if delay == backoff.Stop {
			c.log.Warn("reconnect attempts exhausted", zap.Int("attempts", c.cfg.MaxAttempts), zap.Error(err))
			return nil
		}
		attempt++

		c.log.Info("reconnecting",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := c.wait(ctx, delay); err != nil {
			return nil
		}
	}
}

// SendAck queues an acknowledgment on the live session. It reports false when
// there is no session or its outbox is full; the ack is then dropped.
func (c *Conn) SendAck(notificationID, eventID string) bool {
	c.mu.Lock()
	outbox := c.outbox
	c.mu.Unlock()

	if outbox == nil {
		c.log.Debug("ack dropped, not connected", zap.String("notification_id", notificationID))
		return false
	}
	select {
	case outbox <- realtime.ClientFrame{Action: realtime.ActionAck, NotificationID: notificationID, EventID: eventID}:
		return true
	default:
		c.log.Debug("ack dropped, outbox full", zap.String("notification_id", notificationID))
		return false
	}
}

// Connected reports whether a session is live.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outbox != nil
}

func (c *Conn) session(ctx context.Context, handle FrameHandler) (bool, error) {
	header := http.Header{}
	if token := strings.TrimSpace(c.cfg.Token); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	socket, resp, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return false, handshakeError(resp)
		}
		return false, err
	}
	defer socket.Close()

	outbox := make(chan realtime.ClientFrame, outboxSize)
	c.mu.Lock()
	c.outbox = outbox
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.outbox = nil
		c.mu.Unlock()
	}()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(ctx, socket, outbox, done)
	}()
	defer wg.Wait()
	defer close(done)

	_ = socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPingHandler(func(data string) error {
		_ = socket.SetReadDeadline(time.Now().Add(pongWait))
		err := socket.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		var frame realtime.InboundFrame
		if err := socket.ReadJSON(&frame); err != nil {
			return true, err
		}
		handle(frame)
	}
}

func (c *Conn) writeLoop(ctx context.Context, socket *websocket.Conn, outbox <-chan realtime.ClientFrame, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = socket.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = socket.Close()
			return
		case frame := <-outbox:
			_ = socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := socket.WriteJSON(frame); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				_ = socket.Close()
				return
			}
		}
	}
}

func handshakeError(resp *http.Response) error {
	out := &HandshakeError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var envelope response.Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&envelope); err == nil && envelope.Error != nil {
		out.Code = envelope.Error.Code
		out.Message = envelope.Error.Message
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
