package client

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/logger"
)

// Acker sends acknowledgments for surfaced notifications.
type Acker interface {
	SendAck(notificationID, eventID string) bool
}

// Session wires the connection, the store and the presenter of one signed in
// user.
type Session struct {
	conn      *Conn
	store     *Store
	presenter *Presenter
	interval  time.Duration
	log       *zap.Logger
}

// SessionConfig configures NewSession.
type SessionConfig struct {
	Conn    ConnConfig
	Backend Backend
	Surface Surface
	// ResyncInterval triggers a periodic Refresh while running. Zero disables it.
	ResyncInterval time.Duration
	MaxVisible     int
	AfterFunc      AfterFunc
}

// NewSession builds a session. Surfaced notifications that require
// acknowledgment are acked over the connection.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Conn.URL == "" {
		return nil, errors.New("client: websocket url is required")
	}
	conn := NewConn(cfg.Conn)
	s := &Session{
		conn:     conn,
		store:    NewStore(cfg.Backend),
		interval: cfg.ResyncInterval,
		log:      logger.WithModule("client"),
	}
	s.presenter = NewPresenter(cfg.Surface,
		WithMaxVisible(cfg.MaxVisible),
		WithAfterFunc(cfg.AfterFunc),
		WithSurfaced(func(n Notification) { ackSurfaced(conn, n) }),
	)
	return s, nil
}

// Store exposes the notification window.
func (s *Session) Store() *Store { return s.store }

// Presenter exposes the transient surface.
func (s *Session) Presenter() *Presenter { return s.presenter }

// Run keeps the session alive until ctx is done or the connection gives up.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	frames := make(chan realtime.InboundFrame, 64)

	g.Go(func() error {
		defer cancel()
		defer close(frames)
		return s.conn.Run(ctx, func(frame realtime.InboundFrame) {
			select {
			case frames <- frame:
			case <-ctx.Done():
			}
		})
	})

	g.Go(func() error {
		for frame := range frames {
			s.dispatch(ctx, g, frame)
		}
		return nil
	})

	if s.interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					_ = s.store.Refresh(ctx)
				}
			}
		})
	}

	return g.Wait()
}

func (s *Session) dispatch(ctx context.Context, g *errgroup.Group, frame realtime.InboundFrame) {
	switch frame.Event {
	case realtime.EventConnected:
		// Pushes missed while disconnected are only visible through a fetch.
		g.Go(func() error {
			_ = s.store.Refresh(ctx)
			return nil
		})
	case realtime.EventNotification:
		var n Notification
		if err := json.Unmarshal(frame.Data, &n); err != nil {
			s.log.Warn("invalid notification frame", zap.Error(err))
			return
		}
		if s.store.Apply(n) {
			s.presenter.Present(n)
		}
	case realtime.EventNotificationRead:
		var read realtime.ReadEvent
		if err := json.Unmarshal(frame.Data, &read); err != nil {
			s.log.Warn("invalid read frame", zap.Error(err))
			return
		}
		if !s.store.ApplyRead(read.ID, read.EventID) {
			g.Go(func() error {
				_ = s.store.ResyncCounts(ctx)
				return nil
			})
		}
	case realtime.EventNotificationReadAll:
		s.store.ApplyReadAll()
	case realtime.EventError:
		s.log.Warn("server reported error", zap.ByteString("data", frame.Data))
	}
}

func ackSurfaced(acker Acker, n Notification) {
	if !n.RequiresAck {
		return
	}
	acker.SendAck(n.ID, n.EventID)
}
