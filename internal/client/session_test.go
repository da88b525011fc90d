package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
)

type ackRecorder struct {
	mu       sync.Mutex
	receipts []realtime.AckReceipt
}

func (a *ackRecorder) RecordAck(_ context.Context, receipt realtime.AckReceipt) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.receipts = append(a.receipts, receipt)
	return nil
}

func (a *ackRecorder) snapshot() []realtime.AckReceipt {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]realtime.AckReceipt(nil), a.receipts...)
}

func TestNewSessionRequiresURL(t *testing.T) {
	_, err := NewSession(SessionConfig{})
	require.Error(t, err)
}

func TestSessionSurfacesAcksAndSyncsReads(t *testing.T) {
	acks := &ackRecorder{}
	g, url := newGateway(t, realtime.WithAckSink(acks))

	seen := note("row-0", "evt-0", models.PriorityNormal, 0)
	seen.Read = true
	backend := &fakeBackend{
		page:   []Notification{seen},
		counts: UnreadCounts{ByPriority: map[models.Priority]int64{}},
	}
	clock := &fakeClock{}
	surface := &recordingSurface{}
	session, err := NewSession(SessionConfig{
		Conn:      ConnConfig{URL: url, Token: "good"},
		Backend:   backend,
		Surface:   surface,
		AfterFunc: clock.AfterFunc,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	hub := g.current()
	require.Eventually(t, func() bool { return hub.ActiveSessions() == 1 }, 2*time.Second, 10*time.Millisecond)
	// The fetch after connecting lands before any push.
	require.Eventually(t, func() bool { return len(session.Store().Items()) == 1 }, 2*time.Second, 10*time.Millisecond)

	critical := realtime.NotificationPayload{
		ID:          "evt-1",
		EventID:     "evt-1",
		Priority:    models.PriorityCritical,
		Title:       "Patient collapsed in waiting room",
		RequiresAck: true,
		Timestamp:   time.Now(),
	}
	routine := realtime.NotificationPayload{
		ID:        "row-2",
		Priority:  models.PriorityLow,
		Title:     "Invoice paid",
		Timestamp: time.Now(),
	}
	require.Equal(t, 1, hub.BroadcastToRoom(realtime.BranchChannel("b1"), realtime.EventNotification, critical))
	require.Equal(t, 1, hub.SendToUser(receptionist.UserID, realtime.EventNotification, routine))
	// Duplicate push of the same event is ignored.
	require.Equal(t, 1, hub.BroadcastToRoom(realtime.RoleChannel(models.RoleReception), realtime.EventNotification, critical))

	require.Eventually(t, func() bool { return len(session.Store().Items()) == 3 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(acks.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)

	receipt := acks.snapshot()[0]
	require.Equal(t, "evt-1", receipt.NotificationID)
	require.Equal(t, "evt-1", receipt.EventID)
	require.Equal(t, receptionist.UserID, receipt.UserID)

	require.Len(t, session.Presenter().Visible(), 2)
	counters := session.Store().Counters()
	require.EqualValues(t, 2, counters.Total)
	require.EqualValues(t, 1, counters.ByPriority[models.PriorityCritical])

	hub.SendToUser(receptionist.UserID, realtime.EventNotificationRead, realtime.ReadEvent{ID: "evt-1", EventID: "evt-1"})
	require.Eventually(t, func() bool { return session.Store().Counters().Total == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.SendToUser(receptionist.UserID, realtime.EventNotificationReadAll, nil)
	require.Eventually(t, func() bool { return session.Store().Counters().Total == 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("session did not stop")
	}
}

func TestSessionDispatchIgnoresMalformedFrames(t *testing.T) {
	session, err := NewSession(SessionConfig{Conn: ConnConfig{URL: "ws://127.0.0.1:1/ws"}})
	require.NoError(t, err)

	frame := realtime.InboundFrame{Event: realtime.EventNotification, Data: json.RawMessage(`"nope"`)}
	session.dispatch(context.Background(), nil, frame)
	require.Empty(t, session.Store().Items())
}
