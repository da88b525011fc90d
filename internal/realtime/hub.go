package realtime

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	apperrors "github.com/zenebedagim/dental-clinic-sub002/pkg/errors"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/logger"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	ackTimeout     = 5 * time.Second

	defaultBufferSize = 64
)

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithSendBuffer sets the per-session outbound queue length.
func WithSendBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// WithAllowedOrigins extends the same-origin/loopback origin check with explicit origins.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) {
		for _, origin := range origins {
			if host := hostWithoutPort(origin); host != "" {
				h.allowedOrigins[strings.ToLower(host)] = struct{}{}
			}
		}
	}
}

// WithAckSink routes client acknowledgments to sink.
func WithAckSink(sink AckSink) HubOption {
	return func(h *Hub) {
		if sink != nil {
			h.acks = sink
		}
	}
}

// Hub owns the live sessions and their channel memberships.
type Hub struct {
	mu       sync.RWMutex
	members  map[string]map[*session]struct{}
	sessions map[*session]struct{}
	closed   bool
	wg       sync.WaitGroup

	upgrader       websocket.Upgrader
	allowedOrigins map[string]struct{}
	bufferSize     int
	acks           AckSink
	log            *zap.Logger
}

// NewHub constructs a realtime hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		members:        make(map[string]map[*session]struct{}),
		sessions:       make(map[*session]struct{}),
		allowedOrigins: make(map[string]struct{}),
		bufferSize:     defaultBufferSize,
		log:            logger.WithModule("realtime"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.acks == nil {
		h.acks = AckSinkFunc(func(context.Context, AckReceipt) error { return nil })
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Serve upgrades the request and runs the session for identity until it
// disconnects. The caller must have authenticated the request already.
func (h *Hub) Serve(identity Identity, w http.ResponseWriter, r *http.Request) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return apperrors.ErrServiceUnavailable
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.String("user_id", identity.UserID), zap.Error(err))
		return nil
	}

	s := newSession(h, socket, identity)
	if !h.register(s) {
		_ = socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = socket.Close()
		return nil
	}

	s.enqueue(Frame{Event: EventConnected, Data: map[string]any{
		"sessionId": s.id,
		"channels":  s.channelNames(),
	}})

	go s.writeLoop()
	s.readLoop()
	return nil
}

// register enrolls s in its fixed channels atomically.
func (h *Hub) register(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	for _, ch := range EnrollmentChannels(s.identity) {
		h.joinLocked(s, ch, true)
	}
	h.sessions[s] = struct{}{}
	h.wg.Add(2)
	metrics.ActiveSessions.Inc()

	h.log.Info("session opened",
		zap.String("session_id", s.id),
		zap.String("user_id", s.identity.UserID),
		zap.String("role", string(s.identity.Role)),
		zap.String("branch_id", s.identity.BranchID),
	)
	return true
}

func (h *Hub) joinLocked(s *session, ch Channel, fixed bool) {
	name := ch.String()
	if _, ok := s.channels[name]; ok {
		return
	}
	if h.members[name] == nil {
		h.members[name] = make(map[*session]struct{})
	}
	h.members[name][s] = struct{}{}
	s.channels[name] = fixed
}

func (h *Hub) leaveLocked(s *session, name string) {
	delete(s.channels, name)
	set := h.members[name]
	delete(set, s)
	if len(set) == 0 {
		delete(h.members, name)
	}
}

// unregister tears down every membership of s in one critical section.
func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; !ok {
		return
	}
	for name := range s.channels {
		h.leaveLocked(s, name)
	}
	delete(h.sessions, s)
	metrics.ActiveSessions.Dec()

	h.log.Info("session closed", zap.String("session_id", s.id), zap.String("user_id", s.identity.UserID))
}

// SendToUser delivers an event to every live session of userID and returns
// the number of sessions it was queued for.
func (h *Hub) SendToUser(userID, event string, payload any) int {
	if userID == "" {
		return 0
	}
	return h.BroadcastToRoom(UserChannel(userID), event, payload)
}

// BroadcastToRoom delivers an event to every session enrolled in ch at call
// time. A channel without members is a no-op.
func (h *Hub) BroadcastToRoom(ch Channel, event string, payload any) int {
	if !ch.Valid() || event == "" {
		return 0
	}
	name := ch.String()
	frame := Frame{Event: event, Channel: name, Data: payload}

	var slow []*session
	delivered := 0

	h.mu.RLock()
	for s := range h.members[name] {
		if s.enqueue(frame) {
			delivered++
		} else {
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	if delivered > 0 {
		metrics.Deliveries.WithLabelValues(string(ch.Kind)).Add(float64(delivered))
	}
	for _, s := range slow {
		metrics.SlowConsumers.Inc()
		h.log.Warn("dropping slow consumer", zap.String("session_id", s.id), zap.String("user_id", s.identity.UserID))
		s.close()
	}
	return delivered
}

// Close stops accepting sessions, disconnects live ones and waits for their
// goroutines to exit or ctx to expire.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	live := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		live = append(live, s)
	}
	h.mu.Unlock()

	for _, s := range live {
		s.close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveSessions returns the number of live sessions.
func (h *Hub) ActiveSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Accepting reports whether Serve still admits new sessions.
func (h *Hub) Accepting() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.closed
}

// Members returns the number of sessions enrolled in ch.
func (h *Hub) Members(ch Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members[ch.String()])
}

// Channels lists every channel with at least one member.
func (h *Hub) Channels() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.members))
	for name := range h.members {
		out = append(out, name)
	}
	return out
}

func (h *Hub) subscribe(s *session, names []string) SubscriptionResult {
	result := SubscriptionResult{Channels: []string{}}
	var accepted []Channel
	for _, name := range uniqueNames(names) {
		ch, err := ParseChannel(name)
		if err != nil || !CanSubscribe(s.identity, ch) {
			metrics.SubscriptionChecks.WithLabelValues("deny").Inc()
			result.Denied = append(result.Denied, name)
			continue
		}
		metrics.SubscriptionChecks.WithLabelValues("allow").Inc()
		accepted = append(accepted, ch)
	}

	h.mu.Lock()
	if _, live := h.sessions[s]; live {
		for _, ch := range accepted {
			h.joinLocked(s, ch, false)
			result.Channels = append(result.Channels, ch.String())
		}
	}
	h.mu.Unlock()
	return result
}

func (h *Hub) unsubscribe(s *session, names []string) SubscriptionResult {
	result := SubscriptionResult{Channels: []string{}}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, name := range uniqueNames(names) {
		fixed, joined := s.channels[name]
		if !joined || fixed {
			result.Denied = append(result.Denied, name)
			continue
		}
		h.leaveLocked(s, name)
		result.Channels = append(result.Channels, name)
	}
	return result
}

func (h *Hub) recordAck(s *session, frame ClientFrame) {
	if frame.NotificationID == "" && frame.EventID == "" {
		h.log.Debug("ignoring empty ack", zap.String("session_id", s.id))
		return
	}
	receipt := AckReceipt{
		NotificationID: frame.NotificationID,
		EventID:        frame.EventID,
		UserID:         s.identity.UserID,
		SessionID:      s.id,
		ReceivedAt:     time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
	defer cancel()
	if err := h.acks.RecordAck(ctx, receipt); err != nil {
		metrics.AckReceipts.WithLabelValues("error").Inc()
		h.log.Warn("record ack",
			zap.String("notification_id", receipt.NotificationID),
			zap.String("user_id", receipt.UserID),
			zap.Error(err),
		)
		return
	}
	metrics.AckReceipts.WithLabelValues("ok").Inc()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originHost := strings.ToLower(hostWithoutPort(origin))
	if originHost == strings.ToLower(hostWithoutPort(r.Host)) || isLoopback(originHost) {
		return true
	}
	_, ok := h.allowedOrigins[originHost]
	return ok
}

type session struct {
	id       string
	hub      *Hub
	socket   *websocket.Conn
	identity Identity
	// channels maps rendered channel names to whether they are fixed enrollments.
	// Guarded by hub.mu.
	channels map[string]bool
	send     chan Frame
	done     chan struct{}
	once     sync.Once
}

func newSession(h *Hub, socket *websocket.Conn, identity Identity) *session {
	return &session{
		id:       uuid.NewString(),
		hub:      h,
		socket:   socket,
		identity: identity,
		channels: make(map[string]bool, 4),
		send:     make(chan Frame, h.bufferSize),
		done:     make(chan struct{}),
	}
}

// enqueue reports false when the send buffer is full.
func (s *session) enqueue(frame Frame) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (s *session) channelNames() []string {
	names := make([]string, 0, 4)
	for _, ch := range EnrollmentChannels(s.identity) {
		names = append(names, ch.String())
	}
	return names
}

func (s *session) readLoop() {
	defer s.hub.wg.Done()
	defer s.close()

	s.socket.SetReadLimit(maxMessageSize)
	_ = s.socket.SetReadDeadline(time.Now().Add(pongWait))
	s.socket.SetPongHandler(func(string) error {
		return s.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := s.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.hub.log.Info("unexpected close", zap.String("session_id", s.id), zap.Error(err))
			}
			return
		}
		if len(payload) == 0 {
			continue
		}

		var frame ClientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			s.hub.log.Debug("invalid client frame", zap.String("session_id", s.id), zap.Error(err))
			s.reply(Frame{Event: EventError, Data: map[string]string{"message": "invalid frame"}})
			continue
		}

		switch strings.ToLower(strings.TrimSpace(frame.Action)) {
		case ActionAck:
			s.hub.recordAck(s, frame)
		case ActionSubscribe:
			s.reply(Frame{Event: EventSubscribed, Data: s.hub.subscribe(s, frame.Channels)})
		case ActionUnsubscribe:
			s.reply(Frame{Event: EventUnsubscribed, Data: s.hub.unsubscribe(s, frame.Channels)})
		case ActionPing:
			s.reply(Frame{Event: EventPong})
		default:
			s.reply(Frame{Event: EventError, Data: map[string]string{"message": "unsupported action"}})
		}
	}
}

func (s *session) reply(frame Frame) {
	if !s.enqueue(frame) {
		metrics.SlowConsumers.Inc()
		s.close()
	}
}

func (s *session) writeLoop() {
	defer s.hub.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
		_ = s.socket.Close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.socket.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case frame := <-s.send:
			_ = s.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.socket.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) close() {
	s.once.Do(func() {
		s.hub.unregister(s)
		close(s.done)
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.Contains(host, "://") {
		if parsed, err := url.Parse(host); err == nil {
			return hostWithoutPort(parsed.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}

func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
