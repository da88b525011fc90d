package client

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
	"github.com/zenebedagim/dental-clinic-sub002/pkg/logger"
)

// DefaultCapacity bounds the local notification window.
const DefaultCapacity = 100

// Notification is the client view of one notification.
type Notification = realtime.NotificationPayload

// UnreadCounts mirrors the unread endpoint response.
type UnreadCounts struct {
	Count      int64                     `json:"count"`
	ByPriority map[models.Priority]int64 `json:"byPriority"`
}

// Counters is a snapshot of the local unread counters. Total always equals the
// sum of ByPriority.
type Counters struct {
	Total      int64
	ByPriority map[models.Priority]int64
}

// Backend is the REST surface the store synchronises with.
type Backend interface {
	List(ctx context.Context, limit int) ([]Notification, error)
	Unread(ctx context.Context) (UnreadCounts, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithCapacity overrides the window size.
func WithCapacity(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// Store holds the newest notifications of the signed in user and the unread
// counters, reconciling live pushes with fetched pages.
type Store struct {
	mu       sync.Mutex
	items    []Notification
	unread   map[models.Priority]int64
	capacity int

	refreshGen    uint64
	cancelRefresh context.CancelFunc

	backend Backend
	log     *zap.Logger
}

// NewStore constructs an empty store synchronising through backend.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		unread:   zeroCounts(),
		capacity: DefaultCapacity,
		backend:  backend,
		log:      logger.WithModule("client.store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply records a live notification. It reports false when the notification
// is already known, in which case nothing changes.
func (s *Store) Apply(n Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(n) >= 0 {
		return false
	}
	s.items = append([]Notification{n}, s.items...)
	s.trimLocked()
	if !n.Read {
		s.unread[tier(n.Priority)]++
	}
	return true
}

// Merge folds a fetched page into the window. Fetched rows replace matching
// local entries. Counters are left to Resync.
func (s *Store) Merge(page []Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeLocked(page)
}

// Resync replaces the local counters with server counts.
func (s *Store) Resync(counts UnreadCounts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resyncLocked(counts)
}

// ApplyRead marks a notification read locally, as reported by another session.
// It reports false when the notification is outside the window.
func (s *Store) ApplyRead(id, eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markReadLocked(Notification{ID: id, EventID: eventID})
}

// ApplyReadAll marks the whole window read and clears the counters.
func (s *Store) ApplyReadAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markAllReadLocked()
}

// MarkRead marks id read locally, then on the server. Server failures are
// logged and the optimistic state is kept.
func (s *Store) MarkRead(ctx context.Context, id string) {
	s.mu.Lock()
	s.markReadLocked(Notification{ID: id, EventID: id})
	s.mu.Unlock()

	if s.backend == nil {
		return
	}
	if err := s.backend.MarkRead(ctx, id); err != nil {
		s.log.Warn("mark read failed", zap.String("id", id), zap.Error(err))
	}
}

// MarkAllRead clears every unread notification locally, then on the server.
func (s *Store) MarkAllRead(ctx context.Context) {
	s.mu.Lock()
	s.markAllReadLocked()
	s.mu.Unlock()

	if s.backend == nil {
		return
	}
	if err := s.backend.MarkAllRead(ctx); err != nil {
		s.log.Warn("mark all read failed", zap.Error(err))
	}
}

// Refresh fetches the newest page and the unread counts. A newer Refresh
// cancels an older one still in flight, and only the newest result is applied.
func (s *Store) Refresh(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}

	s.mu.Lock()
	if s.cancelRefresh != nil {
		s.cancelRefresh()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.refreshGen++
	gen := s.refreshGen
	s.cancelRefresh = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		if s.refreshGen == gen {
			s.cancelRefresh = nil
		}
		s.mu.Unlock()
	}()

	page, err := s.backend.List(ctx, s.capacity)
	if err == nil {
		var counts UnreadCounts
		counts, err = s.backend.Unread(ctx)
		if err == nil {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.refreshGen != gen {
				return nil
			}
			s.mergeLocked(page)
			s.resyncLocked(counts)
			return nil
		}
	}

	if s.superseded(gen) {
		return nil
	}
	s.log.Warn("refresh failed", zap.Error(err))
	return err
}

// ResyncCounts fetches only the unread counts.
func (s *Store) ResyncCounts(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	counts, err := s.backend.Unread(ctx)
	if err != nil {
		s.log.Warn("unread resync failed", zap.Error(err))
		return err
	}
	s.Resync(counts)
	return nil
}

// Items returns the window, newest first.
func (s *Store) Items() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.items...)
}

// Counters returns a snapshot of the unread counters.
func (s *Store) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Counters{ByPriority: make(map[models.Priority]int64, len(s.unread))}
	for p, n := range s.unread {
		out.ByPriority[p] = n
		out.Total += n
	}
	return out
}

func (s *Store) superseded(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshGen != gen
}

func (s *Store) indexLocked(n Notification) int {
	for i := range s.items {
		if sameNotification(s.items[i], n) {
			return i
		}
	}
	return -1
}

func (s *Store) mergeLocked(page []Notification) {
	for _, n := range page {
		if i := s.indexLocked(n); i >= 0 {
			// A local read may not have reached the server yet.
			n.Read = n.Read || s.items[i].Read
			s.items[i] = n
			continue
		}
		s.items = append(s.items, n)
	}
	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].Timestamp.After(s.items[j].Timestamp)
	})
	s.trimLocked()
}

func (s *Store) resyncLocked(counts UnreadCounts) {
	s.unread = zeroCounts()
	for p, n := range counts.ByPriority {
		if n > 0 {
			s.unread[tier(p)] += n
		}
	}
}

func (s *Store) markReadLocked(target Notification) bool {
	i := s.indexLocked(target)
	if i < 0 {
		return false
	}
	if !s.items[i].Read {
		s.items[i].Read = true
		p := tier(s.items[i].Priority)
		if s.unread[p] > 0 {
			s.unread[p]--
		}
	}
	return true
}

func (s *Store) markAllReadLocked() {
	for i := range s.items {
		s.items[i].Read = true
	}
	s.unread = zeroCounts()
}

func (s *Store) trimLocked() {
	if len(s.items) > s.capacity {
		s.items = s.items[:s.capacity]
	}
}

// sameNotification matches on row id or event id. A room push carries the
// event id where a fetched row carries its own id.
func sameNotification(a, b Notification) bool {
	switch {
	case a.ID != "" && (a.ID == b.ID || a.ID == b.EventID):
		return true
	case a.EventID != "" && (a.EventID == b.EventID || a.EventID == b.ID):
		return true
	}
	return false
}

func tier(p models.Priority) models.Priority {
	if p.Valid() {
		return p
	}
	return models.PriorityNormal
}

func zeroCounts() map[models.Priority]int64 {
	out := make(map[models.Priority]int64, len(models.Priorities))
	for _, p := range models.Priorities {
		out[p] = 0
	}
	return out
}
