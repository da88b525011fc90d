package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/zenebedagim/dental-clinic-sub002/internal/cache"
)

// Store coordinates fixed-window counters for a key.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
	Reset(ctx context.Context, key string) error
}

// MemoryStore provides process-local counters. It is concurrency-safe.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]*memoryCounter
	clock func() time.Time

	stop chan struct{}
	once sync.Once
}

type memoryCounter struct {
	count     int
	windowEnd time.Time
}

// MemoryOption customises a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewMemoryStore constructs an in-memory store. A background sweep drops
// elapsed windows every sweep interval; pass 0 to disable it.
func NewMemoryStore(sweep time.Duration, opts ...MemoryOption) *MemoryStore {
	store := &MemoryStore{
		data:  make(map[string]*memoryCounter),
		clock: time.Now,
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(store)
	}
	if sweep > 0 {
		go store.sweepLoop(sweep)
	}
	return store
}

func (s *MemoryStore) sweepLoop(every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-tick.C:
			s.Sweep()
		}
	}
}

// Sweep removes counters whose window has elapsed.
func (s *MemoryStore) Sweep() {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, counter := range s.data {
		if !now.Before(counter.windowEnd) {
			delete(s.data, key)
		}
	}
}

// Close stops the background sweep.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.data[key]
	if !ok || !now.Before(counter.windowEnd) {
		counter = &memoryCounter{windowEnd: now.Add(window)}
		s.data[key] = counter
	}
	counter.count++

	return counter.count, counter.windowEnd.Sub(now), nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// cacheStore adapts a shared cache.Store (Redis or database) to Store.
type cacheStore struct {
	store cache.Store
}

// NewCacheStore wraps a cache.Store so counters are shared by every process using it.
func NewCacheStore(store cache.Store) Store {
	if store == nil {
		return nil
	}
	return &cacheStore{store: store}
}

func (s *cacheStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	return int(count), ttl, err
}

func (s *cacheStore) Reset(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}
