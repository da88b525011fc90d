package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of a single attempt.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Limiter enforces at most Max attempts per key in each fixed window.
//
// The window is anchored at the first attempt for a key and is not a sliding
// window: a burst that straddles the window boundary can admit up to 2*Max
// attempts within one window length. Stores keep a single counter and expiry
// per key, which the Redis and database caches share.
type Limiter struct {
	store  Store
	prefix string
	max    int
	window time.Duration
}

// New builds a Limiter. Keys are namespaced by prefix inside the store.
func New(store Store, prefix string, max int, window time.Duration) *Limiter {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{store: store, prefix: prefix, max: max, window: window}
}

// Allow counts an attempt for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, ttl, err := l.store.Increment(ctx, l.prefix+key, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: increment %q: %w", key, err)
	}
	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= l.max,
		Count:     count,
		Limit:     l.max,
		Remaining: remaining,
		ResetIn:   ttl,
	}, nil
}

// Reset clears the counter for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, l.prefix+key)
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Max returns the configured attempt ceiling.
func (l *Limiter) Max() int { return l.max }
