package cache

import (
	"context"
	"time"
)

// Store represents a shared cache interface used across the application.
//
// IncrementWithTTL implements a fixed window: the expiry is set when the key is
// first created (or has expired) and is not extended by later increments. It
// returns the new count and the time remaining in the window. Callers that
// need a sliding limit must account for bursts straddling two windows.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
