package checks

import (
	"context"
	"time"

	"github.com/zenebedagim/dental-clinic-sub002/internal/monitoring"
)

// Pinger is satisfied by every cache.Store backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache probes the rate-limit store. backend names the implementation in
// the report ("redis" or "database").
func Cache(store Pinger, backend string) monitoring.Check {
	return monitoring.NewCheck("cache", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if store == nil {
			return monitoring.ProbeResult{
				Status:  monitoring.StatusDegraded,
				Details: "cache unavailable",
			}
		}

		if err := store.Ping(ctx); err != nil {
			result := monitoring.ResultFromError("cache", err, time.Since(start))
			result.Details = backend + ": " + result.Details
			return result
		}

		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  backend,
			Duration: time.Since(start),
		}
	})
}
