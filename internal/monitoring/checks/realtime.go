package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/zenebedagim/dental-clinic-sub002/internal/monitoring"
)

// RealtimeObserver exposes the hub state required to evaluate realtime health.
type RealtimeObserver interface {
	ActiveSessions() int
	Accepting() bool
}

// Realtime reports the hub down once it stops admitting sessions.
func Realtime(observer RealtimeObserver) monitoring.Check {
	return monitoring.NewCheck("realtime", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if observer == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "realtime hub unavailable",
				Duration: time.Since(start),
			}
		}
		if !observer.Accepting() {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDown,
				Details:  "hub closed",
				Duration: time.Since(start),
			}
		}

		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  fmt.Sprintf("%d active sessions", observer.ActiveSessions()),
			Duration: time.Since(start),
		}
	})
}
