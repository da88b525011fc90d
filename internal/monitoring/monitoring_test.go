package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zenebedagim/dental-clinic-sub002/internal/cache"
	"github.com/zenebedagim/dental-clinic-sub002/internal/database/testutil"
	"github.com/zenebedagim/dental-clinic-sub002/internal/monitoring"
	"github.com/zenebedagim/dental-clinic-sub002/internal/monitoring/checks"
)

func TestHealthManagerEvaluate(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager(time.Second)
	manager.RegisterReadiness(monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("cache", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("", nil))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "database", report.Checks[0].Component)
	require.Equal(t, "cache", report.Checks[1].Component)
}

func TestHealthManagerRecoversPanicsAndTimesOut(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager(20 * time.Millisecond)
	manager.RegisterLiveness(monitoring.NewCheck("panics", func(context.Context) monitoring.ProbeResult {
		panic("boom")
	}))
	manager.RegisterLiveness(monitoring.NewCheck("slow", func(ctx context.Context) monitoring.ProbeResult {
		<-ctx.Done()
		return monitoring.ResultFromError("slow", ctx.Err(), 0)
	}))

	report := manager.EvaluateLiveness(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Equal(t, monitoring.StatusDown, report.Checks[0].Status)
	require.Equal(t, "boom", report.Checks[0].Details)
	require.Equal(t, monitoring.StatusDegraded, report.Checks[1].Status)
}

func TestMergeReports(t *testing.T) {
	live := monitoring.HealthReport{Checks: []monitoring.ProbeResult{{Component: "a", Status: monitoring.StatusUp}}}
	ready := monitoring.HealthReport{Checks: []monitoring.ProbeResult{{Component: "b", Status: monitoring.StatusDegraded}}}

	merged := monitoring.MergeReports(live, ready)
	require.False(t, merged.Success)
	require.Equal(t, monitoring.StatusDegraded, merged.Status)
	require.Len(t, merged.Checks, 2)
}

func TestMaintenanceCheck(t *testing.T) {
	t.Parallel()

	tracker := monitoring.NewJobTracker()
	check := checks.Maintenance(tracker, 0)
	require.Equal(t, monitoring.StatusUp, check.Run(context.Background()).Status)

	tracker.Record("notification_purge", nil, time.Second)
	tracker.Record("cache_purge", errors.New("timeout"), time.Second)

	result := check.Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "cache_purge: timeout")

	jobs := tracker.Snapshot()
	require.Len(t, jobs, 2)
	require.Equal(t, "cache_purge", jobs[0].Job)
	require.Equal(t, uint64(1), jobs[0].ConsecutiveFailures)

	tracker.Record("cache_purge", nil, time.Second)
	require.Equal(t, monitoring.StatusUp, check.Run(context.Background()).Status)
}

type fakeHub struct {
	active    int
	accepting bool
}

func (f fakeHub) ActiveSessions() int { return f.active }
func (f fakeHub) Accepting() bool     { return f.accepting }

func TestRealtimeCheck(t *testing.T) {
	t.Parallel()

	up := checks.Realtime(fakeHub{active: 3, accepting: true}).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, up.Status)
	require.Equal(t, "3 active sessions", up.Details)

	down := checks.Realtime(fakeHub{}).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, down.Status)

	missing := checks.Realtime(nil).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, missing.Status)
}

func TestDatabaseAndCacheChecks(t *testing.T) {
	t.Parallel()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	result := checks.Database(db).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Contains(t, result.Details, "sqlite")

	cacheResult := checks.Cache(cache.NewDatabaseStore(db), "database").Run(context.Background())
	require.Equal(t, monitoring.StatusUp, cacheResult.Status)
	require.Equal(t, "database", cacheResult.Details)

	require.Equal(t, monitoring.StatusDown, checks.Database(nil).Run(context.Background()).Status)
}
