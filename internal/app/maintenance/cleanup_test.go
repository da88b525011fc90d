package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"github.com/zenebedagim/dental-clinic-sub002/internal/cache"
	"github.com/zenebedagim/dental-clinic-sub002/internal/database/testutil"
	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
	"github.com/zenebedagim/dental-clinic-sub002/internal/monitoring"
	"github.com/zenebedagim/dental-clinic-sub002/internal/services"
)

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := &fixedClock{current: time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)}
	user := testutil.MustCreateUser(t, db, "dent", models.RoleDentist, "b1")

	dir, err := services.NewUserDirectory(db)
	require.NoError(t, err)
	svc, err := services.NewNotificationService(db, nil, dir)
	require.NoError(t, err)

	old := clock.Now().AddDate(0, 0, -10)
	recent := clock.Now().AddDate(0, 0, -2)
	rows := []models.Notification{
		{UserID: user.ID, Type: "t", Title: "old read", IsRead: true, ReadAt: &old},
		{UserID: user.ID, Type: "t", Title: "recent read", IsRead: true, ReadAt: &recent},
		{UserID: user.ID, Type: "t", Title: "unread"},
	}
	require.NoError(t, db.Create(&rows).Error)

	store := cache.NewDatabaseStore(db, cache.WithDatabaseClock(clock.Now))
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "stale", []byte("x"), time.Minute))
	require.NoError(t, store.Set(ctx, "fresh", []byte("y"), time.Hour))
	clock.current = clock.current.Add(10 * time.Minute)

	c := NewCleaner(svc, store,
		WithNow(clock.Now),
		WithRetentionDays(7),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)
	require.NoError(t, c.RunOnce(ctx))

	var titles []string
	require.NoError(t, db.Model(&models.Notification{}).Order("title").Pluck("title", &titles).Error)
	require.Equal(t, []string{"recent read", "unread"}, titles)

	var keys []string
	require.NoError(t, db.Model(&models.CacheEntry{}).Pluck("key", &keys).Error)
	require.Equal(t, []string{"fresh"}, keys)
}

type failingPurger struct{ err error }

func (f failingPurger) PurgeRead(context.Context, time.Time) (int64, error) { return 0, f.err }
func (f failingPurger) PurgeExpired(context.Context) (int64, error)         { return 0, f.err }

func TestCleanerRunOnceCombinesErrors(t *testing.T) {
	first := errors.New("notifications down")
	second := errors.New("cache down")

	tracker := monitoring.NewJobTracker()

	c := NewCleaner(failingPurger{err: first}, failingPurger{err: second}, WithRecorder(tracker))
	err := c.RunOnce(context.Background())
	require.ErrorIs(t, err, first)
	require.ErrorIs(t, err, second)

	jobs := tracker.Snapshot()
	require.Len(t, jobs, 2)
	require.Equal(t, JobCachePurge, jobs[0].Job)
	require.Equal(t, "cache down", jobs[0].LastError)
	require.Equal(t, JobNotificationPurge, jobs[1].Job)
}

func TestCleanerStartWithoutJobs(t *testing.T) {
	c := NewCleaner(nil, nil)
	require.NoError(t, c.Start())
	<-c.Stop().Done()
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	c := NewCleaner(failingPurger{}, nil, WithPurgeSchedule("not a schedule"))
	require.Error(t, c.Start())
}
