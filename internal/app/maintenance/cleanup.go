package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/zenebedagim/dental-clinic-sub002/pkg/logger"
)

const (
	defaultRetentionDays = 90
	defaultPurgeSpec     = "@daily"
	defaultCacheSpec     = "@hourly"
)

// NotificationPurger removes read notifications older than a cutoff.
type NotificationPurger interface {
	PurgeRead(ctx context.Context, cutoff time.Time) (int64, error)
}

// CachePurger removes expired cache rows.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Recorder receives the outcome of every job run.
type Recorder interface {
	Record(job string, err error, duration time.Duration)
}

const (
	JobNotificationPurge = "notification_purge"
	JobCachePurge        = "cache_purge"
)

// Cleaner coordinates background maintenance: pruning read notifications past
// retention and dropping expired database cache rows.
type Cleaner struct {
	notifications NotificationPurger
	cache         CachePurger
	cron          *cron.Cron
	recorder      Recorder
	now           func() time.Time
	log           *zap.Logger
	retention     int

	purgeSchedule string
	cacheSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention cutoffs.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithRecorder reports job outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(cleaner *Cleaner) {
		cleaner.recorder = r
	}
}

// WithRetentionDays adjusts how long read notifications are kept.
func WithRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithPurgeSchedule overrides the cron specification for notification pruning.
func WithPurgeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.purgeSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache cleanup.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil dependency skips the corresponding job.
func NewCleaner(notifications NotificationPurger, cache CachePurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		notifications: notifications,
		cache:         cache,
		now:           time.Now,
		retention:     defaultRetentionDays,
		purgeSchedule: defaultPurgeSpec,
		cacheSchedule: defaultCacheSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one job is configured.
func (c *Cleaner) Start() error {
	if c.notifications == nil && c.cache == nil {
		return nil
	}

	if c.notifications != nil {
		if _, err := c.cron.AddFunc(c.purgeSchedule, func() {
			if _, err := c.purgeNotifications(context.Background()); err != nil {
				c.log.Warn("notification purge failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			if _, err := c.purgeCache(context.Background()); err != nil {
				c.log.Warn("cache purge failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once running jobs complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.notifications != nil {
		if _, err := c.purgeNotifications(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if c.cache != nil {
		if _, err := c.purgeCache(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (c *Cleaner) record(job string, start time.Time, err error) {
	if c.recorder != nil {
		c.recorder.Record(job, err, time.Since(start))
	}
}

func (c *Cleaner) purgeNotifications(ctx context.Context) (int64, error) {
	start := time.Now()
	cutoff := c.now().AddDate(0, 0, -c.retention)
	removed, err := c.notifications.PurgeRead(ctx, cutoff)
	c.record(JobNotificationPurge, start, err)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		c.log.Info("purged read notifications", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}

func (c *Cleaner) purgeCache(ctx context.Context) (int64, error) {
	start := time.Now()
	removed, err := c.cache.PurgeExpired(ctx)
	c.record(JobCachePurge, start, err)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		c.log.Debug("purged expired cache rows", zap.Int64("removed", removed))
	}
	return removed, nil
}
