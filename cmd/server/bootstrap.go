package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zenebedagim/dental-clinic-sub002/internal/ack"
	"github.com/zenebedagim/dental-clinic-sub002/internal/api"
	"github.com/zenebedagim/dental-clinic-sub002/internal/app"
	"github.com/zenebedagim/dental-clinic-sub002/internal/app/maintenance"
	"github.com/zenebedagim/dental-clinic-sub002/internal/auth"
	"github.com/zenebedagim/dental-clinic-sub002/internal/cache"
	"github.com/zenebedagim/dental-clinic-sub002/internal/database"
	"github.com/zenebedagim/dental-clinic-sub002/internal/monitoring"
	"github.com/zenebedagim/dental-clinic-sub002/internal/monitoring/checks"
	"github.com/zenebedagim/dental-clinic-sub002/internal/ratelimit"
	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
	"github.com/zenebedagim/dental-clinic-sub002/internal/services"
)

const (
	handshakeKeyPrefix = "handshake:"
	apiKeyPrefix       = "api:"
	apiRequestsPerMin  = 300
	limiterSweep       = time.Minute
)

// ackSink is an acknowledgment destination owned by the runtime.
type ackSink interface {
	realtime.AckSink
	Close() error
}

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB       *gorm.DB
	Redis    *cache.RedisStore
	Hub      *realtime.Hub
	Acks     ackSink
	Cleaner  *maintenance.Cleaner
	Jobs     *monitoring.JobTracker
	Health   *monitoring.HealthManager
	Router   *gin.Engine
	limiters []*ratelimit.MemoryStore
}

// bootstrapRuntime initialises storage, the realtime hub, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stack := &runtimeStack{Jobs: monitoring.NewJobTracker()}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed counters", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	var handshakeStore ratelimit.Store
	if stack.Redis != nil {
		handshakeStore = ratelimit.NewCacheStore(stack.Redis)
	} else {
		handshakeStore = ratelimit.NewCacheStore(dbStore)
	}

	jwtSvc, err := auth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	users, err := services.NewUserDirectory(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise user directory: %w", err)
	}

	stack.Acks, err = newAckSink(cfg, log)
	if err != nil {
		return nil, err
	}

	stack.Hub = realtime.NewHub(
		realtime.WithSendBuffer(cfg.Realtime.SendBuffer),
		realtime.WithAllowedOrigins(cfg.Realtime.AllowedOrigins),
		realtime.WithAckSink(stack.Acks),
	)

	handshakeLimiter := ratelimit.New(handshakeStore, handshakeKeyPrefix,
		cfg.Realtime.Handshake.MaxAttempts, cfg.Realtime.Handshake.Window)
	gatekeeper := realtime.NewGatekeeper(jwtSvc, users, handshakeLimiter)

	notifications, err := services.NewNotificationService(stack.DB, stack.Hub, users)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		// A Redis store expires keys itself; only database rows need purging.
		var cachePurger maintenance.CachePurger
		if stack.Redis == nil {
			cachePurger = dbStore
		}
		stack.Cleaner = maintenance.NewCleaner(notifications, cachePurger,
			maintenance.WithRecorder(stack.Jobs),
			maintenance.WithRetentionDays(cfg.Maintenance.RetentionDays),
			maintenance.WithPurgeSchedule(cfg.Maintenance.Schedule),
			maintenance.WithCacheSchedule(cfg.Maintenance.CacheSchedule),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Health = monitoring.NewHealthManager(cfg.Monitoring.Health.Timeout)
	stack.Health.RegisterLiveness(checks.Realtime(stack.Hub))
	stack.Health.RegisterReadiness(checks.Database(stack.DB))
	if stack.Redis != nil {
		stack.Health.RegisterReadiness(checks.Cache(stack.Redis, "redis"))
	} else {
		stack.Health.RegisterReadiness(checks.Cache(dbStore, "database"))
	}
	if stack.Cleaner != nil {
		stack.Health.RegisterReadiness(checks.Maintenance(stack.Jobs, 0))
	}

	apiStore := ratelimit.NewMemoryStore(limiterSweep)
	stack.limiters = append(stack.limiters, apiStore)

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:        cfg,
		Tokens:        jwtSvc,
		Users:         users,
		Gatekeeper:    gatekeeper,
		Hub:           stack.Hub,
		Notifications: notifications,
		Health:        stack.Health,
		APILimiter:    ratelimit.New(apiStore, apiKeyPrefix, apiRequestsPerMin, time.Minute),
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func newAckSink(cfg *app.Config, log *zap.Logger) (ackSink, error) {
	if !cfg.Ack.Kafka.Enabled {
		return ack.NewLogSink(), nil
	}
	sink, err := ack.NewKafkaSink(cfg.Ack.KafkaSinkConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise kafka ack sink: %w", err)
	}
	log.Info("acknowledgments routed to kafka", zap.String("topic", cfg.Ack.Kafka.Topic))
	return sink, nil
}

// Shutdown closes live sessions, stops background jobs and releases resources
// in that order. The HTTP server must already have stopped accepting.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) error {
	if s == nil {
		return nil
	}
	var errs error

	if s.Hub != nil {
		if err := s.Hub.Close(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close hub: %w", err))
		}
	}

	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, fmt.Errorf("stop maintenance: %w", ctx.Err()))
		}
	}

	for _, store := range s.limiters {
		store.Close()
	}

	if s.Acks != nil {
		if err := s.Acks.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close ack sink: %w", err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	if errs != nil {
		log.Warn("shutdown completed with errors", zap.Error(errs))
	}
	return errs
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.OpenConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	return db, nil
}
