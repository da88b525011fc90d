package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zenebedagim/dental-clinic-sub002/internal/app"
	"github.com/zenebedagim/dental-clinic-sub002/internal/handlers"
	"github.com/zenebedagim/dental-clinic-sub002/internal/middleware"
	"github.com/zenebedagim/dental-clinic-sub002/internal/monitoring"
	"github.com/zenebedagim/dental-clinic-sub002/internal/ratelimit"
	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
	"github.com/zenebedagim/dental-clinic-sub002/internal/services"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Config        *app.Config
	Tokens        realtime.TokenValidator
	Users         realtime.IdentityResolver
	Gatekeeper    handlers.Authenticator
	Hub           handlers.SessionServer
	Notifications *services.NotificationService
	Health        *monitoring.HealthManager
	// APILimiter throttles REST calls per client and route. Optional.
	APILimiter *ratelimit.Limiter
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("config must be provided")
	case deps.Tokens == nil:
		return nil, fmt.Errorf("token validator must be provided")
	case deps.Users == nil:
		return nil, fmt.Errorf("identity resolver must be provided")
	case deps.Gatekeeper == nil || deps.Hub == nil:
		return nil, fmt.Errorf("realtime gateway must be provided")
	}

	cfg := deps.Config
	metricsPath := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger("/health/live", "/health/ready", metricsPath))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))

	registerHealthRoutes(r, cfg, deps.Health)

	if cfg.Monitoring.Prometheus.Enabled {
		r.GET(metricsPath, gin.WrapH(promhttp.Handler()))
	}

	registerRealtimeRoutes(r, handlers.NewRealtimeHandler(deps.Gatekeeper, deps.Hub))

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.Tokens))
	if deps.APILimiter != nil {
		api.Use(middleware.RateLimit(deps.APILimiter))
	}

	if deps.Notifications != nil {
		notificationHandler, err := handlers.NewNotificationHandler(deps.Notifications)
		if err != nil {
			return nil, err
		}
		registerNotificationRoutes(api, notificationHandler, deps.Users)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
