package api

import (
	"github.com/gin-gonic/gin"

	"github.com/zenebedagim/dental-clinic-sub002/internal/app"
	"github.com/zenebedagim/dental-clinic-sub002/internal/handlers"
	"github.com/zenebedagim/dental-clinic-sub002/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, manager *monitoring.HealthManager) {
	if !cfg.Monitoring.Health.Enabled || manager == nil {
		r.GET("/health", handlers.DisabledHealth)
		r.GET("/health/live", handlers.DisabledHealth)
		r.GET("/health/ready", handlers.DisabledHealth)
		return
	}

	h := handlers.NewHealthHandler(manager)
	r.GET("/health", h.Overall)
	r.GET("/health/live", h.Live)
	r.GET("/health/ready", h.Ready)
}
