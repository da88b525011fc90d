package api

import (
	"github.com/gin-gonic/gin"

	"github.com/zenebedagim/dental-clinic-sub002/internal/handlers"
)

func registerRealtimeRoutes(r *gin.Engine, handler *handlers.RealtimeHandler) {
	r.GET("/ws", handler.Stream)
	r.GET("/ws/notifications", handler.Stream)
}
