package api

import (
	"github.com/gin-gonic/gin"

	"github.com/zenebedagim/dental-clinic-sub002/internal/handlers"
	"github.com/zenebedagim/dental-clinic-sub002/internal/middleware"
	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
	"github.com/zenebedagim/dental-clinic-sub002/internal/realtime"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler, users realtime.IdentityResolver) {
	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.GET("/unread", handler.UnreadCount)
		group.PUT("/read-all", handler.MarkAllRead)
		group.PUT("/:id/read", handler.MarkRead)

		group.POST("", middleware.RequireRole(users, models.RoleAdmin), handler.Publish)
	}
}
