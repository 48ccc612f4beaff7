package events

import (
	"gatherly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupEventRoutes(router *gin.RouterGroup, controller Controller) {
	// Public routes - anyone can browse events
	publicEvents := router.Group("/events")
	{
		publicEvents.GET("", middleware.OptionalAuth(), controller.GetAllEvents) // admins may list drafts
		publicEvents.GET("/:id", controller.GetEvent)
		publicEvents.GET("/upcoming", controller.GetUpcomingEvents)
	}

	// Admin routes - mutations share the public paths, guarded by role
	adminEvents := router.Group("/events")
	adminEvents.Use(middleware.JWTAuth(), middleware.RequireAdmin())
	{
		adminEvents.POST("", controller.CreateEvent)
		adminEvents.PUT("/:id", controller.UpdateEvent)
		adminEvents.DELETE("/:id", controller.DeleteEvent)
		adminEvents.POST("/:id/publish", controller.PublishEvent)
		adminEvents.POST("/:id/unpublish", controller.UnpublishEvent)
	}
}
