package registrations

import (
	"gatherly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRegistrationRoutes(router *gin.RouterGroup, controller Controller) {
	// Authenticated routes - registering and cancelling; the service enforces
	// owner-or-admin on cancel
	authed := router.Group("/events")
	authed.Use(middleware.JWTAuth())
	{
		authed.POST("/:id/register", controller.Register)
		authed.DELETE("/:id/registrations/:rid", controller.CancelRegistration)
		authed.POST("/:id/registrations/:rid/cancel", controller.CancelRegistration)
	}

	// Admin routes - listings, waitlist and promotion override
	admin := router.Group("/events")
	admin.Use(middleware.JWTAuth(), middleware.RequireAdmin())
	{
		admin.GET("/:id/registrations", controller.GetEventRegistrations)
		admin.GET("/:id/registrations/:rid", controller.GetRegistration)
		admin.GET("/:id/waitlist", controller.GetWaitlist)
		admin.POST("/:id/registrations/:rid/confirm", controller.ConfirmRegistration)
	}

	// A user's own registrations across events
	me := router.Group("/registrations")
	me.Use(middleware.JWTAuth())
	{
		me.GET("/me", controller.GetMyRegistrations)
	}
}
