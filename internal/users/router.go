package users

import (
	"gatherly/internal/shared/config"
	"gatherly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// Router handles user-related routes
type Router struct {
	controller *Controller
	config     *config.Config
}

// NewRouter creates a new users router
func NewRouter(controller *Controller, cfg *config.Config) *Router {
	return &Router{
		controller: controller,
		config:     cfg,
	}
}

// SetupRoutes registers all user routes
func (userRouter *Router) SetupRoutes(rg *gin.RouterGroup) {
	usersGroup := rg.Group("/users")
	usersGroup.Use(middleware.JWTAuthWithConfig(userRouter.config))
	{
		// Profile and DSAR export are self-or-admin (checked in the controller)
		usersGroup.GET("/:id", userRouter.controller.GetUser)
		usersGroup.GET("/:id/export", userRouter.controller.ExportData)

		// Erasure is admin-initiated
		usersGroup.DELETE("/:id", middleware.RequireAdmin(), userRouter.controller.Erase)
	}
}
