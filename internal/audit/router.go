package audit

import (
	"gatherly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupAuditRoutes(rg *gin.RouterGroup, controller Controller) {
	trail := rg.Group("/audit")
	trail.Use(middleware.JWTAuth())
	trail.Use(middleware.RequireAdmin())

	trail.GET("", controller.GetTrail)
}
