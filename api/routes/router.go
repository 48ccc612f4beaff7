// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "gatherly/docs"
	"gatherly/internal/audit"
	"gatherly/internal/auth"
	"gatherly/internal/dispatch"
	"gatherly/internal/events"
	"gatherly/internal/idempotency"
	"gatherly/internal/registrations"
	"gatherly/internal/shared/config"
	"gatherly/internal/shared/database"
	"gatherly/internal/users"
	"gatherly/pkg/cache"
	"gatherly/pkg/metrics"
)

// Dependencies carries the singletons main builds once and shares between the
// HTTP surface and the background workers.
type Dependencies struct {
	Cache         cache.Service
	Idempotency   idempotency.Store
	Dispatcher    dispatch.Dispatcher
	Users         users.Repository
	Events        events.Repository
	Registrations registrations.Repository
	Audit         audit.Repository
}

// Router holds all route dependencies
type Router struct {
	config *config.Config
	db     *database.DB
	deps   Dependencies
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, deps Dependencies) *Router {
	return &Router{
		config: cfg,
		db:     db,
		deps:   deps,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and system endpoints
	r.setupSystemRoutes(engine)

	// API routes
	api := engine.Group(r.config.APIPrefix)
	{
		r.setupAuthRoutes(api)
		r.setupEventRoutes(api)
		r.setupRegistrationRoutes(api)
		r.setupUserRoutes(api)
		r.setupAuditRoutes(api)
	}
}

// setupSystemRoutes sets up health, metrics and API documentation routes
func (r *Router) setupSystemRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "gatherly-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "gatherly-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// setupAuthRoutes configures authentication routes
func (r *Router) setupAuthRoutes(rg *gin.RouterGroup) {
	authRepo := auth.NewRepository(r.deps.Users)
	authService := auth.NewService(authRepo, r.config)
	authController := auth.NewController(authService)
	authRouter := auth.NewRouter(authController, r.config)

	authRouter.SetupRoutes(rg)
}

// setupEventRoutes configures event management routes
func (r *Router) setupEventRoutes(rg *gin.RouterGroup) {
	eventService := events.NewService(r.deps.Events, r.config)
	eventService.SetRegistrationCounter(registrations.NewCounterAdapter(r.deps.Registrations))
	eventService.SetCacheService(r.deps.Cache)
	eventService.SetDispatcher(r.deps.Dispatcher)

	eventController := events.NewController(eventService)
	events.SetupEventRoutes(rg, eventController)
}

// setupRegistrationRoutes configures registration and waitlist routes
func (r *Router) setupRegistrationRoutes(rg *gin.RouterGroup) {
	registrationService := registrations.NewService(
		r.deps.Registrations,
		r.deps.Events,
		r.deps.Users,
		r.deps.Dispatcher,
		r.deps.Idempotency,
		r.config,
		nil,
	)
	registrationService.SetCacheService(r.deps.Cache)

	registrationController := registrations.NewController(registrationService)
	registrations.SetupRegistrationRoutes(rg, registrationController)
}

// setupUserRoutes configures user profile, export and erase routes
func (r *Router) setupUserRoutes(rg *gin.RouterGroup) {
	userService := users.NewService(
		r.deps.Users,
		registrations.NewExportAdapter(r.deps.Registrations),
		r.deps.Cache,
		r.config,
	)
	userController := users.NewController(userService)
	userRouter := users.NewRouter(userController, r.config)

	userRouter.SetupRoutes(rg)
}

// setupAuditRoutes configures the admin audit trail routes
func (r *Router) setupAuditRoutes(rg *gin.RouterGroup) {
	auditService := audit.NewService(r.deps.Audit)
	auditController := audit.NewController(auditService)

	audit.SetupAuditRoutes(rg, auditController)
}
