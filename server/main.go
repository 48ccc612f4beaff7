package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"gatherly/api/routes"
	"gatherly/internal/audit"
	"gatherly/internal/dispatch"
	"gatherly/internal/events"
	"gatherly/internal/idempotency"
	"gatherly/internal/notifications"
	"gatherly/internal/outbox"
	"gatherly/internal/queue"
	"gatherly/internal/registrations"
	"gatherly/internal/shared/config"
	"gatherly/internal/shared/database"
	"gatherly/internal/users"
	"gatherly/pkg/cache"
	"gatherly/pkg/logger"
	"gatherly/pkg/ratelimit"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// @title           Gatherly API
// @version         1.0
// @description     Event sign-up service with capacity control, FIFO waitlists and reliable event delivery.

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the JWT token.

func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	// Load config
	cfg := config.Load()

	// Set Gin mode (debug/release)
	gin.SetMode(cfg.GinMode)

	// Initialize DB
	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// PII cipher; an empty key leaves columns in plaintext
	cipher, err := users.NewCipher(cfg.Privacy.EncryptionKey)
	if err != nil {
		appLogger.Error("Invalid PII encryption key", slog.Any("error", err))
		os.Exit(1)
	}

	// Shared repositories
	gormDB := db.GetPostgreSQL()
	usersRepo := users.NewRepository(gormDB, cipher)
	eventsRepo := events.NewRepository(gormDB)
	registrationsRepo := registrations.NewRepository(gormDB)
	outboxRepo := outbox.NewRepository(gormDB)
	auditRepo := audit.NewRepository(gormDB)

	// Redis-backed services degrade to nil/in-memory when Redis is absent
	var cacheService cache.Service
	var idemStore idempotency.Store
	if db.Redis != nil {
		cacheService = cache.NewService(db.Redis)
		idemStore = idempotency.NewRedisStore(db.Redis)
		appLogger.Info("Redis cache and idempotency store initialized")
	} else {
		idemStore = idempotency.NewMemoryStore()
		appLogger.Info("Redis unavailable: caching disabled, in-memory idempotency store active")
	}

	// Queue transport
	var transport queue.Transport
	if cfg.UseExternalQueue() {
		kafkaCfg := queue.DefaultKafkaConfig(cfg.Queue.Brokers, cfg.Queue.ConsumerGroup)
		transport, err = queue.NewKafkaTransport(kafkaCfg)
		if err != nil {
			appLogger.Error("Failed to connect to Kafka", slog.Any("error", err))
			os.Exit(1)
		}
		appLogger.Info("Kafka transport initialized", slog.Any("brokers", cfg.Queue.Brokers))
	} else {
		transport = queue.NewMemoryTransport(0)
		appLogger.Info("In-memory queue transport initialized")
	}

	// Dispatcher with synchronous handlers: promotion, reindex, audit
	dispatcher := dispatch.NewDispatcher(gormDB, outboxRepo)
	registrations.RegisterSyncHandlers(dispatcher, registrationsRepo, appLogger)

	auditRecorder := audit.NewRecorder(auditRepo, appLogger)
	auditRecorder.RegisterSyncHandlers(dispatcher)

	// Async side: decode registry + handler router fed by the consumer
	registry := dispatch.NewDefaultRegistry()
	handlerRouter := dispatch.NewHandlerRouter()
	auditRecorder.RegisterAsyncHandlers(handlerRouter)

	notifier := notifications.NewNotifier(transport, idemStore, usersRepo, eventsRepo, appLogger)
	notifier.RegisterHandlers(handlerRouter)

	// Consumer first so the in-memory transport has its subscriber before the
	// worker publishes anything
	consumer := notifications.NewConsumer(transport, registry, handlerRouter, outboxRepo, cfg, appLogger)
	consumer.Start()

	worker := outbox.NewWorker(outboxRepo, transport, cfg, appLogger)
	worker.Start()

	// Initialize Rate Limiter
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && db.Redis == nil {
		appLogger.Info("Rate limiting disabled: Redis unavailable")
	} else if cfg.RateLimit.Enabled {
		rateLimiterConfig := &ratelimit.Config{
			Enabled:              cfg.RateLimit.Enabled,
			WindowDuration:       cfg.RateLimit.WindowDuration,
			DefaultRequests:      cfg.RateLimit.DefaultRequests,
			PublicRequests:       cfg.RateLimit.PublicRequests,
			AuthRequests:         cfg.RateLimit.AuthRequests,
			RegistrationRequests: cfg.RateLimit.RegistrationRequests,
			AdminRequests:        cfg.RateLimit.AdminRequests,
			UserRequests:         cfg.RateLimit.UserRequests,
			HealthRequests:       cfg.RateLimit.HealthRequests,
		}

		rateLimiter = ratelimit.NewRateLimiter(db.GetRedisClient(), rateLimiterConfig)
		appLogger.Info("Rate limiter initialized",
			slog.Bool("enabled", cfg.RateLimit.Enabled),
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	// Setup router with the shared dependencies
	deps := routes.Dependencies{
		Cache:         cacheService,
		Idempotency:   idemStore,
		Dispatcher:    dispatcher,
		Users:         usersRepo,
		Events:        eventsRepo,
		Registrations: registrationsRepo,
		Audit:         auditRepo,
	}
	router := setupRouter(cfg, db, rateLimiter, deps)

	// HTTP server
	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("version", cfg.APIVersion),
			slog.Bool("redis_cache", (db.Redis != nil)),
			slog.Bool("rate_limiting", cfg.RateLimit.Enabled),
			slog.Bool("external_queue", cfg.UseExternalQueue()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown: HTTP first so no new commands arrive, then the
	// consumer, then the worker, then the transport. The database closes last
	// via the deferred Close.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	consumer.Stop()
	worker.Stop()
	if err := transport.Close(); err != nil {
		appLogger.Error("Transport close failed", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupRouter(cfg *config.Config, db *database.DB, rateLimiter *ratelimit.RateLimiter, deps routes.Dependencies) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	// Built-in middleware: logs requests + recovers from panics
	engine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())

	// CORS configuration
	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true // allow every origin dynamically
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Idempotency-Key", "X-RateLimit-*"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Global rate limiting middleware (applied to all routes)
	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
		appLogger.Info("Rate limiting middleware applied to all routes")
	}

	// Initialize and setup routes
	appRouter := routes.NewRouter(cfg, db, deps)
	appRouter.SetupRoutes(engine)

	return engine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		l.LogHTTPRequest(c, duration)
	}
}
