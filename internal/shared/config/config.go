package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	APIPrefix      string
	APIVersion     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	CommandTimeout time.Duration

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// JWT configuration
	JWT JWTConfig

	// Rate limiting
	RateLimit RateLimitConfig

	// Domain limits
	Limits LimitsConfig

	// Idempotency claims
	Idempotency IdempotencyConfig

	// Outbox worker
	Outbox OutboxConfig

	// Read-through cache TTLs
	Cache CacheConfig

	// Queue transport
	Queue QueueConfig

	// GraphQL adapter knobs (recognized; the adapter lives outside this service)
	GraphQL GraphQLConfig

	// PII handling
	Privacy PrivacyConfig

	// Logging
	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	JWTExpiresIn     time.Duration
	RefreshExpiresIn time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled              bool          `json:"enabled"`
	WindowDuration       time.Duration `json:"window_duration"`
	DefaultRequests      int           `json:"default_requests"`
	PublicRequests       int           `json:"public_requests"`
	AuthRequests         int           `json:"auth_requests"`
	RegistrationRequests int           `json:"registration_requests"`
	AdminRequests        int           `json:"admin_requests"`
	UserRequests         int           `json:"user_requests"`
	HealthRequests       int           `json:"health_requests"`
}

// LimitsConfig bounds user-supplied event fields
type LimitsConfig struct {
	CapacityMax    int
	TitleMax       int
	DescriptionMax int
	LocationMax    int
}

// IdempotencyConfig holds claim key settings
type IdempotencyConfig struct {
	TTL time.Duration
}

// OutboxConfig holds delivery worker settings
type OutboxConfig struct {
	BatchSize       int
	MaxTries        int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	PollInterval    time.Duration
	ClaimTimeout    time.Duration
	Retention       time.Duration
	CleanupInterval time.Duration
}

// CacheConfig holds read-through cache TTLs
type CacheConfig struct {
	EventTTL time.Duration
	UserTTL  time.Duration
	ListTTL  time.Duration
}

// QueueConfig selects and parameterizes the event transport
type QueueConfig struct {
	Kind          string // "in-memory" or "external"
	Topic         string
	DLQTopic      string
	Brokers       []string
	ConsumerGroup string
	WorkerID      string
}

// GraphQLConfig holds limits enforced by the GraphQL execution path
type GraphQLConfig struct {
	MaxDepth int
	Timeout  time.Duration
}

// PrivacyConfig holds PII-at-rest settings; an empty key means pass-through
type PrivacyConfig struct {
	EncryptionKey string
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		APIVersion:     getEnv("API_VERSION", "1.0"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB
		CommandTimeout: getDurationEnv("COMMAND_TIMEOUT", 10*time.Second),

		// Database configuration
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "gatherly_db"),
			User:     getEnv("DB_USER", "gatherly_user"),
			Password: getEnv("DB_PASSWORD", "gatherly_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		// Redis configuration
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},

		// JWT configuration
		JWT: JWTConfig{
			Secret:           getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
			JWTExpiresIn:     getDurationEnvSeconds("JWT_EXPIRES_IN", 15*time.Minute),
			RefreshExpiresIn: getDurationEnvSeconds("JWT_REFRESH_EXPIRES_IN", 24*time.Hour),
		},

		// Rate limiting
		RateLimit: RateLimitConfig{
			Enabled:              getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:       getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests:      getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			PublicRequests:       getIntEnv("RATE_LIMIT_PUBLIC_REQUESTS", 100),
			AuthRequests:         getIntEnv("RATE_LIMIT_AUTH_REQUESTS", 10),
			RegistrationRequests: getIntEnv("RATE_LIMIT_REGISTRATION_REQUESTS", 20),
			AdminRequests:        getIntEnv("RATE_LIMIT_ADMIN_REQUESTS", 200),
			UserRequests:         getIntEnv("RATE_LIMIT_USER_REQUESTS", 30),
			HealthRequests:       getIntEnv("RATE_LIMIT_HEALTH_REQUESTS", 300),
		},

		// Domain limits
		Limits: LimitsConfig{
			CapacityMax:    getIntEnv("EVENT_CAPACITY_MAX", 10000),
			TitleMax:       getIntEnv("EVENT_TITLE_MAX", 200),
			DescriptionMax: getIntEnv("EVENT_DESCRIPTION_MAX", 4000),
			LocationMax:    getIntEnv("EVENT_LOCATION_MAX", 500),
		},

		// Idempotency claims
		Idempotency: IdempotencyConfig{
			TTL: getDurationEnv("IDEMPOTENCY_TTL", 10*time.Minute),
		},

		// Outbox worker
		Outbox: OutboxConfig{
			BatchSize:       getIntEnv("OUTBOX_BATCH_SIZE", 20),
			MaxTries:        getIntEnv("OUTBOX_MAX_TRIES", 8),
			BaseBackoff:     getDurationEnv("OUTBOX_BASE_BACKOFF", 5*time.Second),
			MaxBackoff:      getDurationEnv("OUTBOX_MAX_BACKOFF", 30*time.Minute),
			PollInterval:    getDurationEnv("OUTBOX_POLL_INTERVAL", 2*time.Second),
			ClaimTimeout:    getDurationEnv("OUTBOX_CLAIM_TIMEOUT", 5*time.Minute),
			Retention:       getDurationEnv("OUTBOX_RETENTION", 24*time.Hour),
			CleanupInterval: getDurationEnv("OUTBOX_CLEANUP_INTERVAL", time.Hour),
		},

		// Cache TTLs
		Cache: CacheConfig{
			EventTTL: getDurationEnv("CACHE_EVENT_TTL", 5*time.Minute),
			UserTTL:  getDurationEnv("CACHE_USER_TTL", 10*time.Minute),
			ListTTL:  getDurationEnv("CACHE_LIST_TTL", 2*time.Minute),
		},

		// Queue transport
		Queue: QueueConfig{
			Kind:          getEnv("QUEUE_KIND", "in-memory"),
			Topic:         getEnv("QUEUE_TOPIC", "gatherly.domain-events"),
			DLQTopic:      getEnv("QUEUE_DLQ_TOPIC", "gatherly.domain-events.dlq"),
			Brokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "gatherly-workers"),
			WorkerID:      getEnv("WORKER_ID", defaultWorkerID()),
		},

		// GraphQL adapter knobs
		GraphQL: GraphQLConfig{
			MaxDepth: getIntEnv("GRAPHQL_MAX_DEPTH", 10),
			Timeout:  getDurationEnv("GRAPHQL_TIMEOUT", 10*time.Second),
		},

		// PII handling
		Privacy: PrivacyConfig{
			EncryptionKey: getEnv("PII_ENCRYPTION_KEY", ""),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	return cfg
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// defaultWorkerID identifies this process in outbox claims
func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "gatherly-worker"
	}
	return host
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getDurationEnvSeconds gets an environment variable as seconds (int) and converts to time.Duration
func getDurationEnvSeconds(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// UseExternalQueue reports whether the external transport is configured
func (c *Config) UseExternalQueue() bool {
	return strings.EqualFold(c.Queue.Kind, "external")
}
