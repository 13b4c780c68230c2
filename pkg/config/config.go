package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/sprintflow/pkg/observability"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
	"github.com/platinummonkey/sprintflow/pkg/storage"
)

// minSecretLength is the shortest accepted HS256 signing secret
const minSecretLength = 32

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Postgres and Redis connection settings
	Storage storage.Config

	Auth          AuthConfig
	RBAC          RBACConfig
	Boards        BoardsConfig
	Automation    AutomationConfig
	Notifications NotificationsConfig
	Webhooks      WebhooksConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	MaxBodyBytes    int64
	CORSOrigins     []string

	// Requests per minute for the unauthenticated auth endpoints
	AuthRateLimit int
}

// AuthConfig holds session token settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// RBACConfig holds authorization settings
type RBACConfig struct {
	MatchMode string

	CacheEnabled   bool
	CacheLocalSize int
	CacheLocalTTL  time.Duration
	CacheRedisTTL  time.Duration
}

// BoardsConfig holds drag-and-drop settings
type BoardsConfig struct {
	MaxRetries int
}

// AutomationConfig holds rule source settings
type AutomationConfig struct {
	RulesFile string
	Watch     bool
}

// NotificationsConfig holds channel settings
type NotificationsConfig struct {
	TeamsTimeout time.Duration
}

// WebhooksConfig holds outbound delivery settings
type WebhooksConfig struct {
	Workers         int
	DeliveryTimeout time.Duration
	RetrySchedule   string
	MaxAttempts     int
	RateLimit       int
	RateLimitPeriod time.Duration
	DeliveryLogSize int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Auth:          loadAuthConfig(),
		RBAC:          loadRBACConfig(),
		Boards:        BoardsConfig{MaxRetries: getEnvInt("SPRINTFLOW_BOARDS_MAX_RETRIES", 5)},
		Automation:    loadAutomationConfig(),
		Notifications: NotificationsConfig{TeamsTimeout: getEnvDuration("SPRINTFLOW_TEAMS_TIMEOUT", 10*time.Second)},
		Webhooks:      loadWebhooksConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SPRINTFLOW_HOST", "0.0.0.0"),
		Port:            getEnv("SPRINTFLOW_PORT", "8080"),
		ReadTimeout:     getEnvDuration("SPRINTFLOW_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SPRINTFLOW_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("SPRINTFLOW_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SPRINTFLOW_SHUTDOWN_TIMEOUT", 30*time.Second),
		RequestTimeout:  getEnvDuration("SPRINTFLOW_REQUEST_TIMEOUT", 10*time.Second),
		MaxBodyBytes:    getEnvInt64("SPRINTFLOW_MAX_BODY_BYTES", 1<<20),
		CORSOrigins:     getEnvList("SPRINTFLOW_CORS_ORIGINS", []string{"*"}),
		AuthRateLimit:   getEnvInt("SPRINTFLOW_AUTH_RATE_LIMIT", 20),
	}
}

// loadStorageConfig loads Postgres and Redis configuration from environment
func loadStorageConfig() storage.Config {
	return storage.Config{
		PostgresURL:      getEnv("SPRINTFLOW_DATABASE_URL", "postgres://localhost:5432/sprintflow?sslmode=disable"),
		PostgresMaxConns: getEnvInt("SPRINTFLOW_DATABASE_MAX_CONNS", 20),
		PostgresMinConns: getEnvInt("SPRINTFLOW_DATABASE_MIN_CONNS", 5),
		PostgresTimeout:  getEnvDuration("SPRINTFLOW_DATABASE_TIMEOUT", 5*time.Second),
		MaxLifetime:      getEnvDuration("SPRINTFLOW_DATABASE_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime:      getEnvDuration("SPRINTFLOW_DATABASE_MAX_IDLE_TIME", 5*time.Minute),

		RedisURL:        getEnv("SPRINTFLOW_REDIS_URL", ""),
		RedisPassword:   getEnv("SPRINTFLOW_REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("SPRINTFLOW_REDIS_DB", 0),
		RedisMaxRetries: getEnvInt("SPRINTFLOW_REDIS_MAX_RETRIES", 3),
		RedisPoolSize:   getEnvInt("SPRINTFLOW_REDIS_POOL_SIZE", 10),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret: getEnv("SPRINTFLOW_JWT_SECRET", ""),
		Issuer:    getEnv("SPRINTFLOW_JWT_ISSUER", "sprintflow"),
		TokenTTL:  getEnvDuration("SPRINTFLOW_TOKEN_TTL", 12*time.Hour),
	}
}

func loadRBACConfig() RBACConfig {
	defaults := rbac.DefaultCacheConfig()
	return RBACConfig{
		MatchMode:      getEnv("SPRINTFLOW_RBAC_MATCH_MODE", string(rbac.MatchLiteral)),
		CacheEnabled:   getEnvBool("SPRINTFLOW_RBAC_CACHE_ENABLED", true),
		CacheLocalSize: getEnvInt("SPRINTFLOW_RBAC_CACHE_SIZE", defaults.LocalSize),
		CacheLocalTTL:  getEnvDuration("SPRINTFLOW_RBAC_CACHE_LOCAL_TTL", defaults.LocalTTL),
		CacheRedisTTL:  getEnvDuration("SPRINTFLOW_RBAC_CACHE_REDIS_TTL", defaults.RedisTTL),
	}
}

func loadAutomationConfig() AutomationConfig {
	return AutomationConfig{
		RulesFile: getEnv("SPRINTFLOW_AUTOMATION_RULES_FILE", ""),
		Watch:     getEnvBool("SPRINTFLOW_AUTOMATION_WATCH", false),
	}
}

func loadWebhooksConfig() WebhooksConfig {
	return WebhooksConfig{
		Workers:         getEnvInt("SPRINTFLOW_WEBHOOK_WORKERS", 4),
		DeliveryTimeout: getEnvDuration("SPRINTFLOW_WEBHOOK_TIMEOUT", 10*time.Second),
		RetrySchedule:   getEnv("SPRINTFLOW_WEBHOOK_RETRY_SCHEDULE", "@every 30s"),
		MaxAttempts:     getEnvInt("SPRINTFLOW_WEBHOOK_MAX_ATTEMPTS", 5),
		RateLimit:       getEnvInt("SPRINTFLOW_WEBHOOK_RATE_LIMIT", 100),
		RateLimitPeriod: getEnvDuration("SPRINTFLOW_WEBHOOK_RATE_PERIOD", time.Minute),
		DeliveryLogSize: getEnvInt("SPRINTFLOW_WEBHOOK_LOG_SIZE", 1000),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("SPRINTFLOW_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("SPRINTFLOW_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("SPRINTFLOW_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("SPRINTFLOW_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("SPRINTFLOW_OTEL_SERVICE_NAME", "sprintflow"),
		OTelServiceVersion: getEnv("SPRINTFLOW_OTEL_SERVICE_VERSION", "dev"),
		OTelInsecure:       getEnvBool("SPRINTFLOW_OTEL_INSECURE", true),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.AuthRateLimit <= 0 {
		return fmt.Errorf("auth rate limit must be positive")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("database URL is required")
	}
	if c.Storage.PostgresMaxConns < c.Storage.PostgresMinConns {
		return fmt.Errorf("database max conns (%d) must not be below min conns (%d)",
			c.Storage.PostgresMaxConns, c.Storage.PostgresMinConns)
	}

	if len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT secret must be at least %d characters", minSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}

	if _, err := rbac.ParseMatchMode(c.RBAC.MatchMode); err != nil {
		return err
	}
	if c.RBAC.CacheEnabled && c.RBAC.CacheLocalSize <= 0 {
		return fmt.Errorf("rbac cache size must be positive")
	}

	if c.Boards.MaxRetries < 0 {
		return fmt.Errorf("boards max retries must not be negative")
	}

	if c.Automation.Watch && c.Automation.RulesFile == "" {
		return fmt.Errorf("automation rules file is required when watch is enabled")
	}

	if c.Webhooks.Workers <= 0 {
		return fmt.Errorf("webhook workers must be positive")
	}
	if c.Webhooks.RateLimit <= 0 || c.Webhooks.RateLimitPeriod <= 0 {
		return fmt.Errorf("webhook rate limit and period must be positive")
	}
	if _, err := cron.ParseStandard(c.Webhooks.RetrySchedule); err != nil {
		return fmt.Errorf("invalid webhook retry schedule %q: %w", c.Webhooks.RetrySchedule, err)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
