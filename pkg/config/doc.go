// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from SPRINTFLOW_* environment
// variables with sensible defaults for everything except the JWT secret.
//
// # Configuration Structure
//
// Server settings:
//
//	SPRINTFLOW_HOST="0.0.0.0"
//	SPRINTFLOW_PORT="8080"
//	SPRINTFLOW_READ_TIMEOUT="15s"
//	SPRINTFLOW_CORS_ORIGINS="https://app.example.com,https://admin.example.com"
//	SPRINTFLOW_AUTH_RATE_LIMIT="20"  # requests per minute on /auth
//
// Storage settings:
//
//	SPRINTFLOW_DATABASE_URL="postgres://localhost:5432/sprintflow?sslmode=disable"
//	SPRINTFLOW_DATABASE_MAX_CONNS="20"
//	SPRINTFLOW_REDIS_URL="redis://localhost:6379/0"  # empty disables Redis
//
// Auth and RBAC settings:
//
//	SPRINTFLOW_JWT_SECRET="<at least 32 characters>"
//	SPRINTFLOW_TOKEN_TTL="12h"
//	SPRINTFLOW_RBAC_MATCH_MODE="literal"  # literal, wildcard
//	SPRINTFLOW_RBAC_CACHE_LOCAL_TTL="30s"
//	SPRINTFLOW_RBAC_CACHE_REDIS_TTL="10m"
//
// Boards, automation, notifications and webhooks:
//
//	SPRINTFLOW_BOARDS_MAX_RETRIES="5"
//	SPRINTFLOW_AUTOMATION_RULES_FILE="/etc/sprintflow/rules.yaml"
//	SPRINTFLOW_AUTOMATION_WATCH="true"
//	SPRINTFLOW_TEAMS_TIMEOUT="10s"
//	SPRINTFLOW_WEBHOOK_WORKERS="4"
//	SPRINTFLOW_WEBHOOK_RETRY_SCHEDULE="@every 30s"
//	SPRINTFLOW_WEBHOOK_RATE_LIMIT="100"
//
// Observability settings:
//
//	SPRINTFLOW_LOG_LEVEL="info"  # debug, info, warn, error
//	SPRINTFLOW_METRICS_ENABLED="true"
//	SPRINTFLOW_OTEL_ENABLED="true"
//	SPRINTFLOW_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Match mode: %s\n", cfg.RBAC.MatchMode)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
