// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables.
// Security-sensitive settings (signing secret, token lifetimes, throttle
// limits, storage URLs) are required and have no defaults: a missing or
// malformed value fails startup rather than silently weakening a limit.
//
// # Configuration Structure
//
// Required settings:
//
//	TASKHIVE_AUTH_SECRET="..."
//	TASKHIVE_ACCESS_TOKEN_TTL="15m"
//	TASKHIVE_REFRESH_TOKEN_TTL="720h"
//	TASKHIVE_LOGIN_MAX_ATTEMPTS="5"
//	TASKHIVE_LOGIN_WINDOW="15m"
//	TASKHIVE_RESET_MAX_ATTEMPTS="3"
//	TASKHIVE_RESET_WINDOW="1h"
//	TASKHIVE_RESET_IP_MAX_ATTEMPTS="10"
//	TASKHIVE_POSTGRES_URL="postgres://localhost/taskhive"
//	TASKHIVE_REDIS_URL="redis://localhost:6379"
//
// Optional settings:
//
//	TASKHIVE_HOST="0.0.0.0"
//	TASKHIVE_PORT="8080"
//	TASKHIVE_HEALTH_PORT="9090"
//	TASKHIVE_CACHE_TTL="10m"
//	TASKHIVE_LRU_SIZE="4096"
//	TASKHIVE_LOG_LEVEL="info"  # debug, info, warn, error
//	TASKHIVE_METRICS_ENABLED="true"
//	TASKHIVE_GOOGLE_CLIENT_ID=""  # enables Google sign-in when set
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/session: Uses auth configuration
//   - pkg/throttle: Uses throttle configuration
//   - pkg/observability: Uses observability configuration
package config
