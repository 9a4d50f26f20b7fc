package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/taskhive/taskhive/pkg/observability"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Auth and session configuration
	Auth AuthConfig

	// Throttling configuration
	Throttle ThrottleConfig

	// Storage configuration
	Storage StorageConfig

	// Cache configuration
	Cache CacheConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds token signing and lifetime settings. The secret and both
// lifetimes are required; there are no safe defaults for them.
type AuthConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// GoogleClientID enables Google sign-in when set.
	GoogleClientID string
}

// ThrottleConfig holds the sliding-window limits. All values are required.
type ThrottleConfig struct {
	LoginMaxAttempts   int
	LoginWindow        time.Duration
	ResetMaxAttempts   int
	ResetWindow        time.Duration
	ResetIPMaxAttempts int
}

// StorageConfig holds database and Redis connection settings.
type StorageConfig struct {
	PostgresURL string
	RedisURL    string
}

// CacheConfig holds versioned-cache tuning knobs.
type CacheConfig struct {
	TTL       time.Duration
	LocalSize int
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables. Any missing or
// malformed required key is an error; callers treat it as fatal at startup.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: loadServerConfig(),
		Cache: CacheConfig{
			TTL:       getEnvDuration("TASKHIVE_CACHE_TTL", 10*time.Minute),
			LocalSize: getEnvInt("TASKHIVE_LRU_SIZE", 4096),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("TASKHIVE_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("TASKHIVE_METRICS_ENABLED", true),
		},
	}

	var errs []string

	cfg.Auth = AuthConfig{
		Secret:          requireEnv("TASKHIVE_AUTH_SECRET", &errs),
		AccessTokenTTL:  requireEnvDuration("TASKHIVE_ACCESS_TOKEN_TTL", &errs),
		RefreshTokenTTL: requireEnvDuration("TASKHIVE_REFRESH_TOKEN_TTL", &errs),
		GoogleClientID:  getEnv("TASKHIVE_GOOGLE_CLIENT_ID", ""),
	}
	cfg.Throttle = ThrottleConfig{
		LoginMaxAttempts:   requireEnvInt("TASKHIVE_LOGIN_MAX_ATTEMPTS", &errs),
		LoginWindow:        requireEnvDuration("TASKHIVE_LOGIN_WINDOW", &errs),
		ResetMaxAttempts:   requireEnvInt("TASKHIVE_RESET_MAX_ATTEMPTS", &errs),
		ResetWindow:        requireEnvDuration("TASKHIVE_RESET_WINDOW", &errs),
		ResetIPMaxAttempts: requireEnvInt("TASKHIVE_RESET_IP_MAX_ATTEMPTS", &errs),
	}
	cfg.Storage = StorageConfig{
		PostgresURL: requireEnv("TASKHIVE_POSTGRES_URL", &errs),
		RedisURL:    requireEnv("TASKHIVE_REDIS_URL", &errs),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment.
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("TASKHIVE_HOST", "0.0.0.0"),
		Port:            getEnv("TASKHIVE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("TASKHIVE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("TASKHIVE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("TASKHIVE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("TASKHIVE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("TASKHIVE_HEALTH_PORT", "9090"),
	}
}

// Validate checks cross-field constraints on an already-loaded config.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("access token TTL must be positive")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("refresh token TTL must be positive")
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		return fmt.Errorf("refresh token TTL must exceed access token TTL")
	}

	if c.Throttle.LoginMaxAttempts <= 0 || c.Throttle.ResetMaxAttempts <= 0 || c.Throttle.ResetIPMaxAttempts <= 0 {
		return fmt.Errorf("throttle attempt limits must be positive")
	}
	if c.Throttle.LoginWindow <= 0 || c.Throttle.ResetWindow <= 0 {
		return fmt.Errorf("throttle windows must be positive")
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.Cache.LocalSize <= 0 {
		return fmt.Errorf("local cache size must be positive")
	}

	return nil
}

// requireEnv returns a required environment variable, accumulating an error
// message when it is absent.
func requireEnv(key string, errs *[]string) string {
	value := os.Getenv(key)
	if value == "" {
		*errs = append(*errs, fmt.Sprintf("%s is required", key))
	}
	return value
}

// requireEnvInt returns a required integer environment variable.
func requireEnvInt(key string, errs *[]string) int {
	value := os.Getenv(key)
	if value == "" {
		*errs = append(*errs, fmt.Sprintf("%s is required", key))
		return 0
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be an integer, got %q", key, value))
		return 0
	}
	return intVal
}

// requireEnvDuration returns a required duration environment variable.
func requireEnvDuration(key string, errs *[]string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		*errs = append(*errs, fmt.Sprintf("%s is required", key))
		return 0
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be a duration, got %q", key, value))
		return 0
	}
	return duration
}

// getEnv returns an environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
