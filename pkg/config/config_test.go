package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// requiredEnv is a complete, valid set of required variables for LoadConfig.
var requiredEnv = map[string]string{
	"TASKHIVE_AUTH_SECRET":           "test-secret",
	"TASKHIVE_ACCESS_TOKEN_TTL":      "15m",
	"TASKHIVE_REFRESH_TOKEN_TTL":     "720h",
	"TASKHIVE_LOGIN_MAX_ATTEMPTS":    "5",
	"TASKHIVE_LOGIN_WINDOW":          "15m",
	"TASKHIVE_RESET_MAX_ATTEMPTS":    "3",
	"TASKHIVE_RESET_WINDOW":          "1h",
	"TASKHIVE_RESET_IP_MAX_ATTEMPTS": "10",
	"TASKHIVE_POSTGRES_URL":          "postgres://localhost/taskhive_test",
	"TASKHIVE_REDIS_URL":             "redis://localhost:6379",
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	for key, value := range requiredEnv {
		t.Setenv(key, value)
	}
}

// TestLoadConfig tests loading a complete configuration
func TestLoadConfig(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Auth.Secret != "test-secret" {
		t.Errorf("Auth.Secret = %q, want %q", cfg.Auth.Secret, "test-secret")
	}
	if cfg.Auth.AccessTokenTTL != 15*time.Minute {
		t.Errorf("Auth.AccessTokenTTL = %v, want 15m", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Throttle.LoginMaxAttempts != 5 {
		t.Errorf("Throttle.LoginMaxAttempts = %d, want 5", cfg.Throttle.LoginMaxAttempts)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("Cache.TTL = %v, want default 10m", cfg.Cache.TTL)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want default 8080", cfg.Server.Port)
	}
}

// TestLoadConfigMissingRequired tests that each missing required key fails
func TestLoadConfigMissingRequired(t *testing.T) {
	for key := range requiredEnv {
		t.Run(key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(key, "")
			os.Unsetenv(key)

			_, err := LoadConfig()
			if err == nil {
				t.Fatalf("LoadConfig() succeeded without %s", key)
			}
			if !strings.Contains(err.Error(), key) {
				t.Errorf("error %q does not name the missing key %s", err, key)
			}
		})
	}
}

// TestLoadConfigMalformedNumeric tests that non-numeric required values fail
func TestLoadConfigMalformedNumeric(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"TASKHIVE_LOGIN_MAX_ATTEMPTS", "five"},
		{"TASKHIVE_LOGIN_WINDOW", "soon"},
		{"TASKHIVE_ACCESS_TOKEN_TTL", "15 minutes"},
		{"TASKHIVE_RESET_IP_MAX_ATTEMPTS", "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			if err == nil {
				t.Fatalf("LoadConfig() accepted %s=%q", tt.key, tt.value)
			}
		})
	}
}

// TestValidateCrossFields tests cross-field validation
func TestValidateCrossFields(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TASKHIVE_REFRESH_TOKEN_TTL", "5m") // shorter than access TTL

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig() accepted refresh TTL shorter than access TTL")
	}
}

func TestValidateSamePorts(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TASKHIVE_PORT", "9090")
	t.Setenv("TASKHIVE_HEALTH_PORT", "9090")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig() accepted identical server and health ports")
	}
}

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "custom")
	if got := getEnv("TEST_VAR", "default"); got != "custom" {
		t.Errorf("getEnv() = %v, want custom", got)
	}
	if got := getEnv("TEST_VAR_NOT_SET", "default"); got != "default" {
		t.Errorf("getEnv() = %v, want default", got)
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"returns true for 'true'", "true", false, true},
		{"returns true for '1'", "1", false, true},
		{"returns false for 'false'", "false", true, false},
		{"returns default when not set", "", true, true},
		{"case insensitive", "TRUE", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_BOOL", tt.envValue)
			} else {
				os.Unsetenv("TEST_BOOL")
			}
			if got := getEnvBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "30s")
	if got := getEnvDuration("TEST_DURATION", time.Minute); got != 30*time.Second {
		t.Errorf("getEnvDuration() = %v, want 30s", got)
	}
	t.Setenv("TEST_DURATION", "not-a-duration")
	if got := getEnvDuration("TEST_DURATION", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration() = %v, want default on parse failure", got)
	}
}
