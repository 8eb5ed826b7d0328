package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// setRequiredEnv populates the minimum environment a LoadConfig call needs.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("DATABASE_URL", "postgres://ws:ws@localhost:5432/weatherscape")
	t.Setenv("SQS_FETCH_JOBS", "https://sqs.us-east-1.amazonaws.com/123/fetch-jobs")
	t.Setenv("SQS_WEATHER_READY", "https://sqs.us-east-1.amazonaws.com/123/weather-ready")
	t.Setenv("SQS_LANDSCAPE_JOBS", "https://sqs.us-east-1.amazonaws.com/123/landscape-jobs")
	t.Setenv("IMAGE_BUCKET", "weatherscape-images")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Weather.CacheTTL != 20*time.Minute {
		t.Errorf("default cache TTL = %s, want 20m", cfg.Weather.CacheTTL)
	}
	if cfg.Weather.ScheduleInterval != 15*time.Minute {
		t.Errorf("default schedule interval = %s, want 15m", cfg.Weather.ScheduleInterval)
	}
	if cfg.Weather.DefaultZip != "78729" {
		t.Errorf("default zip = %s, want 78729", cfg.Weather.DefaultZip)
	}
	if cfg.AWS.Region != "us-east-1" {
		t.Errorf("default region = %s", cfg.AWS.Region)
	}
	if cfg.Build.Version != "dev" {
		t.Errorf("build version = %s, want dev", cfg.Build.Version)
	}
}

func TestLoadConfigMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("IMAGE_BUCKET", "")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected validation failure with empty IMAGE_BUCKET")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Type != ErrValidation {
		t.Errorf("expected ConfigError{VALIDATION_FAILED}, got %v", err)
	}
}

func TestLoadConfigRejectsBadEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "production") // must be "prod"

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected rejection of APP_ENV=production")
	}
}

func TestLoadConfigTTLWindowInvariant(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WEATHER_CACHE_TTL", "15m")
	t.Setenv("SCHEDULE_INTERVAL", "15m")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("TTL equal to interval must be rejected")
	}
	if !strings.Contains(err.Error(), "strictly longer") {
		t.Errorf("unexpected error message: %v", err)
	}

	t.Setenv("WEATHER_CACHE_TTL", "16m")
	if _, err := LoadConfig(); err != nil {
		t.Errorf("TTL > interval should pass, got %v", err)
	}
}

func TestLoadConfigRejectsBadDefaultZip(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DEFAULT_ZIP", "9021")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("4-digit DEFAULT_ZIP must be rejected")
	}
}

func TestSecretStringRedaction(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OWM_API_KEY", "super-secret-key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Weather.APIKey.Reveal() != "super-secret-key" {
		t.Error("Reveal must return the raw secret")
	}
	if strings.Contains(cfg.Weather.APIKey.String(), "secret-key") {
		t.Error("String must redact the secret")
	}
}
