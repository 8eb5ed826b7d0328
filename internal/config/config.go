// Package config defines the global configuration structure for the
// weatherscape pipeline. Configuration is loaded once at process
// initialization (Lambda cold start or web server boot) and is immutable
// thereafter. It follows 12-Factor App principles by strictly separating
// code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the process to exit
// immediately on startup (fail fast).
package config

import (
	"time"

	"weatherscape/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the weatherscape pipeline.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"weatherscape"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Weather       WeatherConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration for the web surface.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// DatabaseConfig holds connection and pool tuning for the Postgres-backed
// KV configuration/cache store.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
// The three queue URLs are the durable arrows of the pipeline:
// fetch-jobs (Scheduler -> Fetcher), weather-ready (Fetcher -> Dispatcher),
// landscape-jobs (Dispatcher -> Generator).
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	FetchJobsQueue     string `envconfig:"SQS_FETCH_JOBS" validate:"required,url"`
	WeatherReadyQueue  string `envconfig:"SQS_WEATHER_READY" validate:"required,url"`
	LandscapeJobsQueue string `envconfig:"SQS_LANDSCAPE_JOBS" validate:"required,url"`
	ImageBucket        string `envconfig:"IMAGE_BUCKET" validate:"required"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// WeatherConfig holds the weather provider credentials and the pipeline's
// timing parameters.
type WeatherConfig struct {
	APIKey     SecretString `envconfig:"OWM_API_KEY"`
	BaseURL    string       `envconfig:"OWM_BASE_URL" default:"https://api.openweathermap.org/data/2.5" validate:"required,url"`
	GeoBaseURL string       `envconfig:"OWM_GEO_BASE_URL" default:"https://api.openweathermap.org/geo/1.0" validate:"required,url"`

	// CacheTTL bounds the weather-data cache window. It must be strictly
	// longer than ScheduleInterval so a lagging Generator still finds the
	// data the Fetcher produced for the same cycle; the loader enforces this.
	CacheTTL         time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"20m"`
	ScheduleInterval time.Duration `envconfig:"SCHEDULE_INTERVAL" default:"15m"`

	DefaultZip        string  `envconfig:"DEFAULT_ZIP" default:"78729" validate:"required,len=5,numeric"`
	RequestsPerSecond float64 `envconfig:"OWM_REQUESTS_PER_SECOND" default:"5"`
}

// SecurityConfig holds the admin surface credentials.
type SecurityConfig struct {
	AdminAPIKey SecretString `envconfig:"ADMIN_API_KEY"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Weatherscape"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
