// Package config defines the global configuration structure for the zonewatch
// daemon and its companion jobs. Configuration is loaded once at process start
// and is immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format causes the application to exit
// immediately on startup (fail fast).
package config

import (
	"time"

	"zonewatch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for zonewatch. It is populated
// once during process initialization and never modified. Sub-components
// receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"zonewatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server        ServerConfig
	Database      DatabaseConfig
	Broker        BrokerConfig
	PushGateway   PushGatewayConfig
	Session       SessionConfig
	Archive       ArchiveConfig
	AWS           AWSConfig
	Auth          AuthConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	// Resolved from SSM or Env
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`     // Fail fast when pool exhausted
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"` // Detect dead connections during failover
}

// BrokerConfig holds the MQTT connection to the device agent.
type BrokerConfig struct {
	URL         string       `envconfig:"MQTT_BROKER_URL" validate:"required,url"` // e.g., tcp://broker:1883
	ClientID    string       `envconfig:"MQTT_CLIENT_ID" default:"zonewatch"`
	Username    string       `envconfig:"MQTT_USERNAME"`
	Password    SecretString `envconfig:"MQTT_PASSWORD"`
	TopicPrefix string       `envconfig:"MQTT_TOPIC_PREFIX" validate:"required"` // e.g., zonewatch/device-1

	// Fixes older than this are treated as unavailable rather than served
	// as the current position. Zero selects the positioning default.
	MaxFixAge time.Duration `envconfig:"POSITION_MAX_FIX_AGE" default:"5m"`
}

// PushGatewayConfig holds the HTTP push gateway used to deliver alerts.
type PushGatewayConfig struct {
	BaseURL     string        `envconfig:"PUSH_GATEWAY_URL" validate:"required,url"`
	APIKey      SecretString  `envconfig:"PUSH_GATEWAY_API_KEY"`
	DeviceToken string        `envconfig:"PUSH_DEVICE_TOKEN" validate:"required"`
	ChannelID   string        `envconfig:"PUSH_CHANNEL_ID"`
	ChannelName string        `envconfig:"PUSH_CHANNEL_NAME"`
	Timeout     time.Duration `envconfig:"PUSH_GATEWAY_TIMEOUT" default:"10s"`
}

// SessionConfig holds monitoring session behavior.
type SessionConfig struct {
	// AutoStart starts monitoring as soon as the daemon boots instead of
	// waiting for an operator start request.
	AutoStart bool `envconfig:"SESSION_AUTOSTART" default:"true"`

	// Foreground watch cadence. Values below the platform floors are clamped.
	WatchInterval  time.Duration `envconfig:"WATCH_INTERVAL" default:"30s"`
	WatchDistanceM float64       `envconfig:"WATCH_DISTANCE_M" default:"100"`

	EventLogCapacity int `envconfig:"EVENT_LOG_CAPACITY" default:"50"`

	// ZonesFile points to a JSON zone catalog. Empty selects the built-in
	// catalog.
	ZonesFile string `envconfig:"ZONES_FILE"`
}

// ArchiveConfig holds event-history archival job settings.
type ArchiveConfig struct {
	Interval  time.Duration `envconfig:"ARCHIVE_INTERVAL" default:"1h"`
	Retention time.Duration `envconfig:"ARCHIVE_RETENTION" default:"2160h"` // 90 days
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// TransitionQueue receives one message per detected zone transition.
	// Empty disables downstream publishing.
	TransitionQueue string `envconfig:"SQS_TRANSITIONS"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// AuthConfig holds operator access configuration for mutating API routes.
type AuthConfig struct {
	// OperatorKeyHash is the bcrypt hash of the operator bearer key. The
	// plaintext key is never configured server-side.
	OperatorKeyHash SecretString `envconfig:"OPERATOR_KEY_HASH" validate:"required"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"ZoneWatch"`
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
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
