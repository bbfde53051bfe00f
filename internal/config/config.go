package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Review   ReviewConfig   `mapstructure:"review" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DatabaseConfig contains all database-related configuration settings.
// For the sqlite driver URL is a file path or ":memory:".
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	URL          string `mapstructure:"url" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
}

// AuthConfig contains settings for validating externally minted access tokens.
type AuthConfig struct {
	JWTSecret        string `mapstructure:"jwt_secret" validate:"required,min=32"`
	ClockSkewSeconds int    `mapstructure:"clock_skew_seconds" validate:"gte=0"`
}

// ReviewConfig tunes scheduling and ingestion. A zero MaxIntervalDays keeps the
// engine default.
type ReviewConfig struct {
	IngestBatchSize   int    `mapstructure:"ingest_batch_size" validate:"gte=1,lte=500"`
	AgainDelayMinutes int    `mapstructure:"again_delay_minutes" validate:"gte=1"`
	Timezone          string `mapstructure:"timezone" validate:"required"`
	DefaultDueLimit   int    `mapstructure:"default_due_limit" validate:"gte=0"`
	MaxIntervalDays   int    `mapstructure:"max_interval_days" validate:"gte=0"`
}

// Location resolves the configured timezone. "Local" maps to time.Local.
func (c ReviewConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// TaskConfig sizes the background worker pool used for ingestion retries.
type TaskConfig struct {
	WorkerCount         int `mapstructure:"worker_count" validate:"gte=1"`
	QueueSize           int `mapstructure:"queue_size" validate:"gte=1"`
	RetryMaxAttempts    int `mapstructure:"retry_max_attempts" validate:"gte=1"`
	RetryBackoffSeconds int `mapstructure:"retry_backoff_seconds" validate:"gte=0"`
}

// RetryBackoff returns the base delay between retry attempts.
func (c TaskConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffSeconds) * time.Second
}
