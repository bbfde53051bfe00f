package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SCRY_DATABASE_URL.
const EnvPrefix = "SCRY"

// ConfigDirEnv names an extra directory searched for config.yaml.
const ConfigDirEnv = "SCRY_CONFIG_DIR"

var defaults = map[string]any{
	"server.port":                     8080,
	"server.log_level":                "info",
	"server.shutdown_timeout_seconds": 10,
	"database.driver":                 "postgres",
	"database.url":                    "",
	"database.max_open_conns":         10,
	"auth.jwt_secret":                 "",
	"auth.clock_skew_seconds":         30,
	"review.ingest_batch_size":        50,
	"review.again_delay_minutes":      10,
	"review.timezone":                 "Local",
	"review.default_due_limit":        0,
	"review.max_interval_days":        0,
	"task.worker_count":               2,
	"task.queue_size":                 100,
	"task.retry_max_attempts":         3,
	"task.retry_backoff_seconds":      5,
}

// Load configuration from defaults, an optional config.yaml (in the working
// directory or $SCRY_CONFIG_DIR) and SCRY_-prefixed environment variables, in
// increasing order of precedence. The result is validated before it is returned.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and cross-field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if _, err := c.Review.Location(); err != nil {
		return fmt.Errorf("config validation failed: review.timezone: %w", err)
	}
	return nil
}
