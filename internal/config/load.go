package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is prepended to environment variable names, so server.port is
// read from GRANTPILOT_SERVER_PORT.
const envPrefix = "GRANTPILOT"

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over file values; both override the defaults.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; env vars and defaults carry it.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			fields := make([]string, len(validationErrs))
			for i, fieldErr := range validationErrs {
				fields[i] = fmt.Sprintf("%s (%s)", fieldErr.Namespace(), fieldErr.Tag())
			}
			return nil, fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return nil, fmt.Errorf("failed to validate configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	// Empty default so AutomaticEnv binds the key for Unmarshal; validation
	// rejects a missing value.
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)

	v.SetDefault("task.worker_count", 4)
	v.SetDefault("task.queue_size", 64)
	v.SetDefault("task.snapshot_interval", "5s")
	v.SetDefault("task.default_time_limit", "30m")
	v.SetDefault("task.max_tokens", 100000)
	v.SetDefault("task.max_cost_usd", 5.0)

	v.SetDefault("realtime.send_buffer", 32)
	v.SetDefault("realtime.max_idle", "300s")
	v.SetDefault("realtime.evict_interval", "60s")
}
