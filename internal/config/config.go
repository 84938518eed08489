// Package config defines the application configuration and its loading from
// environment variables and optional config files.
package config

import "time"

// Config holds all application configuration, organized into logical groups.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
	Realtime RealtimeConfig `mapstructure:"realtime" validate:"required"`
}

// ServerConfig contains the HTTP server settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the persistence settings. An empty URL selects the
// in-memory snapshot store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// LLMConfig contains the generation backend settings.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"      validate:"required"`
	ModelName         string `mapstructure:"model_name"          validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
}

// TaskConfig contains task execution settings.
type TaskConfig struct {
	WorkerCount      int           `mapstructure:"worker_count"      validate:"required,gt=0,lte=64"`
	QueueSize        int           `mapstructure:"queue_size"        validate:"required,gt=0"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval" validate:"gte=0"`
	DefaultTimeLimit time.Duration `mapstructure:"default_time_limit" validate:"required,gt=0"`
	MaxTokens        int           `mapstructure:"max_tokens"        validate:"required,gt=0"`
	MaxCostUSD       float64       `mapstructure:"max_cost_usd"      validate:"required,gt=0"`
}

// RealtimeConfig contains the websocket distribution settings.
type RealtimeConfig struct {
	// SendBuffer is the per-observer outbound queue depth. An observer that
	// falls this far behind is disconnected.
	SendBuffer int `mapstructure:"send_buffer" validate:"required,gt=0"`

	// MaxIdle is how long an observer may go without a heartbeat before the
	// eviction sweep removes it.
	MaxIdle time.Duration `mapstructure:"max_idle" validate:"required,gt=0"`

	// EvictInterval is how often the eviction sweep runs.
	EvictInterval time.Duration `mapstructure:"evict_interval" validate:"required,gt=0"`
}
