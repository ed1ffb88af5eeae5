// Package config loads botmeta settings from defaults, an optional YAML file
// and BOTMETA_* environment variables, then validates the result.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/edgard/botmeta/internal/errors"
	"github.com/edgard/botmeta/internal/metadata"
)

// Config holds the configuration for every component.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

// LogConfig selects level, output format and optional rotating file output.
type LogConfig struct {
	Level      string `mapstructure:"level"        validate:"required,oneof=debug info warn error"`
	Format     string `mapstructure:"format"       validate:"required,oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"  validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups"  validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"                validate:"required"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"    validate:"gt=0"`
}

// TelegramConfig configures the Bot API client. RequestsPerSecond of 0
// disables client-side throttling.
type TelegramConfig struct {
	APIURL            string        `mapstructure:"api_url"             validate:"required,url"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"     validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
}

type ProbeConfig struct {
	Concurrency int           `mapstructure:"concurrency" validate:"min=1,max=100"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"min=1,max=10"`
	BaseDelay   time.Duration `mapstructure:"base_delay"  validate:"gt=0"`
}

// GeminiConfig configures the translator. APIKey may stay empty when every
// translate request carries its own key.
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"       validate:"required"`
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"gt=0"`
}

// WatchConfig configures the scheduled coverage watch.
type WatchConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Token       string `mapstructure:"token"         validate:"required_if=Enabled true"`
	Schedule    string `mapstructure:"schedule"      validate:"required_if=Enabled true"`
	AdminChatID int64  `mapstructure:"admin_chat_id"`
}

// Validate checks struct constraints plus the watch token format.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return apperrors.NewConfigError("invalid configuration", err)
	}
	if c.Watch.Enabled {
		if err := metadata.ValidateToken(c.Watch.Token); err != nil {
			return apperrors.NewConfigError("invalid watch.token", err)
		}
	}
	return nil
}
