package config

import "time"

// Default values for configuration
const (
	// Log defaults
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultLogMaxSizeMB  = 50
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 28

	// Server defaults
	DefaultServerAddr              = ":8080"
	DefaultServerReadHeaderTimeout = 10 * time.Second
	DefaultServerShutdownTimeout   = 15 * time.Second

	// Telegram defaults
	DefaultTelegramAPIURL         = "https://api.telegram.org"
	DefaultTelegramRequestTimeout = 30 * time.Second

	// Probe defaults
	DefaultProbeConcurrency = 20
	DefaultProbeMaxRetries  = 3
	DefaultProbeBaseDelay   = 500 * time.Millisecond

	// Gemini defaults
	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultGeminiTemperature = 0.3
	DefaultGeminiTimeout     = 2 * time.Minute

	// Watch defaults
	DefaultWatchSchedule = "0 0 * * * *" // hourly, seconds field included
)

var defaults = map[string]any{
	"log.level":        DefaultLogLevel,
	"log.format":       DefaultLogFormat,
	"log.file":         "",
	"log.max_size_mb":  DefaultLogMaxSizeMB,
	"log.max_backups":  DefaultLogMaxBackups,
	"log.max_age_days": DefaultLogMaxAgeDays,

	"server.addr":                DefaultServerAddr,
	"server.read_header_timeout": DefaultServerReadHeaderTimeout,
	"server.shutdown_timeout":    DefaultServerShutdownTimeout,

	"telegram.api_url":             DefaultTelegramAPIURL,
	"telegram.request_timeout":     DefaultTelegramRequestTimeout,
	"telegram.requests_per_second": 0.0,

	"probe.concurrency": DefaultProbeConcurrency,
	"probe.max_retries": DefaultProbeMaxRetries,
	"probe.base_delay":  DefaultProbeBaseDelay,

	"gemini.api_key":     "",
	"gemini.model":       DefaultGeminiModel,
	"gemini.temperature": DefaultGeminiTemperature,
	"gemini.timeout":     DefaultGeminiTimeout,

	"watch.enabled":       false,
	"watch.token":         "",
	"watch.schedule":      DefaultWatchSchedule,
	"watch.admin_chat_id": 0,
}
