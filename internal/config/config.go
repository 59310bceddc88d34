// Package config provides the configuration schema and loader for the
// InsightDebateBot server. Values come from a YAML file with environment
// variable overrides for secrets and deployment knobs.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l onto the corresponding slog level. Unknown values map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration for the server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Discord  DiscordConfig  `yaml:"discord"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Audio    AudioConfig    `yaml:"audio"`
	Storage  StorageConfig  `yaml:"storage"`
}

// ServerConfig holds process-wide settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the listen address for the metrics and health HTTP
	// endpoint. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DiscordConfig holds Discord connectivity settings. The bot token comes
// from the DISCORD_TOKEN environment variable, never from the YAML file.
type DiscordConfig struct {
	Token string `yaml:"-"`

	// CommandGuildID scopes slash-command registration to one guild for
	// fast iteration during development. Empty registers globally.
	CommandGuildID string `yaml:"command_guild_id"`
}

// AnalysisConfig selects and tunes the analysis-service provider.
type AnalysisConfig struct {
	// Provider is "gemini" or "openai".
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	// RequestTimeout bounds a single analysis call.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxAttempts is the total number of tries per cycle, first call
	// included. Only transient failures are retried.
	MaxAttempts int `yaml:"max_attempts"`

	// RetryBaseDelay is the backoff before the first retry; it doubles on
	// each subsequent one.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`

	// DefaultAPIKey serves guilds that have not registered their own key.
	// Comes from GEMINI_API_KEY or OPENAI_API_KEY, never from YAML. Empty
	// means guilds without a key cannot start sessions.
	DefaultAPIKey string `yaml:"-"`
}

// AudioConfig tunes the capture buffer.
type AudioConfig struct {
	// MaxSegment force-closes a speaker's contiguous segment at this
	// playback length.
	MaxSegment time.Duration `yaml:"max_segment"`

	// MaxPerSpeaker caps one speaker's total buffered audio between
	// analysis cycles; the oldest audio is evicted beyond it.
	MaxPerSpeaker time.Duration `yaml:"max_per_speaker"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// PostgresDSN enables the PostgreSQL store. Empty falls back to the
	// in-memory store, losing settings and keys on restart. Also settable
	// via DATABASE_URL.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns the configuration used when no YAML file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel:    LogInfo,
			MetricsAddr: ":9090",
		},
		Analysis: AnalysisConfig{
			Provider:       "gemini",
			RequestTimeout: 120 * time.Second,
			MaxAttempts:    4,
			RetryBaseDelay: 2 * time.Second,
		},
		Audio: AudioConfig{
			MaxSegment:    10 * time.Minute,
			MaxPerSpeaker: 30 * time.Minute,
		},
	}
}
