package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// envOverrides carries the values that must come from the environment:
// secrets, plus deployment knobs that are easier to set per-container than
// per-file.
type envOverrides struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	DatabaseURL  string `env:"DATABASE_URL"`
	LogLevel     string `env:"LOG_LEVEL"`
	MetricsAddr  string `env:"METRICS_ADDR"`
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty), then environment overrides, then
// validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decodeYAML(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	applyOverrides(cfg, ov)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of the defaults and
// validates the result. Useful in tests where configs are constructed from
// string literals. Environment overrides are not applied.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyOverrides(cfg *Config, ov envOverrides) {
	cfg.Discord.Token = ov.DiscordToken
	if ov.DatabaseURL != "" {
		cfg.Storage.PostgresDSN = ov.DatabaseURL
	}
	if ov.LogLevel != "" {
		cfg.Server.LogLevel = LogLevel(ov.LogLevel)
	}
	if ov.MetricsAddr != "" {
		cfg.Server.MetricsAddr = ov.MetricsAddr
	}
	switch cfg.Analysis.Provider {
	case "openai":
		cfg.Analysis.DefaultAPIKey = ov.OpenAIAPIKey
	default:
		cfg.Analysis.DefaultAPIKey = ov.GeminiAPIKey
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	switch cfg.Analysis.Provider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("analysis.provider %q is invalid; valid values: gemini, openai", cfg.Analysis.Provider))
	}
	if cfg.Analysis.RequestTimeout <= 0 {
		errs = append(errs, errors.New("analysis.request_timeout must be positive"))
	}
	if cfg.Analysis.MaxAttempts < 1 {
		errs = append(errs, errors.New("analysis.max_attempts must be at least 1"))
	}
	if cfg.Analysis.RetryBaseDelay <= 0 {
		errs = append(errs, errors.New("analysis.retry_base_delay must be positive"))
	}

	if cfg.Audio.MaxSegment <= 0 {
		errs = append(errs, errors.New("audio.max_segment must be positive"))
	}
	if cfg.Audio.MaxPerSpeaker < cfg.Audio.MaxSegment {
		errs = append(errs, errors.New("audio.max_per_speaker must be at least audio.max_segment"))
	}

	return errors.Join(errs...)
}
