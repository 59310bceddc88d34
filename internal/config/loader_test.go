package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadFromReaderDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("log level = %s", cfg.Server.LogLevel)
	}
	if cfg.Analysis.Provider != "gemini" {
		t.Errorf("provider = %s", cfg.Analysis.Provider)
	}
	if cfg.Analysis.MaxAttempts != 4 {
		t.Errorf("max attempts = %d", cfg.Analysis.MaxAttempts)
	}
	if cfg.Audio.MaxSegment != 10*time.Minute {
		t.Errorf("max segment = %v", cfg.Audio.MaxSegment)
	}
}

func TestLoadFromReaderOverrides(t *testing.T) {
	t.Parallel()

	const doc = `
server:
  log_level: debug
  metrics_addr: ":9999"
analysis:
  provider: openai
  model: gpt-4o-audio-preview
  request_timeout: 60s
audio:
  max_segment: 5m
  max_per_speaker: 20m
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("log level = %s", cfg.Server.LogLevel)
	}
	if cfg.Analysis.Provider != "openai" || cfg.Analysis.Model != "gpt-4o-audio-preview" {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.Analysis.RequestTimeout != time.Minute {
		t.Errorf("request timeout = %v", cfg.Analysis.RequestTimeout)
	}
	if cfg.Audio.MaxSegment != 5*time.Minute || cfg.Audio.MaxPerSpeaker != 20*time.Minute {
		t.Errorf("audio = %+v", cfg.Audio)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	if _, err := LoadFromReader(strings.NewReader("serverr:\n  log_level: debug\n")); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Server.LogLevel = "loud"
	cfg.Analysis.Provider = "psychic"
	cfg.Analysis.MaxAttempts = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"log_level", "provider", "max_attempts"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestValidateBufferCoherence(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Audio.MaxPerSpeaker = cfg.Audio.MaxSegment - time.Second
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error when per-speaker cap is below segment cap")
	}
}
