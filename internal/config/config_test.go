package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("TRANSLATE_TIMEOUT_MS", "2500")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Translate.Timeout != 2500*time.Millisecond {
		t.Fatalf("expected translate timeout override, got %s", cfg.Translate.Timeout)
	}
	if cfg.Synthesis.Timeout != 10*time.Second {
		t.Fatalf("expected default synthesis timeout, got %s", cfg.Synthesis.Timeout)
	}
	if !cfg.Redis.Enabled {
		t.Fatalf("expected redis to be enabled")
	}
	if cfg.Sampling.Width != 480 || cfg.Sampling.Height != 360 {
		t.Fatalf("unexpected sampling dimensions %dx%d", cfg.Sampling.Width, cfg.Sampling.Height)
	}
}

func TestValidateRequiresEmbeddingProvider(t *testing.T) {
	cfg := &Config{
		Host:      HostConfig{BaseURL: "http://h", WSURL: "ws://h"},
		Translate: TranslateConfig{ServerURL: "http://t"},
		Synthesis: SynthesisConfig{ServerURL: "http://s"},
		Sampling:  SamplingConfig{Width: 1, Height: 1},
		Extension: ExtensionConfig{ProjectID: "p"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing API key to fail validation")
	}

	cfg.OpenAI.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
