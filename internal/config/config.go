package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host      HostConfig
	Translate TranslateConfig
	Synthesis SynthesisConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Gemini    GeminiConfig
	OpenAI    OpenAIConfig
	Sampling  SamplingConfig
	Logging   LoggingConfig
	Extension ExtensionConfig
}

type HostConfig struct {
	BaseURL string
	WSURL   string
}

type TranslateConfig struct {
	ServerURL string
	Timeout   time.Duration
}

type SynthesisConfig struct {
	ServerURL string
	Timeout   time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type PostgresConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

type GeminiConfig struct {
	APIKey     string
	EmbedModel string
	ChatModel  string
}

type OpenAIConfig struct {
	APIKey         string
	EnableFallback bool
}

type SamplingConfig struct {
	Width    int
	Height   int
	MinDelay time.Duration
}

type LoggingConfig struct {
	Level string
	File  string
}

type ExtensionConfig struct {
	ProjectID string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Host: HostConfig{
			BaseURL: getEnv("HOST_BASE_URL", "http://localhost:8601"),
			WSURL:   getEnv("HOST_WS_URL", "ws://localhost:8601/events"),
		},
		Translate: TranslateConfig{
			ServerURL: getEnv("TRANSLATE_SERVER_URL", "https://translate-service.scratch.mit.edu/"),
			Timeout:   getEnvDuration("TRANSLATE_TIMEOUT_MS", 10*time.Second),
		},
		Synthesis: SynthesisConfig{
			ServerURL: getEnv("SYNTH_SERVER_URL", "https://synthesis-service.scratch.mit.edu"),
			Timeout:   getEnvDuration("SYNTH_TIMEOUT_MS", 10*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Postgres: PostgresConfig{
			Enabled:  getEnvBool("POSTGRES_ENABLED", false),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "blockext"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DB", "blockext"),
		},
		Gemini: GeminiConfig{
			APIKey:     getEnv("GEMINI_API_KEY", ""),
			EmbedModel: getEnv("GEMINI_EMBED_MODEL", "gemini-embedding-001"),
			ChatModel:  getEnv("GEMINI_CHAT_MODEL", "gemini-2.5-flash"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			EnableFallback: getEnvBool("OPENAI_ENABLE_FALLBACK", true),
		},
		Sampling: SamplingConfig{
			Width:    getEnvInt("SAMPLING_WIDTH", 480),
			Height:   getEnvInt("SAMPLING_HEIGHT", 360),
			MinDelay: getEnvDuration("SAMPLING_MIN_DELAY_MS", 0),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
		Extension: ExtensionConfig{
			ProjectID: getEnv("PROJECT_ID", "default"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Host.BaseURL == "" {
		return fmt.Errorf("HOST_BASE_URL is required")
	}
	if c.Host.WSURL == "" {
		return fmt.Errorf("HOST_WS_URL is required")
	}
	if c.Translate.ServerURL == "" {
		return fmt.Errorf("TRANSLATE_SERVER_URL is required")
	}
	if c.Synthesis.ServerURL == "" {
		return fmt.Errorf("SYNTH_SERVER_URL is required")
	}
	if c.Gemini.APIKey == "" && c.OpenAI.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY or OPENAI_API_KEY is required for the embedding model")
	}
	if c.Sampling.Width <= 0 || c.Sampling.Height <= 0 {
		return fmt.Errorf("SAMPLING_WIDTH and SAMPLING_HEIGHT must be positive")
	}
	if strings.TrimSpace(c.Extension.ProjectID) == "" {
		return fmt.Errorf("PROJECT_ID must not be blank")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration reads a millisecond count.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if millis, err := strconv.Atoi(value); err == nil {
			return time.Duration(millis) * time.Millisecond
		}
	}
	return defaultValue
}
