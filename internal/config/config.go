// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/taleweaver/internal/llm"
	"github.com/ashureev/taleweaver/internal/transcript"
	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Port     string `env:"PORT" envDefault:"3000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Store      StoreConfig
	AI         AIConfig
	HTTP       HTTPConfig
	Transcript TranscriptConfig
}

// StoreConfig selects and locates the campaign store.
type StoreConfig struct {
	Driver   string `env:"STORE_DRIVER" envDefault:"json"`
	DataPath string `env:"DATA_PATH" envDefault:"./data/campaigns.json"`
	DBPath   string `env:"DB_PATH" envDefault:"./data/campaigns.db"`
}

// AIConfig configures the completion providers.
type AIConfig struct {
	Provider string `env:"AI_PROVIDER" envDefault:"openai"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`

	OpenRouterAPIKey  string `env:"OPENROUTER_API_KEY"`
	OpenRouterModel   string `env:"OPENROUTER_MODEL" envDefault:"openai/gpt-4o-mini"`
	OpenRouterBaseURL string `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
}

// HTTPConfig holds cross-origin and rate limit settings.
type HTTPConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"2"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"5"`
}

// TranscriptConfig controls NDJSON transcript logging.
type TranscriptConfig struct {
	Enabled   bool   `env:"TRANSCRIPT_LOG_ENABLED" envDefault:"false"`
	Dir       string `env:"TRANSCRIPT_LOG_DIR" envDefault:"./data/transcripts"`
	QueueSize int    `env:"TRANSCRIPT_LOG_QUEUE_SIZE" envDefault:"256"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from the given variables instead of the
// process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.Store.Driver {
	case "json":
		if c.Store.DataPath == "" {
			return fmt.Errorf("DATA_PATH cannot be empty")
		}
	case "sqlite":
		if c.Store.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be json or sqlite, got %q", c.Store.Driver)
	}
	if _, err := llm.ParseKind(c.AI.Provider); err != nil {
		return err
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS cannot be empty")
	}
	if c.HTTP.RateLimitRPS > 0 && c.HTTP.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be > 0")
	}
	if c.Transcript.Enabled && c.Transcript.Dir == "" {
		return fmt.Errorf("TRANSCRIPT_LOG_DIR cannot be empty")
	}
	if c.Transcript.QueueSize <= 0 {
		return fmt.Errorf("TRANSCRIPT_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

// LLM returns the completion provider configuration.
func (c *Config) LLM() llm.Config {
	kind, _ := llm.ParseKind(c.AI.Provider)
	return llm.Config{
		Kind: kind,
		OpenAI: llm.BackendConfig{
			APIKey:  c.AI.OpenAIAPIKey,
			Model:   c.AI.OpenAIModel,
			BaseURL: c.AI.OpenAIBaseURL,
		},
		Gemini: llm.BackendConfig{
			APIKey: c.AI.GeminiAPIKey,
			Model:  c.AI.GeminiModel,
		},
		OpenRouter: llm.BackendConfig{
			APIKey:  c.AI.OpenRouterAPIKey,
			Model:   c.AI.OpenRouterModel,
			BaseURL: c.AI.OpenRouterBaseURL,
		},
	}
}

// TranscriptLog returns the transcript logger configuration.
func (c *Config) TranscriptLog() transcript.Config {
	return transcript.Config{
		Enabled:   c.Transcript.Enabled,
		Dir:       c.Transcript.Dir,
		QueueSize: c.Transcript.QueueSize,
	}
}
