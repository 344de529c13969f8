package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Kind selects the completion backend.
type Kind string

const (
	KindOpenAI     Kind = "openai"
	KindGemini     Kind = "gemini"
	KindOpenRouter Kind = "openrouter"
	KindLocal      Kind = "local"
)

// ParseKind validates a provider selector.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindOpenAI, KindGemini, KindOpenRouter, KindLocal:
		return k, nil
	case "":
		return KindOpenAI, nil
	default:
		return "", fmt.Errorf("unknown AI provider %q", s)
	}
}

// BackendConfig holds the credential and endpoint of one remote backend.
type BackendConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Config selects and configures the completion backend.
type Config struct {
	Kind       Kind
	OpenAI     BackendConfig
	Gemini     BackendConfig
	OpenRouter BackendConfig
}

// Resolve returns the backend that will actually serve requests. A remote
// backend without an API key resolves to KindLocal.
func (c Config) Resolve() Kind {
	var key string
	switch c.Kind {
	case KindOpenAI:
		key = c.OpenAI.APIKey
	case KindGemini:
		key = c.Gemini.APIKey
	case KindOpenRouter:
		key = c.OpenRouter.APIKey
	default:
		return KindLocal
	}
	if strings.TrimSpace(key) == "" {
		return KindLocal
	}
	return c.Kind
}

// New builds the provider selected by cfg.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kind := cfg.Resolve()
	if kind != cfg.Kind {
		logger.Warn("No API key for selected AI provider, using local fallback", "provider", cfg.Kind)
	}

	switch kind {
	case KindOpenAI:
		return NewOpenAI(cfg.OpenAI), nil
	case KindGemini:
		return NewGemini(ctx, cfg.Gemini)
	case KindOpenRouter:
		return NewOpenRouter(cfg.OpenRouter)
	default:
		return NewFallback(), nil
	}
}
