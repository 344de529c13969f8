package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// Defaults for the OpenRouter backend.
const (
	DefaultOpenRouterModel   = "openai/gpt-4o-mini"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenRouter generates narration through OpenRouter's OpenAI-compatible API.
type OpenRouter struct {
	llm llms.Model
}

// NewOpenRouter creates an OpenRouter-backed provider.
func NewOpenRouter(cfg BackendConfig) (*OpenRouter, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultOpenRouterModel
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}

	llm, err := lcopenai.New(
		lcopenai.WithToken(cfg.APIKey),
		lcopenai.WithModel(model),
		lcopenai.WithBaseURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create openrouter client: %w", err)
	}
	return &OpenRouter{llm: llm}, nil
}

// Generate sends the conversation as langchaingo message content.
func (p *OpenRouter) Generate(ctx context.Context, req Request) (string, error) {
	content := make([]llms.MessageContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		content = append(content, llms.TextParts(chatMessageType(m.Role), m.Content))
	}

	resp, err := p.llm.GenerateContent(ctx, content,
		llms.WithTemperature(Temperature),
		llms.WithMaxTokens(MaxTokens),
	)
	if err != nil {
		return "", wrapErr(KindOpenRouter, err)
	}
	if len(resp.Choices) == 0 {
		return "", wrapErr(KindOpenRouter, errEmptyCompletion)
	}
	return resp.Choices[0].Content, nil
}

// Name returns the backend identifier.
func (p *OpenRouter) Name() string { return string(KindOpenRouter) }

// Close is a no-op.
func (p *OpenRouter) Close() error { return nil }

func chatMessageType(role Role) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
