package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// Gemini generates narration with Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed provider.
func NewGemini(ctx context.Context, cfg BackendConfig) (*Gemini, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiModel
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithEndpoint(baseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate replays the window as chat history and sends the final user turn.
func (p *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	system, history, last := toGeminiChat(req.Messages)

	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(Temperature)
	model.SetMaxOutputTokens(MaxTokens)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	chat := model.StartChat()
	chat.History = history

	resp, err := chat.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", wrapErr(KindGemini, err)
	}

	text := geminiText(resp)
	if text == "" {
		return "", wrapErr(KindGemini, errEmptyCompletion)
	}
	return text, nil
}

// Name returns the backend identifier.
func (p *Gemini) Name() string { return string(KindGemini) }

// Close releases the underlying gRPC client.
func (p *Gemini) Close() error {
	return p.client.Close()
}

// toGeminiChat splits messages into a system instruction, the chat history,
// and the final message to send. Gemini requires history to open with a user
// turn, so a leading model turn gets the opening instruction in front of it.
func toGeminiChat(messages []Message) (string, []*genai.Content, string) {
	var system []string
	var history []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			if len(history) == 0 {
				history = append(history, genai.NewUserContent(genai.Text(OpeningInstruction)))
			}
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, genai.NewUserContent(genai.Text(m.Content)))
		}
	}

	last := ""
	if n := len(history); n > 0 && history[n-1].Role == "user" {
		if text, ok := history[n-1].Parts[0].(genai.Text); ok {
			last = string(text)
		}
		history = history[:n-1]
	}
	return strings.Join(system, "\n\n"), history, last
}

func geminiText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
	}
	return b.String()
}
