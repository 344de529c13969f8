package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "test-model",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "The dragon stirs. What do you do?"}
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 8, "total_tokens": 18}
}`

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"messages"`
}

func completionServer(t *testing.T, status int, captured *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(completionBody))
			return
		}
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sampleRequest() Request {
	return Request{Messages: []Message{
		{Role: RoleSystem, Content: "You are the DM."},
		{Role: RoleAssistant, Content: "You stand at the cave mouth."},
		{Role: RoleUser, Content: "I step inside"},
	}, Turn: 2}
}

func TestOpenAIGenerate(t *testing.T) {
	var captured chatRequest
	srv := completionServer(t, http.StatusOK, &captured)

	p := NewOpenAI(BackendConfig{APIKey: "sk-test", BaseURL: srv.URL + "/"}, option.WithMaxRetries(0))
	got, err := p.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "The dragon stirs. What do you do?", got)

	require.Equal(t, DefaultOpenAIModel, captured.Model)
	require.InDelta(t, Temperature, captured.Temperature, 0.0001)
	require.Equal(t, MaxTokens, captured.MaxTokens)
	require.Len(t, captured.Messages, 3)
	require.Equal(t, "system", captured.Messages[0].Role)
	require.Equal(t, "assistant", captured.Messages[1].Role)
	require.Equal(t, "user", captured.Messages[2].Role)
}

func TestOpenAIGenerateWrapsFailure(t *testing.T) {
	srv := completionServer(t, http.StatusUnauthorized, nil)

	p := NewOpenAI(BackendConfig{APIKey: "bad", BaseURL: srv.URL + "/"}, option.WithMaxRetries(0))
	_, err := p.Generate(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrProvider)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, KindOpenAI, perr.Backend)
}

func TestOpenRouterGenerate(t *testing.T) {
	var captured chatRequest
	srv := completionServer(t, http.StatusOK, &captured)

	p, err := NewOpenRouter(BackendConfig{APIKey: "or-test", Model: "meta/llama", BaseURL: srv.URL})
	require.NoError(t, err)

	got, err := p.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Equal(t, "The dragon stirs. What do you do?", got)

	require.Equal(t, "meta/llama", captured.Model)
	require.InDelta(t, Temperature, captured.Temperature, 0.0001)
	require.Len(t, captured.Messages, 3)
	require.Equal(t, "system", captured.Messages[0].Role)
	require.Equal(t, "assistant", captured.Messages[1].Role)
	require.Equal(t, "user", captured.Messages[2].Role)
}

func TestOpenRouterGenerateWrapsFailure(t *testing.T) {
	srv := completionServer(t, http.StatusInternalServerError, nil)

	p, err := NewOpenRouter(BackendConfig{APIKey: "or-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), sampleRequest())
	require.ErrorIs(t, err, ErrProvider)
}

func TestToGeminiChat(t *testing.T) {
	system, history, last := toGeminiChat(sampleRequest().Messages)

	require.Equal(t, "You are the DM.", system)
	require.Equal(t, "I step inside", last)
	// A synthetic opening user turn precedes the leading model turn.
	require.Len(t, history, 2)
	require.Equal(t, "user", history[0].Role)
	require.Equal(t, genai.Text(OpeningInstruction), history[0].Parts[0])
	require.Equal(t, "model", history[1].Role)
	require.Equal(t, genai.Text("You stand at the cave mouth."), history[1].Parts[0])
}

func TestToGeminiChatOpeningOnly(t *testing.T) {
	system, history, last := toGeminiChat([]Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: OpeningInstruction},
	})
	require.Equal(t, "sys", system)
	require.Empty(t, history)
	require.Equal(t, OpeningInstruction, last)
}

func TestGeminiText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("Mist rolls "), genai.Text("in.")}},
	}}}
	require.Equal(t, "Mist rolls in.", geminiText(resp))
	require.Equal(t, "", geminiText(nil))
}
