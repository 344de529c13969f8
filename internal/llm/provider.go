// Package llm implements the completion providers that write Dungeon Master
// narration: three remote chat-completion backends and a local fallback.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/taleweaver/internal/domain"
)

// Sampling settings shared by every remote backend.
const (
	Temperature = 0.8
	MaxTokens   = 1000
)

// Role is the provider-facing author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the ordered sequence sent to a provider.
type Message struct {
	Role    Role
	Content string
}

// Request is a single generation call.
type Request struct {
	Messages []Message

	// Character and Turn are only read by the local fallback. Turn is the
	// number of turns the campaign had persisted when the request was built.
	Character domain.Character
	Turn      int
}

// LastUserMessage returns the content of the most recent user message.
func (r Request) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// Provider produces narrative text for an ordered message sequence.
type Provider interface {
	// Generate returns the next Dungeon Master turn.
	Generate(ctx context.Context, req Request) (string, error)

	// Name identifies the backend in logs and metrics.
	Name() string

	// Close releases any client resources.
	Close() error
}

// ErrProvider matches every error returned by a remote backend.
var ErrProvider = errors.New("completion provider failed")

// ProviderError wraps a transport or service failure from a remote backend.
type ProviderError struct {
	Backend Kind
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s completion failed: %v", e.Backend, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is reports ErrProvider as a match so callers need not know the backend.
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

func wrapErr(kind Kind, err error) error {
	return &ProviderError{Backend: kind, Err: err}
}

var errEmptyCompletion = errors.New("empty completion")
