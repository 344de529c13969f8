// Package prompt assembles the message sequence sent to a completion provider.
package prompt

import (
	"fmt"

	"github.com/ashureev/taleweaver/internal/domain"
	"github.com/ashureev/taleweaver/internal/llm"
	"github.com/tmc/langchaingo/prompts"
)

// WindowSize is the number of most recent turns passed as context.
const WindowSize = 10

const systemPrompt = `You are an expert Dungeon Master running a D&D 5e campaign.

CAMPAIGN CONTEXT:
{{.context}}

RULES:
1. Never break character - you ARE the DM
2. Describe scenes vividly but concisely (2-3 paragraphs max)
3. When players take actions, describe outcomes creatively
4. For combat: ask for dice rolls, describe hits/misses cinematically
5. Track HP, inventory, and quest progress implicitly
6. Introduce NPCs with personality and motivation
7. Offer 2-3 clear choices when appropriate
8. End responses with "What do you do?" or similar prompt

Keep responses engaging and move the story forward.`

var systemTemplate = prompts.PromptTemplate{
	Template:       systemPrompt,
	TemplateFormat: prompts.TemplateFormatGoTemplate,
	InputVariables: []string{"context"},
}

// Build returns the system instruction for contextSummary followed by turns
// in their original order. Turn content is passed through untouched.
func Build(contextSummary string, turns []domain.Turn) ([]llm.Message, error) {
	system, err := systemTemplate.Format(map[string]any{"context": contextSummary})
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	messages := make([]llm.Message, 0, len(turns)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, turn := range turns {
		messages = append(messages, llm.Message{Role: roleFor(turn.Role), Content: turn.Content})
	}
	return messages, nil
}

// Window returns the last n turns, or all of them when there are fewer.
func Window(turns []domain.Turn, n int) []domain.Turn {
	if n >= len(turns) {
		return turns
	}
	return turns[len(turns)-n:]
}

func roleFor(role domain.Role) llm.Role {
	if role == domain.RoleAssistant {
		return llm.RoleAssistant
	}
	return llm.RoleUser
}

// OpeningContext describes a brand new campaign for its first scene.
func OpeningContext(c domain.Character) string {
	return fmt.Sprintf("New campaign starting. Character: %s, a level 1 %s %s. Backstory: %s",
		c.Name, c.Race, c.Class, c.BackstoryOrDefault())
}

// ActionContext summarizes an ongoing campaign before a player action.
func ActionContext(c *domain.Campaign) string {
	return fmt.Sprintf("Character: %s, %s %s.\nCurrent location: %s\nTotal messages: %d",
		c.Character.Name, c.Character.Race, c.Character.Class, c.CurrentLocation, len(c.Messages))
}
