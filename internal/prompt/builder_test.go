package prompt

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/taleweaver/internal/domain"
	"github.com/ashureev/taleweaver/internal/llm"
	"github.com/stretchr/testify/require"
)

func turns(n int) []domain.Turn {
	out := make([]domain.Turn, 0, n)
	for i := 0; i < n; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		out = append(out, domain.Turn{Role: role, Content: fmt.Sprintf("turn-%d", i), Timestamp: time.Now()})
	}
	return out
}

func TestBuildSystemThenTurnsInOrder(t *testing.T) {
	history := turns(3)
	messages, err := Build("Character: Finn, Elf Rogue.", history)
	require.NoError(t, err)
	require.Len(t, messages, 4)

	require.Equal(t, llm.RoleSystem, messages[0].Role)
	require.Contains(t, messages[0].Content, "Character: Finn, Elf Rogue.")
	require.Contains(t, messages[0].Content, "What do you do?")
	require.NotContains(t, messages[0].Content, "{{")

	require.Equal(t, llm.RoleUser, messages[1].Role)
	require.Equal(t, "turn-0", messages[1].Content)
	require.Equal(t, llm.RoleAssistant, messages[2].Role)
	require.Equal(t, "turn-1", messages[2].Content)
	require.Equal(t, llm.RoleUser, messages[3].Role)
}

func TestBuildKeepsTurnContentVerbatim(t *testing.T) {
	long := strings.Repeat("a very long action ", 500)
	messages, err := Build("ctx", []domain.Turn{{Role: domain.RoleUser, Content: long}})
	require.NoError(t, err)
	require.Equal(t, long, messages[1].Content)
}

func TestBuildDoesNotEvaluateContextAsTemplate(t *testing.T) {
	messages, err := Build("Backstory: {{.context}} trickster", nil)
	require.NoError(t, err)
	require.Contains(t, messages[0].Content, "{{.context}} trickster")
}

func TestWindowNeverExceedsSize(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 25} {
		history := turns(n)
		window := Window(history, WindowSize)
		require.LessOrEqual(t, len(window), WindowSize)
		if n <= WindowSize {
			require.Equal(t, history, window)
			continue
		}
		require.Equal(t, history[n-WindowSize:], window)
		require.Equal(t, fmt.Sprintf("turn-%d", n-1), window[len(window)-1].Content)
	}
}

func TestOpeningContextDefaultsBackstory(t *testing.T) {
	got := OpeningContext(domain.Character{Name: "Finn", Race: "Elf", Class: "Rogue"})
	require.Equal(t, "New campaign starting. Character: Finn, a level 1 Elf Rogue. Backstory: Mysterious wanderer seeking adventure.", got)
}

func TestActionContext(t *testing.T) {
	c := domain.NewCampaign("c1", domain.Character{Name: "Finn", Race: "Elf", Class: "Rogue"}, time.Now())
	c.Append(domain.RoleAssistant, "intro", time.Now())
	c.Append(domain.RoleUser, "I look around", time.Now())

	got := ActionContext(c)
	require.Equal(t, "Character: Finn, Elf Rogue.\nCurrent location: Tavern\nTotal messages: 2", got)
}
