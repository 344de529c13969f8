// Package domain contains core domain types for the campaign server.
package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no campaign has the requested id.
var ErrNotFound = errors.New("campaign not found")

// DefaultLocation is where every new campaign begins.
const DefaultLocation = "Tavern"

// DefaultBackstory stands in for a character created without one.
const DefaultBackstory = "Mysterious wanderer seeking adventure."

// Character is the player character a campaign is built around.
// It is fixed once the campaign starts.
type Character struct {
	Name      string `json:"name"`
	Race      string `json:"race"`
	Class     string `json:"class"`
	Backstory string `json:"backstory,omitempty"`
}

// BackstoryOrDefault returns the backstory, or DefaultBackstory when it is blank.
func (c Character) BackstoryOrDefault() string {
	if c.Backstory == "" {
		return DefaultBackstory
	}
	return c.Backstory
}

// Campaign is one persisted role-playing session and its turn history.
type Campaign struct {
	ID              string    `json:"id"`
	Character       Character `json:"character"`
	CreatedAt       time.Time `json:"createdAt"`
	Messages        []Turn    `json:"messages"`
	CurrentLocation string    `json:"currentLocation"`
	ActiveQuest     *string   `json:"activeQuest"`
}

// NewCampaign returns an empty campaign at the default location.
func NewCampaign(id string, character Character, now time.Time) *Campaign {
	return &Campaign{
		ID:              id,
		Character:       character,
		CreatedAt:       now,
		Messages:        []Turn{},
		CurrentLocation: DefaultLocation,
	}
}

// Append adds a turn to the end of the history and returns it.
func (c *Campaign) Append(role Role, content string, at time.Time) Turn {
	turn := Turn{Role: role, Content: content, Timestamp: at}
	c.Messages = append(c.Messages, turn)
	return turn
}

// RecentTurns returns the last n turns from history.
func (c *Campaign) RecentTurns(n int) []Turn {
	if n >= len(c.Messages) {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// Summary projects the campaign for index listings.
func (c *Campaign) Summary() Summary {
	return Summary{
		ID:           c.ID,
		Character:    c.Character,
		CreatedAt:    c.CreatedAt,
		MessageCount: len(c.Messages),
	}
}

// Clone returns a deep copy safe to mutate independently.
func (c *Campaign) Clone() *Campaign {
	cp := *c
	cp.Messages = append([]Turn(nil), c.Messages...)
	if cp.Messages == nil {
		cp.Messages = []Turn{}
	}
	if c.ActiveQuest != nil {
		quest := *c.ActiveQuest
		cp.ActiveQuest = &quest
	}
	return &cp
}

// Summary is the lightweight campaign projection used by the index view.
type Summary struct {
	ID           string    `json:"id"`
	Character    Character `json:"character"`
	CreatedAt    time.Time `json:"createdAt"`
	MessageCount int       `json:"messageCount"`
}
