package domain

import "time"

// Role identifies who authored a turn.
type Role string

const (
	// RoleUser marks a turn written by the player.
	RoleUser Role = "user"
	// RoleAssistant marks a turn generated by the Dungeon Master.
	RoleAssistant Role = "assistant"
)

// Turn is one message in a campaign conversation. Turns are append-only.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
