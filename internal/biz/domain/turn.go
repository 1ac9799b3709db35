package domain

import "fmt"

// Role identifies who produced a chat turn
type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleHuman || r == RoleAI
}

// ChatTurn is a single utterance in a session history. Never mutated after creation.
type ChatTurn struct {
	Role    Role
	Speaker string // sender id for humans, bot id for ai turns
	Content string
}

// NewHumanTurn creates a turn authored by a human participant
func NewHumanTurn(speaker, content string) ChatTurn {
	return ChatTurn{Role: RoleHuman, Speaker: speaker, Content: content}
}

// NewAITurn creates a turn authored by the bot
func NewAITurn(botID, content string) ChatTurn {
	return ChatTurn{Role: RoleAI, Speaker: botID, Content: content}
}

// Render formats the turn as "speaker(role): content"
func (t ChatTurn) Render() string {
	return fmt.Sprintf("%s(%s): %s", t.Speaker, t.Role, t.Content)
}
