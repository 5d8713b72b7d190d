package chat

import "strings"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single entry of the transcript sent to the model.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Side places a bubble in the client chat view: right for the user, left for the bot.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Valid reports whether s is one of the known sides.
func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

// ParseSide normalises raw client input.
func ParseSide(raw string) (Side, bool) {
	side := Side(strings.ToLower(strings.TrimSpace(raw)))
	return side, side.Valid()
}

// Bubble is the client-facing representation of a message.
type Bubble struct {
	Text string `json:"text"`
	Side Side   `json:"side"`
}
