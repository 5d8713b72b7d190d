package difficulty

import "strings"

// Identifiers accepted from clients.
const (
	Easy   = "easy"
	Medium = "medium"
	Hard   = "hard"
)

// Default is used whenever a client sends an empty or unknown level.
const Default = Medium

// Level describes how hard the bot roasts the user.
type Level struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Prompt      string `json:"-"`
}

// Parse normalises raw into a known level identifier, falling back to Default.
func Parse(raw string) string {
	id, _ := Lookup(raw)
	return id
}

// Lookup is Parse that also reports whether raw named a known level.
func Lookup(raw string) (string, bool) {
	switch normalized := strings.ToLower(strings.TrimSpace(raw)); normalized {
	case Easy, Medium, Hard:
		return normalized, true
	default:
		return Default, false
	}
}

// Seed provides the three built-in levels.
func Seed() []Level {
	return []Level{
		{
			ID:          Easy,
			Label:       "Easy",
			Description: "Gentle nudges and plenty of encouragement.",
			Prompt:      "Be gentle but motivating. Encourage the user to improve while being positive.",
		},
		{
			ID:          Medium,
			Label:       "Medium",
			Description: "Half roast, half pep talk.",
			Prompt:      "Balance between roasting and motivating the user. Provide constructive criticism.",
		},
		{
			ID:          Hard,
			Label:       "Hard",
			Description: "No mercy, but still rooting for you.",
			Prompt:      "Roast the user hard, but make it clear they can do better and encourage improvement.",
		},
	}
}
