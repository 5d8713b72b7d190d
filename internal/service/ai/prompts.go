package ai

import (
	"strings"

	"github.com/zhouzirui/ragebot/backend/internal/model/chat"
)

// ScoreInstruction closes every roast request so the reply ends in a parseable score.
const ScoreInstruction = "After providing feedback, rate the user's productivity out of 100 " +
	"as a pure integer on a new line like this:\nScore: 70"

const summarySystemPrompt = "You are the same roast bot, now reviewing a finished chat. " +
	"In three or four sentences, explain why the user earned their productivity score, " +
	"name the habit that hurt it most and one concrete thing that would raise it. " +
	"Keep the roast tone but stay constructive. Do not output a new score."

const summaryUserPrompt = "Average productivity score: {average}/100\n\nConversation:\n{transcript}"

// formatTranscript renders the dialogue as plain text for the summary prompt.
func formatTranscript(turns []chat.Turn) string {
	var builder strings.Builder
	for _, turn := range turns {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}

		switch turn.Role {
		case chat.RoleUser:
			builder.WriteString("User: ")
		case chat.RoleAssistant:
			builder.WriteString("Bot: ")
		default:
			continue
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}

	if builder.Len() == 0 {
		return "(no messages yet)"
	}
	return strings.TrimRight(builder.String(), "\n")
}
