package ai

import (
	"fmt"

	"github.com/noologic/gendolf/internal/database"
)

// systemPromptTemplate is the bot persona. The single %s is the chat title.
const systemPromptTemplate = "You are Gendolf 🤓, a smart AI assistant in the Telegram group '%s'. " +
	"Be helpful, concise, and friendly. Answer questions, help with tasks, and participate " +
	"in conversations naturally. Keep responses under 500 chars unless more detail is needed. " +
	"Use emoji sparingly. Respond in the same language as the question."

// SystemPrompt builds the system instruction for a chat.
func SystemPrompt(groupName string) string {
	if groupName == "" {
		groupName = "Chat"
	}
	return fmt.Sprintf(systemPromptTemplate, groupName)
}

// BuildTurns converts the rolling history into provider-neutral turns,
// keeping only the most recent maxTurns entries. User turns carry the sender
// ID so the model can tell speakers apart in a group.
func BuildTurns(history []database.Message, maxTurns int) []Turn {
	if maxTurns > 0 && len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}

	turns := make([]Turn, 0, len(history))
	for _, msg := range history {
		if msg.Role == database.RoleBot {
			turns = append(turns, Turn{Role: TurnRoleAssistant, Content: msg.Content})
			continue
		}
		turns = append(turns, Turn{
			Role:    TurnRoleUser,
			Content: fmt.Sprintf("[UID %d]: %s", msg.UserID, msg.Content),
		})
	}
	return turns
}
