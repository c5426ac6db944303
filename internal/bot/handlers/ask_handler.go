package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewAskHandler returns a handler for the /ask command.
func NewAskHandler(deps HandlerDeps) bot.HandlerFunc {
	return askHandler{deps}.Handle
}

// askHandler answers a direct question without requiring a mention.
type askHandler struct {
	deps HandlerDeps
}

func (h askHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "ask")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Ask handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	msg := update.Message
	chatID := msg.Chat.ID
	log.InfoContext(ctx, "Handling /ask command", "chat_id", chatID, "user_id", msg.From.ID)

	question := stripCommand(msg.Text, "/ask", h.deps.BotUsername())
	if question == "" {
		if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: h.deps.Config.Messages.AskUsage}); err != nil {
			log.ErrorContext(ctx, "Failed to send ask usage message", "error", err, "chat_id", chatID)
		}
		return
	}

	RespondWithAI(ctx, b, h.deps, chatID, msg.From.ID, msg.ID, question, msg.Chat.Title)
}

// stripCommand removes the leading command token, including the
// "/cmd@botname" form used in groups, and trims the remainder.
func stripCommand(text, command, botUsername string) string {
	rest := strings.TrimPrefix(text, command)
	if botUsername != "" {
		rest = strings.TrimPrefix(rest, "@"+botUsername)
	}
	return strings.TrimSpace(rest)
}
