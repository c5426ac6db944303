package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type mentionHandler struct {
	deps HandlerDeps
}

// NewMentionHandler creates the default message handler. In groups it answers
// messages that @mention the bot or reply to one of its messages; in private
// chats every non-command message is treated as a direct question.
func NewMentionHandler(deps HandlerDeps) bot.HandlerFunc {
	return mentionHandler{deps}.Handle
}

func (h mentionHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	deps := h.deps
	log := deps.Logger.With("handler", "mention")

	msg := update.Message
	if msg == nil || msg.Text == "" || msg.From == nil {
		log.DebugContext(ctx, "Ignoring update with nil message, empty text, or nil sender", "update_id", update.ID)
		return
	}

	chatID := msg.Chat.ID

	if msg.Chat.Type == models.ChatTypePrivate {
		if strings.HasPrefix(msg.Text, "/") {
			return
		}
		log.DebugContext(ctx, "Handling private message", "chat_id", chatID)
		RespondWithAI(ctx, b, deps, chatID, msg.From.ID, msg.ID, msg.Text, "Private Chat")
		return
	}

	username := deps.BotUsername()
	if username == "" {
		log.WarnContext(ctx, "Bot username empty in config, cannot check mentions reliably")
		return
	}

	if !h.shouldHandle(msg, username) {
		log.DebugContext(ctx, "Bot not mentioned or referenced, skipping", "chat_id", chatID)
		return
	}

	log.DebugContext(ctx, "Handling mention", "chat_id", chatID, "message_id", msg.ID)

	prompt := strings.TrimSpace(strings.ReplaceAll(msg.Text, "@"+username, ""))
	if prompt == "" {
		prompt = deps.Config.Messages.EmptyPrompt
	}

	RespondWithAI(ctx, b, deps, chatID, msg.From.ID, msg.ID, prompt, msg.Chat.Title)
}

func (h mentionHandler) shouldHandle(msg *models.Message, username string) bool {
	if strings.Contains(strings.ToLower(msg.Text), "@"+strings.ToLower(username)) {
		return true
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil && msg.ReplyToMessage.From.ID == h.deps.BotID() {
		return true
	}
	return false
}
