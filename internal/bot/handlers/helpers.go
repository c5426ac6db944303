package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/noologic/gendolf/internal/ai"
	"github.com/noologic/gendolf/internal/database"
	"github.com/noologic/gendolf/internal/usage"
)

const (
	aiProcessingTimeout = 2 * time.Minute
	sendMessageTimeout  = 10 * time.Second
)

// RespondWithAI runs the full quota-gated reply flow for one user prompt:
// record the message and check the daily ceiling, generate a completion over
// the group's rolling history, send it, and append the bot turn to history.
// Quota exhaustion short-circuits before the provider is called; the prompt
// itself is still remembered.
func RespondWithAI(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID, userID int64, replyTo int, prompt, groupName string) {
	log := deps.Logger.With("handler", "respond")

	decision, err := deps.Tracker.RecordAndCheck(ctx, chatID, userID, prompt, database.RoleUser)
	if err != nil {
		log.ErrorContext(ctx, "Usage check failed", "error", err, "chat_id", chatID)
		SendReply(ctx, b, deps, chatID, replyTo, deps.Config.Messages.GeneralError)
		return
	}
	if decision == usage.DecisionQuotaExceeded {
		log.InfoContext(ctx, "Daily quota exhausted", "chat_id", chatID)
		SendReply(ctx, b, deps, chatID, replyTo, fmt.Sprintf(deps.Config.Messages.QuotaExceeded, deps.Tracker.FreeLimit()))
		return
	}

	_, _ = b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})

	history, err := deps.Tracker.Context(ctx, chatID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load conversation history", "error", err, "chat_id", chatID)
		SendReply(ctx, b, deps, chatID, replyTo, deps.Config.Messages.GeneralError)
		return
	}
	turns := ai.BuildTurns(history, deps.Config.AI.ContextTurns)

	aiCtx, cancel := context.WithTimeout(ctx, aiProcessingTimeout)
	defer cancel()
	resp, err := deps.AIClient.Generate(aiCtx, ai.SystemPrompt(groupName), turns)
	if err != nil {
		log.ErrorContext(ctx, "AI generation failed", "error", err, "chat_id", chatID)
		SendReply(ctx, b, deps, chatID, replyTo, deps.Config.Messages.GeneralError)
		return
	}

	SendReply(ctx, b, deps, chatID, replyTo, resp)

	if _, err := deps.Tracker.RecordAndCheck(ctx, chatID, deps.BotID(), resp, database.RoleBot); err != nil {
		log.ErrorContext(ctx, "Failed to record bot reply in history", "error", err, "chat_id", chatID)
	}
}

// SendReply sends a message to the chat, replying to the triggering message
// when replyTo is set.
func SendReply(ctx context.Context, b *bot.Bot, deps HandlerDeps, chatID int64, replyTo int, text string) {
	log := deps.Logger.With("handler", "respond")

	if ctx.Err() != nil {
		log.ErrorContext(ctx, "Context cancelled before sending reply", "error", ctx.Err(), "chat_id", chatID)
		return
	}

	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if replyTo > 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: replyTo}
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()
	sent, err := b.SendMessage(sendCtx, params)
	if err != nil {
		log.ErrorContext(ctx, "Failed to send reply message", "error", err, "chat_id", chatID)
		return
	}
	log.DebugContext(ctx, "Sent reply", "chat_id", chatID, "message_id", sent.ID)
}
