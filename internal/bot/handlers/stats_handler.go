package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/noologic/gendolf/internal/database"
)

// NewStatsHandler returns a handler for the /stats command.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.Handle
}

// statsHandler reports this group's quota standing plus service-wide counts.
type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "stats")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Stats handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /stats command", "chat_id", chatID, "user_id", update.Message.From.ID)

	groupStats, err := h.deps.Tracker.Stats(ctx, chatID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load group stats", "error", err, "chat_id", chatID)
		h.sendError(ctx, b, chatID)
		return
	}
	aggregate, err := h.deps.Tracker.AggregateStats(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load aggregate stats", "error", err, "chat_id", chatID)
		h.sendError(ctx, b, chatID)
		return
	}

	status := fmt.Sprintf("Free (%d/%d remaining today)", groupStats.Remaining, h.deps.Tracker.FreeLimit())
	if groupStats.Tier == database.TierPro {
		status = "⭐ Pro"
	}

	text := fmt.Sprintf("📊 Stats\n\nThis group: %s\nActive groups today: %d\nTotal messages served: %d",
		status, aggregate.ActiveGroupsToday, aggregate.MessagesToday)

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send stats message", "error", err, "chat_id", chatID)
	}
}

func (h statsHandler) sendError(ctx context.Context, b *bot.Bot, chatID int64) {
	_, _ = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   h.deps.Config.Messages.GeneralError,
	})
}
