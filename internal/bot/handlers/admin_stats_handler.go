package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewAdminStatsHandler returns a handler for the /admin_stats command.
// It is expected to be registered behind the AdminOnly middleware.
func NewAdminStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return adminStatsHandler{deps}.Handle
}

// adminStatsHandler reports service-wide usage counts to the operator.
type adminStatsHandler struct {
	deps HandlerDeps
}

func (h adminStatsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "admin_stats")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Admin stats handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /admin_stats command", "chat_id", chatID, "user_id", update.Message.From.ID)

	aggregate, err := h.deps.Tracker.AggregateStats(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load aggregate stats", "error", err)
		_, _ = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: h.deps.Config.Messages.GeneralError})
		return
	}

	text := fmt.Sprintf("🔧 Admin Stats:\nActive today: %d\nTotal msgs today: %d\nPro groups: %d\nKnown groups: %d",
		aggregate.ActiveGroupsToday, aggregate.MessagesToday, aggregate.ProGroups, aggregate.TotalGroups)

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send admin stats", "error", err, "chat_id", chatID)
	}
}
