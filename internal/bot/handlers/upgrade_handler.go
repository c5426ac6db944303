package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewUpgradeHandler returns a handler for the /upgrade command.
func NewUpgradeHandler(deps HandlerDeps) bot.HandlerFunc {
	return upgradeHandler{deps}.Handle
}

// upgradeHandler shows the Pro pitch with the upgrade contact.
type upgradeHandler struct {
	deps HandlerDeps
}

func (h upgradeHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "upgrade")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Upgrade handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Handling /upgrade command", "chat_id", update.Message.Chat.ID, "user_id", update.Message.From.ID)

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   h.deps.Config.Messages.UpgradePitch,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send upgrade pitch", "error", err, "chat_id", update.Message.Chat.ID)
	}
}
