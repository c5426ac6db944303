package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/noologic/gendolf/internal/database"
)

const adminProUsage = "Usage: /admin_pro <chat_id> [pro|free]"

// NewAdminProHandler returns a handler for the /admin_pro command.
// It is expected to be registered behind the AdminOnly middleware.
func NewAdminProHandler(deps HandlerDeps) bot.HandlerFunc {
	return adminProHandler{deps}.Handle
}

// adminProHandler sets a group's tier. Without an explicit tier argument the
// group is upgraded to Pro; "free" downgrades it back.
type adminProHandler struct {
	deps HandlerDeps
}

func (h adminProHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "admin_pro")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Admin pro handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /admin_pro command", "chat_id", chatID, "user_id", update.Message.From.ID)

	targetID, tier, err := parseAdminProArgs(update.Message.Text)
	if err != nil {
		h.reply(ctx, b, chatID, adminProUsage)
		return
	}

	if err := h.deps.Tracker.SetTier(ctx, targetID, tier); err != nil {
		log.ErrorContext(ctx, "Failed to set group tier", "error", err, "target_chat_id", targetID, "tier", tier)
		h.reply(ctx, b, chatID, h.deps.Config.Messages.GeneralError)
		return
	}

	log.InfoContext(ctx, "Group tier updated", "target_chat_id", targetID, "tier", tier)
	if tier == database.TierPro {
		h.reply(ctx, b, chatID, fmt.Sprintf("✅ Group %d upgraded to Pro", targetID))
	} else {
		h.reply(ctx, b, chatID, fmt.Sprintf("✅ Group %d downgraded to Free", targetID))
	}
}

func (h adminProHandler) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to send admin_pro reply", "error", err, "chat_id", chatID)
	}
}

// parseAdminProArgs extracts the target chat ID and tier from the command
// text, e.g. "/admin_pro -100123456 pro". The tier defaults to Pro.
func parseAdminProArgs(text string) (int64, database.Tier, error) {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return 0, "", fmt.Errorf("missing chat_id argument")
	}

	targetID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid chat_id %q: %w", parts[1], err)
	}

	tier := database.TierPro
	if len(parts) >= 3 {
		switch strings.ToLower(parts[2]) {
		case "pro":
			tier = database.TierPro
		case "free":
			tier = database.TierFree
		default:
			return 0, "", fmt.Errorf("invalid tier %q", parts[2])
		}
	}

	return targetID, tier, nil
}
