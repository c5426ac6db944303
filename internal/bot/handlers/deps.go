package handlers

import (
	"log/slog"

	"github.com/noologic/gendolf/internal/ai"
	"github.com/noologic/gendolf/internal/config"
	"github.com/noologic/gendolf/internal/usage"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Tracker  *usage.Tracker
	AIClient ai.Client
}

// BotUsername returns the username Telegram reported at startup, or an empty
// string before GetMe has run.
func (d HandlerDeps) BotUsername() string {
	if d.Config == nil || d.Config.Telegram.BotInfo == nil {
		return ""
	}
	return d.Config.Telegram.BotInfo.Username
}

// BotID returns the bot's own Telegram user ID, or zero before GetMe has run.
func (d HandlerDeps) BotID() int64 {
	if d.Config == nil || d.Config.Telegram.BotInfo == nil {
		return 0
	}
	return d.Config.Telegram.BotInfo.ID
}
