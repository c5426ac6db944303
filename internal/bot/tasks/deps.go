// Package tasks implements the scheduled maintenance tasks for the Gendolf
// Telegram bot: database maintenance and history retention pruning.
package tasks

import (
	"log/slog"

	"github.com/noologic/gendolf/internal/config"
	"github.com/noologic/gendolf/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
