// Package config manages application configuration from defaults, an
// optional config.yaml file, and BOT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/viper"
)

// LoggerConfig controls log output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot token and the admin allow-list. BotInfo is
// populated at startup from GetMe and is not part of the file/env surface.
type TelegramConfig struct {
	Token    string  `mapstructure:"token"     validate:"required"`
	AdminIDs []int64 `mapstructure:"admin_ids" validate:"required,min=1"`

	BotInfo *models.User `mapstructure:"-" validate:"-"`
}

// AIConfig selects and configures the completion backend. Provider picks the
// endpoint and auth; it has no effect on quota logic.
type AIConfig struct {
	Provider     string        `mapstructure:"provider"      validate:"required,oneof=anthropic openai gemini"`
	APIKey       string        `mapstructure:"api_key"       validate:"required"`
	Model        string        `mapstructure:"model"         validate:"required"`
	BaseURL      string        `mapstructure:"base_url"      validate:"omitempty,url"`
	Timeout      time.Duration `mapstructure:"timeout"       validate:"required,min=1s,max=10m"`
	MaxTokens    int           `mapstructure:"max_tokens"    validate:"gt=0"`
	ContextTurns int           `mapstructure:"context_turns" validate:"gt=0"`
}

// QuotaConfig bounds the freemium model: daily AI replies for free groups
// and the rolling history length per group.
type QuotaConfig struct {
	FreeDailyLimit int `mapstructure:"free_daily_limit" validate:"gt=0"`
	HistorySize    int `mapstructure:"history_size"     validate:"gt=0"`
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path          string `mapstructure:"path"           validate:"required"`
	RetentionDays int    `mapstructure:"retention_days" validate:"gt=0"`
}

// TaskConfig enables a scheduled task and sets its cron expression.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// MessagesConfig holds every user-visible message string so deployments can
// localize or rebrand without a rebuild.
type MessagesConfig struct {
	Welcome       string `mapstructure:"welcome"        validate:"required"`
	Help          string `mapstructure:"help"           validate:"required"`
	QuotaExceeded string `mapstructure:"quota_exceeded" validate:"required"`
	UpgradePitch  string `mapstructure:"upgrade_pitch"  validate:"required"`
	AskUsage      string `mapstructure:"ask_usage"      validate:"required"`
	GeneralError  string `mapstructure:"general_error"  validate:"required"`
	NotAuthorized string `mapstructure:"not_authorized" validate:"required"`
	EmptyPrompt   string `mapstructure:"empty_prompt"   validate:"required"`
}

// Config is the root application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	AI        AIConfig        `mapstructure:"ai"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// IsAdmin reports whether userID is on the configured admin allow-list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// LoadConfig loads and validates configuration from:
//  1. Default values
//  2. The YAML file at configPath (optional)
//  3. BOT_* environment variables (e.g. BOT_TELEGRAM_TOKEN)
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("ai.provider", "anthropic")
	v.SetDefault("ai.model", "claude-sonnet-4-20250514")
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("ai.max_tokens", 1000)
	v.SetDefault("ai.context_turns", 10)

	v.SetDefault("quota.free_daily_limit", 50)
	v.SetDefault("quota.history_size", 20)

	v.SetDefault("database.path", "gendolf.db")
	v.SetDefault("database.retention_days", 30)

	v.SetDefault("scheduler.tasks", map[string]TaskConfig{
		"sql_maintenance": {Enabled: true, Schedule: "0 0 4 * * *"},
		"prune_history":   {Enabled: true, Schedule: "0 30 4 * * *"},
	})

	v.SetDefault("messages.welcome",
		"🤓 Gendolf AI Bot\n\n"+
			"Smart AI assistant for Telegram groups.\n\n"+
			"✅ Answers questions using AI\n"+
			"✅ Remembers conversation context\n"+
			"✅ Works in any language\n\n"+
			"Free: %d messages/day per group\n"+
			"Pro: Unlimited — $5/month\n\n"+
			"Add me to your group and mention me or reply to my messages!")
	v.SetDefault("messages.help",
		"🤓 How to use Gendolf:\n\n"+
			"• Mention me (@%s) in a group\n"+
			"• Reply to my messages\n"+
			"• Use /ask <question> for direct questions\n"+
			"• /stats — usage statistics\n"+
			"• /upgrade — go Pro\n\n"+
			"Free limit: %d messages/day per group.")
	v.SetDefault("messages.quota_exceeded",
		"⚠️ Daily free limit (%d messages) reached for this group.\nUpgrade to Pro for unlimited: /upgrade")
	v.SetDefault("messages.upgrade_pitch",
		"⭐ Gendolf Pro — $5/month\n\n"+
			"• Unlimited AI messages\n"+
			"• Priority response time\n"+
			"• Custom personality/instructions\n"+
			"• Group conversation memory\n\n"+
			"Contact @daniel_NooLogic to upgrade your group.")
	v.SetDefault("messages.ask_usage", "Usage: /ask <your question>")
	v.SetDefault("messages.general_error", "⚠️ AI temporarily unavailable. Try again in a moment.")
	v.SetDefault("messages.not_authorized", "🚫 Access denied.")
	v.SetDefault("messages.empty_prompt", "Hi!")
}
