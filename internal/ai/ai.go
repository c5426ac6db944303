// Package ai provides the interface and implementations for the AI
// completion backends the bot can relay messages to.
package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/noologic/gendolf/internal/config"
)

// TurnRole is the conversational role of one context entry sent to a backend.
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// Turn is one entry of the conversational context passed to a backend.
type Turn struct {
	Role    TurnRole
	Content string
}

// Client defines the interface for generating a reply from an AI backend.
// Implementations make exactly one attempt per call; retry policy is the
// caller's concern (and the bot deliberately has none).
type Client interface {
	// Generate produces a reply for the given system instruction and
	// ordered conversation turns.
	Generate(ctx context.Context, system string, turns []Turn) (string, error)
}

// NewClient creates an AI client for the configured provider. It acts as a
// factory, selecting the Anthropic, OpenAI, or Gemini implementation.
func NewClient(ctx context.Context, cfg config.AIConfig, logger *slog.Logger) (Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Initializing AI client", "provider", cfg.Provider, "model", cfg.Model)

	switch cfg.Provider {
	case "anthropic":
		return newAnthropicClient(cfg, logger)
	case "openai":
		return newOpenAIClient(cfg, logger)
	case "gemini":
		return newGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown AI provider specified: %s", cfg.Provider)
	}
}
