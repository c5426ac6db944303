package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/noologic/gendolf/internal/config"
)

// OpenAIClient implements the Client interface using the OpenAI chat
// completions API via the go-openai SDK.
type OpenAIClient struct {
	client    *openai.Client
	logger    *slog.Logger
	model     string
	maxTokens int
}

func newOpenAIClient(cfg config.AIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(clientConfig),
		logger:    logger.With("component", "openai_client"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Generate produces a reply via the OpenAI chat completions endpoint.
func (c *OpenAIClient) Generate(ctx context.Context, system string, turns []Turn) (string, error) {
	if len(turns) == 0 {
		return "", errors.New("no conversation turns to send")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, turn := range turns {
		role := openai.ChatMessageRoleUser
		if turn.Role == TurnRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("openai response contained no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("openai response contained no text")
	}

	c.logger.DebugContext(ctx, "Generated openai reply",
		"finish_reason", resp.Choices[0].FinishReason, "length", len(text))
	return text, nil
}
