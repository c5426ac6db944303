package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/noologic/gendolf/internal/config"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicAPIVersion     = "2023-06-01"
)

// APIError represents an error response from the Anthropic API.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic API error: %s (type: %s)", e.Message, e.Type)
}

// AnthropicClient implements the Client interface against the Anthropic
// Messages API over plain HTTP.
type AnthropicClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicMessagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessagesResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string    `json:"stop_reason"`
	Error      *APIError `json:"error,omitempty"`
}

func newAnthropicClient(cfg config.AIConfig, logger *slog.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}

	return &AnthropicClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "anthropic_client"),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
	}, nil
}

// Generate produces a reply via the Anthropic Messages API.
func (c *AnthropicClient) Generate(ctx context.Context, system string, turns []Turn) (string, error) {
	messages := buildAnthropicMessages(turns)
	if len(messages) == 0 {
		return "", errors.New("no conversation turns to send")
	}

	reqBody := anthropicMessagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  messages,
	}

	var resp anthropicMessagesResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/messages", reqBody, &resp); err != nil {
		return "", err
	}

	if resp.Error != nil {
		return "", resp.Error
	}
	if len(resp.Content) == 0 {
		return "", errors.New("anthropic response contained no content blocks")
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("anthropic response contained no text")
	}

	c.logger.DebugContext(ctx, "Generated anthropic reply", "stop_reason", resp.StopReason, "length", len(text))
	return text, nil
}

// buildAnthropicMessages converts turns into the Messages API shape. The API
// requires the first message to be a user turn and roles to alternate, so
// leading assistant turns are dropped and consecutive same-role turns merged.
func buildAnthropicMessages(turns []Turn) []anthropicMessage {
	for len(turns) > 0 && turns[0].Role == TurnRoleAssistant {
		turns = turns[1:]
	}

	messages := make([]anthropicMessage, 0, len(turns))
	for _, turn := range turns {
		role := "user"
		if turn.Role == TurnRoleAssistant {
			role = "assistant"
		}
		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content += "\n" + turn.Content
			continue
		}
		messages = append(messages, anthropicMessage{Role: role, Content: turn.Content})
	}
	return messages
}

// doRequest handles the HTTP request/response cycle with proper error handling.
func (c *AnthropicClient) doRequest(ctx context.Context, method, path string, body any, response any) error {
	req, err := c.buildRequest(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error *APIError `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == nil {
			return fmt.Errorf("anthropic API error with status %d", resp.StatusCode)
		}
		return errResp.Error
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// buildRequest creates a new HTTP request with the Anthropic auth headers.
func (c *AnthropicClient) buildRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	return req, nil
}
