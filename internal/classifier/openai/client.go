// Package openai describes images with an OpenAI vision chat model.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("openai api key must be set")

// Config configures the OpenAI client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Client implements monitor.Classifier using chat completions with an
// inline image.
type Client struct {
	client    *openai.Client
	modelName string
	hasKey    bool
	logger    *zap.Logger
}

// New creates a new OpenAI client.
func New(cfg Config, logger *zap.Logger) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:    openai.NewClientWithConfig(clientCfg),
		modelName: cfg.Model,
		hasKey:    cfg.APIKey != "",
		logger:    logger.Named("openai"),
	}
}

// Describe sends the prompt and a data-URI JPEG in one user message.
func (c *Client) Describe(ctx context.Context, image []byte, prompt string, maxTokens int) (string, error) {
	if !c.hasKey {
		return "", ErrMissingAPIKey
	}

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		MaxTokens: maxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}

	c.logger.Debug("model responded", zap.String("model", c.modelName), zap.String("id", resp.ID))
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Close is a no-op.
func (c *Client) Close() error { return nil }
