// Package gemini describes images with a Google Gemini model.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("gemini api key must be set")

// Client implements monitor.Classifier using Gemini multimodal prompts.
type Client struct {
	client    *genai.Client
	modelName string
	logger    *zap.Logger
}

// New creates a Gemini client. An empty apiKey yields a client whose
// Describe always fails, so a missing secret surfaces per run.
func New(ctx context.Context, apiKey, modelName string, logger *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{modelName: modelName, logger: logger.Named("gemini")}
	if apiKey == "" {
		return c, nil
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.client = client
	return c, nil
}

// Describe sends the JPEG and prompt as one multimodal request.
func (c *Client) Describe(ctx context.Context, image []byte, prompt string, maxTokens int) (string, error) {
	if c.client == nil {
		return "", ErrMissingAPIKey
	}
	model := c.client.GenerativeModel(c.modelName)
	model.SetMaxOutputTokens(int32(maxTokens)) //nolint:gosec // bounded by config validation

	resp, err := model.GenerateContent(ctx, genai.ImageData("jpeg", image), genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("empty response from Gemini")
	}
	c.logger.Debug("model responded", zap.String("model", c.modelName), zap.Int("description_len", len(text)))
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}

// Close closes the Gemini client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
