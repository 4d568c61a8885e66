// Package workersai describes images with a Cloudflare Workers AI vision
// model.
package workersai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudflare/cloudflare-go/v4"
	"github.com/cloudflare/cloudflare-go/v4/option"
	"go.uber.org/zap"
)

// DefaultModel is the llava model the monitor has always used.
const DefaultModel = "@cf/llava-hf/llava-1.5-7b-hf"

// DefaultBaseURL is the public Cloudflare API root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4/"

// ErrMissingCredentials is returned when the account or token is unset.
var ErrMissingCredentials = errors.New("workers ai account id and api token must be set")

// Config configures the Workers AI client.
type Config struct {
	AccountID string
	APIToken  string
	Model     string
	BaseURL   string
	Timeout   time.Duration
	// MaxRetries bounds SDK retries on 408, 429 and 5xx responses.
	MaxRetries int
}

// Client implements monitor.Classifier.
type Client struct {
	cfg    Config
	api    *cloudflare.Client
	logger *zap.Logger
}

// runRequest is the image-to-text input. The model takes the image as an
// array of byte values.
type runRequest struct {
	Image     []int  `json:"image"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

// MarshalJSON lets the SDK send runRequest as the request body.
func (r runRequest) MarshalJSON() ([]byte, error) {
	type plain runRequest
	return json.Marshal(plain(r)) //nolint:wrapcheck // encoding/json error is already descriptive
}

type runResponse struct {
	Result struct {
		Description string `json:"description"`
	} `json:"result"`
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// New builds a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	api := cloudflare.NewClient(
		option.WithAPIToken(cfg.APIToken),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	)
	return &Client{cfg: cfg, api: api, logger: logger.Named("workersai")}
}

// Describe runs the vision model over image and returns its description.
func (c *Client) Describe(ctx context.Context, image []byte, prompt string, maxTokens int) (string, error) {
	if c.cfg.AccountID == "" || c.cfg.APIToken == "" {
		return "", ErrMissingCredentials
	}

	pixels := make([]int, len(image))
	for i, b := range image {
		pixels[i] = int(b)
	}

	// The generated AI.Run response union has no image-to-text variant, so
	// the call goes through the client's raw Post on the same route.
	var out runResponse
	path := fmt.Sprintf("accounts/%s/ai/run/%s", c.cfg.AccountID, c.cfg.Model)
	err := c.api.Post(ctx, path, runRequest{Image: pixels, Prompt: prompt, MaxTokens: maxTokens}, &out)
	if err != nil {
		var apiErr *cloudflare.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("workers ai returned %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("workers ai request: %w", err)
	}
	if len(out.Errors) > 0 {
		return "", fmt.Errorf("workers ai error %d: %s", out.Errors[0].Code, out.Errors[0].Message)
	}
	c.logger.Debug("model responded", zap.String("model", c.cfg.Model), zap.Int("description_len", len(out.Result.Description)))
	return out.Result.Description, nil
}

// Close is a no-op; the SDK client holds no resources.
func (c *Client) Close() error { return nil }
