// Package resend delivers report emails through the Resend API.
package resend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	resendsdk "github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/sale-monitor/internal/monitor"
)

// DefaultBaseURL is the public Resend endpoint.
const DefaultBaseURL = "https://api.resend.com/"

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("resend api key must be set")

// Config configures the Resend client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client implements monitor.Notifier.
type Client struct {
	cfg    Config
	sdk    *resendsdk.Client
	logger *zap.Logger
}

// New builds a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sdk := resendsdk.NewCustomClient(httpClient, cfg.APIKey)
	if base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/"); err == nil {
		sdk.BaseURL = base
	} else {
		logger.Warn("invalid resend base url, using default", zap.String("base_url", cfg.BaseURL), zap.Error(err))
	}
	return &Client{cfg: cfg, sdk: sdk, logger: logger.Named("resend")}
}

// Send submits msg to the emails endpoint. Any non-2xx status is an error.
func (c *Client) Send(ctx context.Context, msg monitor.EmailMessage) error {
	if c.cfg.APIKey == "" {
		return ErrMissingAPIKey
	}
	if msg.To == "" {
		return fmt.Errorf("email recipient must be set")
	}

	params := &resendsdk.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
	}
	for _, a := range msg.Attachments {
		// The SDK re-encodes attachment bytes as base64 on the wire.
		content, err := base64.StdEncoding.DecodeString(a.Content)
		if err != nil {
			return fmt.Errorf("decode attachment %s: %w", a.Filename, err)
		}
		params.Attachments = append(params.Attachments, &resendsdk.Attachment{
			Filename: a.Filename,
			Content:  content,
		})
	}

	sent, err := c.sdk.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	c.logger.Debug("email accepted", zap.String("id", sent.Id), zap.String("subject", msg.Subject))
	return nil
}
