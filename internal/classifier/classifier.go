// Package classifier selects the image-understanding backend.
package classifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sale-monitor/internal/classifier/bedrock"
	"github.com/JakeFAU/sale-monitor/internal/classifier/gemini"
	"github.com/JakeFAU/sale-monitor/internal/classifier/openai"
	"github.com/JakeFAU/sale-monitor/internal/classifier/workersai"
	"github.com/JakeFAU/sale-monitor/internal/config"
	"github.com/JakeFAU/sale-monitor/internal/monitor"
)

// Classifier is a monitor.Classifier that may hold client resources.
type Classifier interface {
	monitor.Classifier
	Close() error
}

// New builds the classifier named by cfg.Provider.
func New(ctx context.Context, cfg config.ClassifierConfig, logger *zap.Logger) (Classifier, error) {
	switch cfg.Provider {
	case config.ProviderWorkersAI, "":
		return workersai.New(workersai.Config{
			AccountID:  cfg.WorkersAI.AccountID,
			APIToken:   cfg.WorkersAI.APIToken,
			Model:      cfg.WorkersAI.Model,
			BaseURL:    cfg.WorkersAI.BaseURL,
			Timeout:    cfg.Timeout(),
			MaxRetries: cfg.WorkersAI.MaxRetries,
		}, nil, logger), nil
	case config.ProviderOpenAI:
		return openai.New(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		}, logger), nil
	case config.ProviderGemini:
		c, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.ProviderBedrock:
		c, err := bedrock.New(ctx, cfg.Bedrock.Region, cfg.Bedrock.ModelID, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported classifier provider %q", cfg.Provider)
	}
}
