// Package notifier selects the email transport.
package notifier

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sale-monitor/internal/config"
	"github.com/JakeFAU/sale-monitor/internal/monitor"
	"github.com/JakeFAU/sale-monitor/internal/notifier/resend"
	"github.com/JakeFAU/sale-monitor/internal/notifier/smtp"
)

// New builds the notifier named by cfg.Transport.
func New(cfg config.NotifierConfig, logger *zap.Logger) (monitor.Notifier, error) {
	switch cfg.Transport {
	case config.TransportResend, "":
		return resend.New(resend.Config{
			APIKey:  cfg.Resend.APIKey,
			BaseURL: cfg.Resend.BaseURL,
			Timeout: cfg.Timeout(),
		}, nil, logger), nil
	case config.TransportSMTP:
		return smtp.New(smtp.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			TLS:      cfg.SMTP.TLS,
			Timeout:  cfg.Timeout(),
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported notifier transport %q", cfg.Transport)
	}
}
