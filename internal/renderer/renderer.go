// Package renderer selects the headless browser driver.
package renderer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sale-monitor/internal/config"
	"github.com/JakeFAU/sale-monitor/internal/monitor"
	"github.com/JakeFAU/sale-monitor/internal/renderer/headless"
	"github.com/JakeFAU/sale-monitor/internal/renderer/rodbrowser"
)

// Renderer is a monitor.Renderer that owns a process-scoped browser.
type Renderer interface {
	monitor.Renderer
	Close()
}

// New builds the renderer named by cfg.Driver.
func New(cfg config.RendererConfig, logger *zap.Logger) (Renderer, error) {
	nav := cfg.NavTimeout()
	switch cfg.Driver {
	case config.DriverChromedp, "":
		r, err := headless.New(headless.Config{
			RemoteURL:         cfg.RemoteURL,
			UserAgent:         cfg.UserAgent,
			NavigationTimeout: nav,
			ViewportWidth:     cfg.ViewportWidth,
			ViewportHeight:    cfg.ViewportHeight,
			JPEGQuality:       cfg.JPEGQuality,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("chromedp renderer: %w", err)
		}
		return r, nil
	case config.DriverRod:
		return rodbrowser.New(rodbrowser.Config{
			RemoteURL:         cfg.RemoteURL,
			UserAgent:         cfg.UserAgent,
			NavigationTimeout: nav,
			ViewportWidth:     cfg.ViewportWidth,
			ViewportHeight:    cfg.ViewportHeight,
			JPEGQuality:       cfg.JPEGQuality,
			Stealth:           cfg.Stealth,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported renderer driver %q", cfg.Driver)
	}
}
