// Package rodbrowser renders pages with go-rod, optionally with stealth
// evasions applied to every tab.
package rodbrowser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/JakeFAU/sale-monitor/internal/monitor"
)

// Config configures the rod renderer.
type Config struct {
	// RemoteURL is the WebSocket or HTTP debugging URL of an external Chrome.
	// Empty launches a local Chrome via launcher.
	RemoteURL         string
	UserAgent         string
	NavigationTimeout time.Duration
	ViewportWidth     int
	ViewportHeight    int
	JPEGQuality       int
	Stealth           bool
}

func (c *Config) defaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 45 * time.Second
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 800
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 1000
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = 80
	}
}

// Renderer implements monitor.Renderer with a lazily connected browser.
type Renderer struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// New creates a Renderer. Chrome is launched or dialed on first Capture.
func New(cfg Config, logger *zap.Logger) *Renderer {
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{cfg: cfg, logger: logger.Named("renderer")}
}

// Capture opens a tab, waits for DOMContentLoaded, load and network idle,
// and returns a viewport-sized JPEG. The tab is closed on every return path.
func (r *Renderer) Capture(ctx context.Context, url string) (monitor.Screenshot, error) {
	b, err := r.connect()
	if err != nil {
		return monitor.Screenshot{}, monitor.NavigationError(err)
	}

	var tab *rod.Page
	if r.cfg.Stealth {
		tab, err = stealth.Page(b)
	} else {
		tab, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return monitor.Screenshot{}, monitor.NavigationError(fmt.Errorf("create tab: %w", err))
	}
	defer func() {
		if cerr := tab.Close(); cerr != nil {
			r.logger.Debug("close tab", zap.Error(cerr))
		}
	}()

	navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavigationTimeout)
	defer cancel()
	p := tab.Context(navCtx)

	if err := r.prepare(p); err != nil {
		return monitor.Screenshot{}, monitor.NavigationError(err)
	}

	waitDOM := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	waitIdle := p.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	start := time.Now()
	if err := p.Navigate(url); err != nil {
		return monitor.Screenshot{}, monitor.NavigationError(fmt.Errorf("navigate %s: %w", url, err))
	}
	if err := p.WaitLoad(); err != nil {
		return monitor.Screenshot{}, monitor.NavigationError(fmt.Errorf("wait load %s: %w", url, err))
	}
	waitDOM()
	waitIdle()
	if err := navCtx.Err(); err != nil {
		return monitor.Screenshot{}, monitor.NavigationError(fmt.Errorf("wait network idle %s: %w", url, err))
	}
	r.logger.Debug("page settled", zap.String("url", url), zap.Duration("elapsed", time.Since(start)))

	quality := r.cfg.JPEGQuality
	data, err := p.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &quality,
	})
	if err != nil {
		return monitor.Screenshot{}, monitor.CaptureError(fmt.Errorf("capture screenshot: %w", err))
	}
	if len(data) == 0 {
		return monitor.Screenshot{}, monitor.CaptureError(fmt.Errorf("capture screenshot: empty image"))
	}

	return monitor.Screenshot{
		Data:        data,
		ContentType: "image/jpeg",
		Width:       r.cfg.ViewportWidth,
		Height:      r.cfg.ViewportHeight,
	}, nil
}

func (r *Renderer) prepare(p *rod.Page) error {
	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.cfg.ViewportWidth,
		Height:            r.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	if r.cfg.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.cfg.UserAgent}); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
	}
	return nil
}

func (r *Renderer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	wsURL, err := r.controlURL()
	if err != nil {
		return nil, err
	}
	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		r.cleanupLocked()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	r.browser = b
	r.logger.Info("browser connected", zap.Bool("remote", r.cfg.RemoteURL != ""), zap.Bool("stealth", r.cfg.Stealth))
	return b, nil
}

func (r *Renderer) controlURL() (string, error) {
	if r.cfg.RemoteURL != "" {
		if strings.HasPrefix(r.cfg.RemoteURL, "ws://") || strings.HasPrefix(r.cfg.RemoteURL, "wss://") {
			return r.cfg.RemoteURL, nil
		}
		u, err := launcher.ResolveURL(r.cfg.RemoteURL)
		if err != nil {
			return "", fmt.Errorf("resolve remote browser %s: %w", r.cfg.RemoteURL, err)
		}
		return u, nil
	}

	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("hide-scrollbars")
	u, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("launch chrome: %w", err)
	}
	r.lnch = l
	return u, nil
}

// Close disconnects the browser and stops any locally launched Chrome.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanupLocked()
}

func (r *Renderer) cleanupLocked() {
	// A remote browser outlives this process.
	if r.browser != nil && r.lnch != nil {
		if err := r.browser.Close(); err != nil {
			r.logger.Debug("close browser", zap.Error(err))
		}
	}
	r.browser = nil
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
}
