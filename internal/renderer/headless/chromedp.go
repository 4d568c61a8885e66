// Package headless renders pages with chromedp and headless Chrome.
package headless

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/sale-monitor/internal/monitor"
)

// Lifecycle events that must all fire before the page counts as settled.
const (
	EventDOMContentLoaded = "DOMContentLoaded"
	EventNetworkIdle      = "networkIdle"
	EventLoad             = "load"
)

var settledEvents = []string{EventDOMContentLoaded, EventNetworkIdle, EventLoad}

// Config controls the behavior of the chromedp renderer.
type Config struct {
	// RemoteURL points at an already running browser (ws:// or http://).
	// When empty a local Chrome process is launched.
	RemoteURL         string
	UserAgent         string
	NavigationTimeout time.Duration
	ViewportWidth     int
	ViewportHeight    int
	JPEGQuality       int
}

// Renderer implements monitor.Renderer using chromedp.
type Renderer struct {
	cfg         Config
	logger      *zap.Logger
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New creates a renderer backed by a process-scoped browser allocator.
func New(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.ViewportWidth < 0 || cfg.ViewportHeight < 0 {
		return nil, fmt.Errorf("viewport must be non-negative")
	}
	if cfg.JPEGQuality < 0 || cfg.JPEGQuality > 100 {
		return nil, fmt.Errorf("jpeg quality must be between 1 and 100")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = withDefaults(cfg)

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions()...)
	}

	return &Renderer{
		cfg:         cfg,
		logger:      logger.Named("renderer"),
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

func withDefaults(cfg Config) Config {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.ViewportWidth == 0 {
		cfg.ViewportWidth = 800
	}
	if cfg.ViewportHeight == 0 {
		cfg.ViewportHeight = 1000
	}
	if cfg.JPEGQuality == 0 {
		cfg.JPEGQuality = 80
	}
	return cfg
}

func allocatorOptions() []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
}

// Close shuts down the browser allocator.
func (r *Renderer) Close() {
	r.allocCancel()
}

// Capture opens a fresh tab, waits for the page to settle and returns a
// viewport-sized JPEG. The tab is closed on every return path.
func (r *Renderer) Capture(ctx context.Context, url string) (monitor.Screenshot, error) {
	tabCtx, tabCancel := chromedp.NewContext(r.allocator)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	navCtx, cancel := context.WithTimeout(tabCtx, r.cfg.NavigationTimeout)
	defer cancel()

	tracker := newLifecycleTracker()
	meta := &documentMeta{}
	chromedp.ListenTarget(navCtx, func(ev any) {
		tracker.observe(ev)
		meta.observe(ev)
	})

	start := time.Now()
	if err := chromedp.Run(navCtx,
		r.setupAction(),
		chromedp.Navigate(url),
		r.waitSettled(tracker),
	); err != nil {
		return monitor.Screenshot{}, monitor.NavigationError(fmt.Errorf("navigate %s: %w", url, err))
	}
	r.logger.Debug("page settled",
		zap.String("url", url),
		zap.Int("status", meta.status()),
		zap.Duration("elapsed", time.Since(start)),
	)

	var data []byte
	if err := chromedp.Run(navCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		data, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatJpeg).
			WithQuality(int64(r.cfg.JPEGQuality)).
			Do(ctx)
		return err
	})); err != nil {
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

func (r *Renderer) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		if err := emulation.SetDeviceMetricsOverride(int64(r.cfg.ViewportWidth), int64(r.cfg.ViewportHeight), 1, false).Do(ctx); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// waitSettled blocks until the main frame's current document has fired every
// settled event.
func (r *Renderer) waitSettled(tracker *lifecycleTracker) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return fmt.Errorf("get frame tree: %w", err)
		}
		if tree == nil || tree.Frame == nil {
			return fmt.Errorf("page has no main frame")
		}
		return tracker.wait(ctx, tree.Frame.LoaderID, settledEvents...)
	})
}

// lifecycleTracker records page lifecycle events per document loader.
type lifecycleTracker struct {
	mu      sync.Mutex
	seen    map[cdp.LoaderID]map[string]struct{}
	changed chan struct{}
}

func newLifecycleTracker() *lifecycleTracker {
	return &lifecycleTracker{
		seen:    make(map[cdp.LoaderID]map[string]struct{}),
		changed: make(chan struct{}, 1),
	}
}

func (t *lifecycleTracker) observe(ev any) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}
	t.mu.Lock()
	names, ok := t.seen[e.LoaderID]
	if !ok {
		names = make(map[string]struct{})
		t.seen[e.LoaderID] = names
	}
	names[e.Name] = struct{}{}
	t.mu.Unlock()

	select {
	case t.changed <- struct{}{}:
	default:
	}
}

func (t *lifecycleTracker) complete(loader cdp.LoaderID, want ...string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := t.seen[loader]
	for _, name := range want {
		if _, ok := names[name]; !ok {
			return false
		}
	}
	return true
}

func (t *lifecycleTracker) wait(ctx context.Context, loader cdp.LoaderID, want ...string) error {
	for {
		if t.complete(loader, want...) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %v: %w", want, ctx.Err())
		case <-t.changed:
		}
	}
}

// documentMeta keeps the HTTP status of the main document for logging.
type documentMeta struct {
	mu   sync.RWMutex
	code int
}

func (m *documentMeta) observe(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.code = int(resp.Response.Status)
	m.mu.Unlock()
}

func (m *documentMeta) status() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.code
}
