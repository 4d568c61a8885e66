// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/sale-monitor/internal/api"
	"github.com/JakeFAU/sale-monitor/internal/classifier"
	"github.com/JakeFAU/sale-monitor/internal/clock/system"
	"github.com/JakeFAU/sale-monitor/internal/config"
	"github.com/JakeFAU/sale-monitor/internal/id/uuid"
	"github.com/JakeFAU/sale-monitor/internal/logging"
	"github.com/JakeFAU/sale-monitor/internal/metrics"
	"github.com/JakeFAU/sale-monitor/internal/monitor"
	"github.com/JakeFAU/sale-monitor/internal/notifier"
	"github.com/JakeFAU/sale-monitor/internal/pipeline"
	"github.com/JakeFAU/sale-monitor/internal/ratelimit"
	"github.com/JakeFAU/sale-monitor/internal/renderer"
	"github.com/JakeFAU/sale-monitor/internal/scheduler"
	gcsstorage "github.com/JakeFAU/sale-monitor/internal/storage/gcs"
	localstorage "github.com/JakeFAU/sale-monitor/internal/storage/local"
	memorystorage "github.com/JakeFAU/sale-monitor/internal/storage/memory"
	"github.com/JakeFAU/sale-monitor/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg            *config.Config
	logger         *zap.Logger
	pipeline       *pipeline.Pipeline
	apiServer      *api.Server
	adminServer    *api.AdminServer
	scheduler      *scheduler.Scheduler
	renderer       renderer.Renderer
	classifier     classifier.Classifier
	storage        *storage.Client
	tracerShutdown func(context.Context) error
	closeOnce      sync.Once
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	// Log only non-sensitive config fields.
	type SanitizedConfig struct {
		ServerPort       int    `json:"server_port"`
		AdminPort        int    `json:"admin_port"`
		DefaultURL       string `json:"default_url"`
		Renderer         string `json:"renderer"`
		Classifier       string `json:"classifier"`
		Notifier         string `json:"notifier"`
		Storage          string `json:"storage"`
		ScheduleEnabled  bool   `json:"schedule_enabled"`
		ScheduleInterval string `json:"schedule_interval"`
	}
	safeCfg := SanitizedConfig{
		ServerPort:       cfg.Server.Port,
		AdminPort:        cfg.Admin.Port,
		DefaultURL:       cfg.Monitor.DefaultURL,
		Renderer:         cfg.Renderer.Driver,
		Classifier:       cfg.Classifier.Provider,
		Notifier:         cfg.Notifier.Transport,
		Storage:          cfg.Storage.Backend,
		ScheduleEnabled:  cfg.Schedule.Enabled,
		ScheduleInterval: cfg.Schedule.Interval.String(),
	}
	logger.Info("Creating application", zap.Any("config", safeCfg))
	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Run serves the trigger and admin listeners and the timer until the context
// is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	servers := []*http.Server{{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}}
	if a.cfg.Admin.Port != 0 {
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Admin.Port),
			Handler:           a.adminServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	for _, srv := range servers {
		go func(srv *http.Server) {
			a.logger.Info("http server started", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server error", zap.String("addr", srv.Addr), zap.Error(err))
				stop()
			}
		}(srv)
	}

	var wg sync.WaitGroup
	if a.scheduler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.scheduler.Start(ctx)
		}()
	}
	a.adminServer.SetReady(true)

	<-ctx.Done()
	a.logger.Info("shutdown initiated")
	a.adminServer.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}
	wg.Wait()

	return a.Close(shutdownCtx)
}

// Check performs one scheduled run against url, or the default URL when url
// is empty, and returns its status report.
func (a *App) Check(ctx context.Context, url string) monitor.StatusReport {
	req := monitor.Request{URL: url, Trigger: monitor.TriggerScheduled}
	return a.pipeline.Run(ctx, req).Report()
}

// Close gracefully shuts down the application. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.closeInfrastructure()
		a.closeObservability(ctx)
		a.logger.Info("shutdown complete")
	})
	return nil
}

func (a *App) closeInfrastructure() {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.classifier != nil {
		if err := a.classifier.Close(); err != nil {
			a.logger.Warn("classifier close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	// Sync fails on stdout/stderr on some platforms; nothing useful to do about it.
	_ = a.logger.Sync()
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	if err := app.build(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	tp, err := telemetry.InitTracerProvider(ctx, a.cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}
	a.tracerShutdown = tp.Shutdown
	metrics.Init()

	a.logger.Info("building application dependencies")

	a.renderer, err = renderer.New(a.cfg.Renderer, a.logger)
	if err != nil {
		return fmt.Errorf("renderer init failed: %w", err)
	}
	a.logger.Info("renderer configured",
		zap.String("driver", a.cfg.Renderer.Driver),
		zap.Bool("remote", a.cfg.Renderer.RemoteURL != ""),
		zap.Duration("nav_timeout", a.cfg.Renderer.NavTimeout()),
	)

	a.classifier, err = classifier.New(ctx, a.cfg.Classifier, a.logger.Named("classifier"))
	if err != nil {
		return fmt.Errorf("classifier init failed: %w", err)
	}
	a.logger.Info("classifier configured", zap.String("provider", a.cfg.Classifier.Provider))

	notify, err := notifier.New(a.cfg.Notifier, a.logger.Named("notifier"))
	if err != nil {
		return fmt.Errorf("notifier init failed: %w", err)
	}
	a.logger.Info("notifier configured", zap.String("transport", a.cfg.Notifier.Transport))

	blobStore, checks, err := setupStorage(ctx, a)
	if err != nil {
		return err
	}

	pipelineCfg := pipeline.Config{
		DefaultURL:    a.cfg.Monitor.DefaultURL,
		Prompt:        a.cfg.Monitor.Prompt,
		MaxTokens:     a.cfg.Monitor.MaxTokens,
		From:          a.cfg.Notifier.From,
		To:            a.cfg.Notifier.To,
		StoragePrefix: a.cfg.Storage.Prefix,
		Limiter:       renderLimiter(a.cfg.Renderer, a.logger),
	}

	a.pipeline = pipeline.New(
		a.renderer,
		a.classifier,
		notify,
		blobStore,
		system.New(),
		uuid.New(),
		pipelineCfg,
		a.logger.Named("pipeline"),
	)

	a.apiServer = api.NewServer(a.pipeline, a.logger)
	a.adminServer = api.NewAdminServer(checks, a.logger)
	if a.cfg.Schedule.Enabled {
		a.scheduler = scheduler.New(a.pipeline, a.cfg.Schedule.Interval, a.cfg.Schedule.RunOnStart, a.logger)
	} else {
		a.logger.Info("timer trigger disabled")
	}
	return nil
}

// renderLimiter returns the per-host throttle, or nil when it is disabled so
// the pipeline keeps no per-host state at all.
func renderLimiter(cfg config.RendererConfig, logger *zap.Logger) pipeline.Limiter {
	limitCfg := ratelimit.Config{
		DefaultRPS:   cfg.PerHostRPS,
		DefaultBurst: cfg.PerHostBurst,
	}
	if !limitCfg.Enabled() {
		return nil
	}
	logger.Info("render throttle enabled",
		zap.Float64("per_host_rps", limitCfg.DefaultRPS),
		zap.Int("per_host_burst", limitCfg.DefaultBurst),
	)
	return ratelimit.New(limitCfg)
}

// setupStorage returns the optional screenshot store. A nil store keeps
// screenshots in memory for the life of a run only.
func setupStorage(ctx context.Context, app *App) (monitor.BlobStore, map[string]api.ReadinessCheck, error) {
	checks := map[string]api.ReadinessCheck{}
	switch app.cfg.Storage.Backend {
	case config.StorageGCS:
		app.logger.Info("using GCS storage backend")
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		blobStore, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: app.cfg.Storage.Bucket,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		bucket := app.cfg.Storage.Bucket
		checks["storage"] = func(ctx context.Context) error {
			if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
				return fmt.Errorf("bucket %s: %w", bucket, err)
			}
			return nil
		}
		app.logger.Debug("GCS storage backend", zap.String("bucket", bucket))
		return blobStore, checks, nil
	case config.StorageLocal:
		app.logger.Info("using local storage backend")
		blobStore, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Storage.Local.BaseDir})
		if err != nil {
			return nil, nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Debug("local storage backend", zap.String("path", app.cfg.Storage.Local.BaseDir))
		return blobStore, checks, nil
	case config.StorageMemory:
		app.logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), checks, nil
	default:
		app.logger.Info("screenshot copies disabled")
		return nil, checks, nil
	}
}
