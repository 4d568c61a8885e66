package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sale-monitor/internal/api"
	"github.com/JakeFAU/sale-monitor/internal/config"
	"github.com/JakeFAU/sale-monitor/internal/ratelimit"
	"github.com/JakeFAU/sale-monitor/internal/storage/local"
	"github.com/JakeFAU/sale-monitor/internal/storage/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Admin:   config.AdminConfig{Port: 9090},
		Logging: config.LoggingConfig{Level: "error"},
		Monitor: config.MonitorConfig{
			DefaultURL: "https://www.dwr.com",
			MaxTokens:  1000,
		},
		Schedule: config.ScheduleConfig{Enabled: true, Interval: time.Hour},
		Renderer: config.RendererConfig{
			Driver:         config.DriverChromedp,
			NavTimeoutSec:  45,
			ViewportWidth:  800,
			ViewportHeight: 1000,
			JPEGQuality:    80,
		},
		Classifier: config.ClassifierConfig{Provider: config.ProviderWorkersAI, TimeoutSeconds: 60},
		Notifier:   config.NotifierConfig{Transport: config.TransportResend, TimeoutSeconds: 30},
		Storage:    config.StorageConfig{Backend: config.StorageNone, Prefix: "screenshots"},
		Telemetry:  config.TelemetryConfig{ServiceName: "sale-monitor-test"},
	}
}

func TestBuildWiresListeners(t *testing.T) {
	app, err := Build(context.Background(), testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close(context.Background())) })

	require.NotNil(t, app.pipeline)
	require.NotNil(t, app.scheduler)

	rec := httptest.NewRecorder()
	app.apiServer.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/check-sales", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	app.apiServer.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/check-sales", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, api.MissingURLMessage, rec.Body.String())

	rec = httptest.NewRecorder()
	app.adminServer.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildWithoutSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.Enabled = false

	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close(context.Background())) })

	require.Nil(t, app.scheduler)
}

func TestBuildRejectsUnknownClassifier(t *testing.T) {
	cfg := testConfig()
	cfg.Classifier.Provider = "tesseract"

	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "classifier init failed")
}

func TestSetupStorage(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig()
	app, err := NewApp(cfg, zap.NewNop())
	require.NoError(t, err)

	store, checks, err := setupStorage(ctx, app)
	require.NoError(t, err)
	require.Nil(t, store)
	require.Empty(t, checks)

	cfg.Storage.Backend = config.StorageMemory
	store, _, err = setupStorage(ctx, app)
	require.NoError(t, err)
	require.IsType(t, &memory.BlobStore{}, store)

	cfg.Storage.Backend = config.StorageLocal
	cfg.Storage.Local.BaseDir = t.TempDir()
	store, _, err = setupStorage(ctx, app)
	require.NoError(t, err)
	require.IsType(t, &local.BlobStore{}, store)
}

func TestRenderLimiterDisabledByDefault(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	require.Nil(t, renderLimiter(cfg.Renderer, zap.NewNop()))

	cfg.Renderer.PerHostRPS = 0.5
	cfg.Renderer.PerHostBurst = 2
	limiter := renderLimiter(cfg.Renderer, zap.NewNop())
	require.NotNil(t, limiter)
	require.IsType(t, &ratelimit.Limiter{}, limiter)
}

func TestCloseIsIdempotent(t *testing.T) {
	app, err := Build(context.Background(), testConfig())
	require.NoError(t, err)

	require.NoError(t, app.Close(context.Background()))
	require.NoError(t, app.Close(context.Background()))
}
