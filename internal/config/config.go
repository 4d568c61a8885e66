// Package config loads and validates sale monitor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Renderer   RendererConfig   `mapstructure:"renderer"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Notifier   NotifierConfig   `mapstructure:"notifier"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// ServerConfig controls the public HTTP trigger.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AdminConfig controls the health/metrics listener. Port 0 disables it.
type AdminConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MonitorConfig holds pipeline-level settings.
type MonitorConfig struct {
	DefaultURL string `mapstructure:"default_url"`
	Prompt     string `mapstructure:"prompt"`
	MaxTokens  int    `mapstructure:"max_tokens"`
}

// ScheduleConfig drives the timer trigger.
type ScheduleConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// RendererConfig configures the headless browser.
type RendererConfig struct {
	Driver         string `mapstructure:"driver"`
	RemoteURL      string `mapstructure:"remote_url"`
	NavTimeoutSec  int    `mapstructure:"nav_timeout_seconds"`
	ViewportWidth  int    `mapstructure:"viewport_width"`
	ViewportHeight int    `mapstructure:"viewport_height"`
	JPEGQuality    int    `mapstructure:"jpeg_quality"`
	UserAgent      string `mapstructure:"user_agent"`
	Stealth        bool   `mapstructure:"stealth"`
	// PerHostRPS throttles page loads per target host; 0 disables it.
	PerHostRPS   float64 `mapstructure:"per_host_rps"`
	PerHostBurst int     `mapstructure:"per_host_burst"`
}

// ClassifierConfig selects and configures the image-understanding backend.
type ClassifierConfig struct {
	Provider       string          `mapstructure:"provider"`
	TimeoutSeconds int             `mapstructure:"timeout_seconds"`
	WorkersAI      WorkersAIConfig `mapstructure:"workersai"`
	OpenAI         OpenAIConfig    `mapstructure:"openai"`
	Gemini         GeminiConfig    `mapstructure:"gemini"`
	Bedrock        BedrockConfig   `mapstructure:"bedrock"`
}

// WorkersAIConfig configures the Cloudflare Workers AI REST backend.
type WorkersAIConfig struct {
	AccountID string `mapstructure:"account_id"`
	APIToken  string `mapstructure:"api_token"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	// MaxRetries bounds SDK retries on throttling and 5xx responses.
	MaxRetries int `mapstructure:"max_retries"`
}

// OpenAIConfig configures the OpenAI vision backend.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// BedrockConfig configures the Amazon Bedrock backend.
type BedrockConfig struct {
	Region  string `mapstructure:"region"`
	ModelID string `mapstructure:"model_id"`
}

// NotifierConfig configures report delivery.
type NotifierConfig struct {
	Transport      string       `mapstructure:"transport"`
	From           string       `mapstructure:"from"`
	To             string       `mapstructure:"to"`
	TimeoutSeconds int          `mapstructure:"timeout_seconds"`
	Resend         ResendConfig `mapstructure:"resend"`
	SMTP           SMTPConfig   `mapstructure:"smtp"`
}

// ResendConfig configures the transactional email API.
type ResendConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// SMTPConfig configures delivery through an SMTP relay.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      string `mapstructure:"tls"`
}

// StorageConfig selects where screenshot copies are written, if anywhere.
type StorageConfig struct {
	Backend string             `mapstructure:"backend"`
	Bucket  string             `mapstructure:"bucket"`
	Prefix  string             `mapstructure:"prefix"`
	Local   LocalStorageConfig `mapstructure:"local"`
}

// LocalStorageConfig configures the filesystem backend.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	ProjectID      string `mapstructure:"project_id"`
}

// Renderer drivers.
const (
	DriverChromedp = "chromedp"
	DriverRod      = "rod"
)

// Classifier providers.
const (
	ProviderWorkersAI = "workersai"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderBedrock   = "bedrock"
)

// Notifier transports.
const (
	TransportResend = "resend"
	TransportSMTP   = "smtp"
)

// Storage backends.
const (
	StorageNone   = "none"
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SALEMONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindAliases(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("admin.port", 9090)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("monitor.default_url", "https://www.dwr.com")
	v.SetDefault("monitor.max_tokens", 1000)
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.interval", 24*time.Hour)
	v.SetDefault("schedule.run_on_start", false)
	v.SetDefault("renderer.driver", DriverChromedp)
	v.SetDefault("renderer.nav_timeout_seconds", 45)
	v.SetDefault("renderer.viewport_width", 800)
	v.SetDefault("renderer.viewport_height", 1000)
	v.SetDefault("renderer.jpeg_quality", 80)
	v.SetDefault("renderer.stealth", false)
	v.SetDefault("renderer.per_host_rps", 0.0)
	v.SetDefault("renderer.per_host_burst", 1)
	v.SetDefault("classifier.provider", ProviderWorkersAI)
	v.SetDefault("classifier.timeout_seconds", 60)
	v.SetDefault("classifier.workersai.model", "@cf/llava-hf/llava-1.5-7b-hf")
	v.SetDefault("classifier.workersai.base_url", "https://api.cloudflare.com/client/v4/")
	v.SetDefault("classifier.workersai.max_retries", 2)
	v.SetDefault("classifier.openai.model", "gpt-4o-mini")
	v.SetDefault("classifier.gemini.model", "gemini-1.5-flash")
	v.SetDefault("classifier.bedrock.region", "us-east-1")
	v.SetDefault("classifier.bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("notifier.transport", TransportResend)
	v.SetDefault("notifier.from", "onboarding@resend.dev")
	v.SetDefault("notifier.timeout_seconds", 30)
	v.SetDefault("notifier.resend.base_url", "https://api.resend.com/")
	v.SetDefault("notifier.smtp.port", 587)
	v.SetDefault("notifier.smtp.tls", "starttls")
	v.SetDefault("storage.backend", StorageNone)
	v.SetDefault("storage.prefix", "screenshots")
	v.SetDefault("telemetry.service_name", "sale-monitor")
	v.SetDefault("telemetry.tracing_enabled", false)
}

// bindAliases also accepts the unprefixed variable names (RESEND_API_KEY, PORT and friends).
func bindAliases(v *viper.Viper) error {
	aliases := map[string][]string{
		"notifier.to":               {"SALEMONITOR_NOTIFIER_TO", "MY_EMAIL_ADDRESS"},
		"notifier.resend.api_key":   {"SALEMONITOR_NOTIFIER_RESEND_API_KEY", "RESEND_API_KEY"},
		"classifier.openai.api_key": {"SALEMONITOR_CLASSIFIER_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"classifier.gemini.api_key": {"SALEMONITOR_CLASSIFIER_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"server.port":               {"SALEMONITOR_SERVER_PORT", "PORT"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits. Credentials are
// not checked here; adapters report them missing when they are used.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Admin.Port < 0 {
		return fmt.Errorf("admin.port must be >= 0")
	}
	if c.Admin.Port != 0 && c.Admin.Port == c.Server.Port {
		return fmt.Errorf("admin.port must differ from server.port")
	}
	if strings.TrimSpace(c.Monitor.DefaultURL) == "" {
		return fmt.Errorf("monitor.default_url must be set")
	}
	if c.Monitor.MaxTokens <= 0 {
		return fmt.Errorf("monitor.max_tokens must be > 0")
	}
	if c.Schedule.Enabled && c.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be > 0 when the schedule is enabled")
	}
	if err := c.Renderer.validate(); err != nil {
		return err
	}
	switch c.Classifier.Provider {
	case ProviderWorkersAI, ProviderOpenAI, ProviderGemini, ProviderBedrock:
	default:
		return fmt.Errorf("classifier.provider %q is not supported", c.Classifier.Provider)
	}
	switch c.Notifier.Transport {
	case TransportResend, TransportSMTP:
	default:
		return fmt.Errorf("notifier.transport %q is not supported", c.Notifier.Transport)
	}
	switch c.Storage.Backend {
	case StorageNone, StorageMemory:
	case StorageLocal:
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir must be set for the local backend")
		}
	case StorageGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	return nil
}

func (r RendererConfig) validate() error {
	switch r.Driver {
	case DriverChromedp, DriverRod:
	default:
		return fmt.Errorf("renderer.driver %q is not supported", r.Driver)
	}
	if r.ViewportWidth <= 0 || r.ViewportHeight <= 0 {
		return fmt.Errorf("renderer.viewport_width and renderer.viewport_height must be > 0")
	}
	if r.JPEGQuality < 1 || r.JPEGQuality > 100 {
		return fmt.Errorf("renderer.jpeg_quality must be between 1 and 100")
	}
	if r.PerHostRPS < 0 {
		return fmt.Errorf("renderer.per_host_rps must be >= 0")
	}
	return nil
}

// NavTimeout converts the navigation budget to a duration.
func (r RendererConfig) NavTimeout() time.Duration {
	return time.Duration(r.NavTimeoutSec) * time.Second
}

// Timeout converts the classifier HTTP budget to a duration.
func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout converts the notifier HTTP budget to a duration.
func (n NotifierConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}
