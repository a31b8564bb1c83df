// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. It is loaded once,
// before any pool activity, and treated as read-only afterwards.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Pool       PoolConfig       `mapstructure:"pool" yaml:"pool"`
	Guard      GuardConfig      `mapstructure:"guard" yaml:"guard"`
	Deployment DeploymentConfig `mapstructure:"deployment" yaml:"deployment"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Viewport is a browser window size in CSS pixels.
type Viewport struct {
	Width  int64 `mapstructure:"width" yaml:"width"`
	Height int64 `mapstructure:"height" yaml:"height"`
}

// BrowserConfig holds settings for the browser instances handed out by the pool.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string `mapstructure:"args" yaml:"args"`
	// HeadlessViewport and HeadedViewport are applied right after a driver is
	// created. The driver default (800x600) is too small for modern themes.
	HeadlessViewport Viewport `mapstructure:"headless_viewport" yaml:"headless_viewport"`
	HeadedViewport   Viewport `mapstructure:"headed_viewport" yaml:"headed_viewport"`
	// ScrollIntoView is the `block` argument passed to scrollIntoView before
	// every click ("start", "center", "end", "nearest"). Empty disables the hook.
	ScrollIntoView string `mapstructure:"scroll_into_view" yaml:"scroll_into_view"`
	// OnloadScripts are evaluated in every new document, after the built-in
	// completion counter script.
	OnloadScripts []string `mapstructure:"onload_scripts" yaml:"onload_scripts"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout"`
}

// Viewport returns the window size that matches the headless mode.
func (b BrowserConfig) Viewport() Viewport {
	if b.Headless {
		return b.HeadlessViewport
	}
	return b.HeadedViewport
}

// PoolConfig tunes the session pool.
type PoolConfig struct {
	CreateRetries int `mapstructure:"create_retries" yaml:"create_retries"`
}

// GuardConfig configures the completion guard and the GUI waits.
type GuardConfig struct {
	AjaxTimeout         time.Duration `mapstructure:"ajax_timeout" yaml:"ajax_timeout"`
	HTTPTimeout         time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`
	GUITimeout          time.Duration `mapstructure:"gui_timeout" yaml:"gui_timeout"`
	DocumentLoadTimeout time.Duration `mapstructure:"document_load_timeout" yaml:"document_load_timeout"`
	PollInterval        time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// DeploymentConfig describes where the application under test is served.
type DeploymentConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pfgo")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.headless_viewport.width", 1920)
	v.SetDefault("browser.headless_viewport.height", 1080)
	v.SetDefault("browser.headed_viewport.width", 1280)
	v.SetDefault("browser.headed_viewport.height", 1000)
	v.SetDefault("browser.scroll_into_view", "")
	v.SetDefault("browser.startup_timeout", "30s")

	// -- Pool --
	v.SetDefault("pool.create_retries", 3)

	// -- Guard --
	v.SetDefault("guard.ajax_timeout", "2s")
	v.SetDefault("guard.http_timeout", "2s")
	v.SetDefault("guard.gui_timeout", "2s")
	v.SetDefault("guard.document_load_timeout", "15s")
	v.SetDefault("guard.poll_interval", "100ms")

	// -- Deployment --
	v.SetDefault("deployment.base_url", "http://localhost:8080")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The headless flag is commonly flipped from CI without touching the file.
	_ = v.BindEnv("browser.headless", "PFGO_BROWSER_HEADLESS", "WEBDRIVER_HEADLESS")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Pool.CreateRetries <= 0 {
		return fmt.Errorf("pool.create_retries must be a positive integer")
	}
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if err := c.Guard.Validate(); err != nil {
		return fmt.Errorf("guard configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the BrowserConfig settings.
func (b *BrowserConfig) Validate() error {
	vp := b.Viewport()
	if vp.Width <= 0 || vp.Height <= 0 {
		return fmt.Errorf("viewport dimensions must be positive, got %dx%d", vp.Width, vp.Height)
	}
	switch b.ScrollIntoView {
	case "", "start", "center", "end", "nearest":
	default:
		return fmt.Errorf("scroll_into_view must be one of start, center, end, nearest (got %q)", b.ScrollIntoView)
	}
	return nil
}

// Validate checks the GuardConfig settings.
func (g *GuardConfig) Validate() error {
	if g.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if g.AjaxTimeout <= 0 || g.HTTPTimeout <= 0 {
		return fmt.Errorf("ajax_timeout and http_timeout must be positive durations")
	}
	if g.DocumentLoadTimeout <= 0 {
		return fmt.Errorf("document_load_timeout must be a positive duration")
	}
	if g.GUITimeout <= 0 {
		return fmt.Errorf("gui_timeout must be a positive duration")
	}
	return nil
}
