// Package config holds the application configuration, loaded through viper
// from file, environment (WEBPILOT_ prefix) and flags.
package config

import (
	"fmt"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the root of the application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
}

// LoggerConfig controls the zap logger bootstrap.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig assigns terminal colors to console log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// AgentConfig controls the orchestration loop.
type AgentConfig struct {
	MaxRounds         int           `mapstructure:"max_rounds" yaml:"max_rounds"`
	MaxImages         int           `mapstructure:"max_images" yaml:"max_images"`
	SettleDelay       time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	SaveScreenshots   bool          `mapstructure:"save_screenshots" yaml:"save_screenshots"`
	ScreenshotsFolder string        `mapstructure:"screenshots_folder" yaml:"screenshots_folder"`
}

// LLMConfig controls the model call gateway.
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// MinRequestInterval throttles calls to small local endpoints; zero
	// disables the limiter.
	MinRequestInterval time.Duration `mapstructure:"min_request_interval" yaml:"min_request_interval"`
}

// BrowserConfig controls the chromedp-backed browser controller.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	DownloadsFolder   string        `mapstructure:"downloads_folder" yaml:"downloads_folder"`
	ShowOverlay       bool          `mapstructure:"show_overlay" yaml:"show_overlay"`
	ShowClickMarkers  bool          `mapstructure:"show_click_markers" yaml:"show_click_markers"`
}

// SetDefaults registers every default value on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "webpilot")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	v.SetDefault("agent.max_rounds", 15)
	v.SetDefault("agent.max_images", 1)
	v.SetDefault("agent.settle_delay", 1500*time.Millisecond)
	v.SetDefault("agent.save_screenshots", true)
	v.SetDefault("agent.screenshots_folder", "./screenshots")

	v.SetDefault("llm.base_url", "http://localhost:1234/v1")
	v.SetDefault("llm.api_key", "lm-studio")
	v.SetDefault("llm.model", "computer-use-7b")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.min_request_interval", time.Duration(0))

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1440)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("browser.downloads_folder", "")
	v.SetDefault("browser.show_overlay", false)
	v.SetDefault("browser.show_click_markers", false)
}

// Load unmarshals, expands and validates the configuration from a prepared
// viper instance.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewDefaultConfig returns a configuration populated purely from defaults.
func NewDefaultConfig() *Config {
	cfg, err := Load(viper.New())
	if err != nil {
		// Defaults are static; a failure here is a programming error.
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// ExpandPaths resolves "~" in user-supplied directories.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{
		&c.Agent.ScreenshotsFolder,
		&c.Browser.DownloadsFolder,
		&c.Logger.LogFile,
	} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks cross-field constraints for every section.
func (c *Config) Validate() error {
	if c.Agent.MaxRounds <= 0 {
		return fmt.Errorf("agent.max_rounds must be a positive integer, got %d", c.Agent.MaxRounds)
	}
	if c.Agent.MaxImages < 0 {
		return fmt.Errorf("agent.max_images must not be negative, got %d", c.Agent.MaxImages)
	}
	if c.Agent.SettleDelay < 0 {
		return fmt.Errorf("agent.settle_delay must not be negative")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport dimensions must be positive, got %dx%d",
			c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url must not be empty")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be a positive integer, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2], got %g", c.LLM.Temperature)
	}
	switch strings.ToLower(c.Logger.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be %q or %q, got %q", "console", "json", c.Logger.Format)
	}
	return nil
}
