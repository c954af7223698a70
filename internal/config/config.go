// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Waits   WaitsConfig   `mapstructure:"waits" yaml:"waits"`
}

// LoggerConfig configures the zap logger and its optional rotating file sink.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig describes how to reach the browser under automation.
type BrowserConfig struct {
	// DevtoolsURL is the ws:// or http:// endpoint of a running browser to
	// attach to. Empty launches a local headless instance instead.
	DevtoolsURL   string        `mapstructure:"devtools_url" yaml:"devtools_url"`
	Headless      bool          `mapstructure:"headless" yaml:"headless"`
	AttachTimeout time.Duration `mapstructure:"attach_timeout" yaml:"attach_timeout"`
}

// WaitsConfig tunes the navigation synchronization engine.
type WaitsConfig struct {
	// DefaultTimeout bounds every wait call that does not override it.
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	// PaintStableQuiet is the minimum quiet period after the last paint
	// signal before the page counts as painting-stable.
	PaintStableQuiet time.Duration `mapstructure:"paint_stable_quiet" yaml:"paint_stable_quiet"`
}

// SetDefaults initializes default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "navsync")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	v.SetDefault("browser.devtools_url", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.attach_timeout", "30s")

	v.SetDefault("waits.default_timeout", "60s")
	v.SetDefault("waits.paint_stable_quiet", "500ms")
}

// Load applies defaults and unmarshals the viper state into a Config.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Waits.DefaultTimeout <= 0 {
		return nil, fmt.Errorf("waits.default_timeout must be positive, got %s", cfg.Waits.DefaultTimeout)
	}
	if cfg.Waits.PaintStableQuiet <= 0 {
		return nil, fmt.Errorf("waits.paint_stable_quiet must be positive, got %s", cfg.Waits.PaintStableQuiet)
	}
	return &cfg, nil
}
