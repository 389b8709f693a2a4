// Package config loads formula settings from defaults, an optional config
// file and FORMULA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/git-pkgs/formula/internal/core"
)

const (
	// AppName is the application name.
	AppName = "formula"
	// EnvPrefix prefixes every environment override, e.g. FORMULA_PREFIX.
	EnvPrefix = "FORMULA"
	// ConfigFileName is the config file name without extension.
	ConfigFileName = "config"
)

// Config holds every setting the CLI needs.
type Config struct {
	Prefix      string        `mapstructure:"prefix"`
	CacheDir    string        `mapstructure:"cache_dir"`
	BrewPrefix  string        `mapstructure:"brew_prefix"` // empty means homebrew.DefaultPrefix
	BrewBin     string        `mapstructure:"brew_bin"`
	AutoInstall bool          `mapstructure:"auto_install"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	LogLevel    string        `mapstructure:"log_level"`
	Progress    bool          `mapstructure:"progress"`
	GitHubToken string        `mapstructure:"github_token"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Prefix:      "/usr/local",
		AutoInstall: true,
		Timeout:     5 * time.Minute,
		MaxRetries:  3,
		LogLevel:    "info",
		Progress:    true,
	}
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile is used exclusively when set and must exist.
	ConfigFile string
	// ConfigDir overrides the directory searched for config.{toml,yaml,yml,json}.
	ConfigDir string
}

// Dir returns $XDG_CONFIG_HOME/formula, defaulting to ~/.config/formula.
func Dir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppName), nil
}

// Load merges defaults, the config file and the environment.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("prefix", defaults.Prefix)
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("brew_prefix", defaults.BrewPrefix)
	v.SetDefault("brew_bin", defaults.BrewBin)
	v.SetDefault("auto_install", defaults.AutoInstall)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("max_retries", defaults.MaxRetries)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("progress", defaults.Progress)
	v.SetDefault("github_token", defaults.GitHubToken)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", opts.ConfigFile, err)
		}
	} else {
		dir := opts.ConfigDir
		if dir == "" {
			var err error
			if dir, err = Dir(); err != nil {
				return nil, err
			}
		}
		v.SetConfigName(ConfigFileName)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no install could work with.
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.Prefix) {
		return fmt.Errorf("prefix %q must be an absolute path", c.Prefix)
	}
	if c.CacheDir != "" && !filepath.IsAbs(c.CacheDir) {
		return fmt.Errorf("cache_dir %q must be an absolute path", c.CacheDir)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// Layout returns the install directories for these settings.
func (c *Config) Layout() core.Layout {
	return core.NewLayout(c.Prefix).WithCacheDir(c.CacheDir)
}

// LocatorConfig returns the settings passed to dependency locators.
func (c *Config) LocatorConfig() core.LocatorConfig {
	return core.LocatorConfig{
		Prefix:      c.BrewPrefix,
		Command:     c.BrewBin,
		AutoInstall: c.AutoInstall,
	}
}
