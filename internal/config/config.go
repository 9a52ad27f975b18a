// Package config provides tool configuration for sfbuild using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the sfbuild tool itself. Flow and
// platform documents are loaded separately; this covers the ambient knobs.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Paths   PathsConfig   `mapstructure:"paths"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// PathsConfig holds overrides for the directories sfbuild derives from its
// install location.
type PathsConfig struct {
	// ShareDir is the shared-data directory passed to every module.
	// Empty means <home>/../../share/symbiflow.
	ShareDir string `mapstructure:"share_dir"`

	// PlatformsDir is where platform flow documents live.
	// Empty means <home>/platforms.
	PlatformsDir string `mapstructure:"platforms_dir"`

	// CacheFile is the staleness cache location.
	CacheFile string `mapstructure:"cache_file"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with SFBUILD_, using underscores for nesting.
// Example: SFBUILD_LOGGING_LEVEL=debug.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".sfbuild")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix("SFBUILD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine: defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", "")

	v.SetDefault("paths.share_dir", "")
	v.SetDefault("paths.platforms_dir", "")
	v.SetDefault("paths.cache_file", ".symbicache")
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format %q", c.Logging.Format)
	}
	return nil
}

// ShareDir returns the effective shared-data directory for an sfbuild home.
func (c *Config) ShareDir(home string) string {
	if c.Paths.ShareDir != "" {
		return c.Paths.ShareDir
	}
	return filepath.Clean(filepath.Join(home, "..", "..", "share", "symbiflow"))
}

// PlatformsDir returns the effective platform flow directory for an
// sfbuild home.
func (c *Config) PlatformsDir(home string) string {
	if c.Paths.PlatformsDir != "" {
		return c.Paths.PlatformsDir
	}
	return filepath.Join(home, "platforms")
}
