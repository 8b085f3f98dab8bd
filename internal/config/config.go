// Package config loads dnaconverter settings from .env files, DNACONV_*
// environment variables and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dnaconverter/internal/tracing"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DNACONV"

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// StoreConfig selects where plugins are persisted.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// WatchConfig controls reloading the store file when it changes on disk.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// Config is the complete runtime configuration.
type Config struct {
	// Controller names the controller; SQLite stores key rows by it.
	Controller string `mapstructure:"controller"`

	// AssetPath points at a DNA asset YAML file. Empty uses the built-in asset.
	AssetPath string `mapstructure:"asset_path"`

	Listen   string `mapstructure:"listen"`
	LogLevel string `mapstructure:"log_level"`
	ReadOnly bool   `mapstructure:"read_only"`

	Store   StoreConfig    `mapstructure:"store"`
	Watch   WatchConfig    `mapstructure:"watch"`
	Tracing tracing.Config `mapstructure:"tracing"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Controller: "default",
		Listen:     ":8080",
		LogLevel:   "info",
		Store: StoreConfig{
			Backend: BackendFile,
			Path:    "plugins.yaml",
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 500 * time.Millisecond,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// SetDefaults registers every key with v so environment variables bind
// during Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("controller", d.Controller)
	v.SetDefault("asset_path", d.AssetPath)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("read_only", d.ReadOnly)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// Load reads envFile (when present), the environment and cfgFile into a
// validated Config. An empty cfgFile looks for dnaconv.yaml in the working
// directory and carries on without it.
func Load(v *viper.Viper, cfgFile, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("dnaconv")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var err error
	if c.Controller == "" {
		err = multierr.Append(err, errors.New("controller must not be empty"))
	}
	switch c.Store.Backend {
	case BackendFile, BackendSQLite:
		if c.Store.Path == "" {
			err = multierr.Append(err, fmt.Errorf("store.path is required for the %s backend", c.Store.Backend))
		}
	case BackendMemory:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if _, lerr := zapcore.ParseLevel(c.LogLevel); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("log_level: %w", lerr))
	}
	if c.Watch.Enabled && c.Watch.Debounce <= 0 {
		err = multierr.Append(err, errors.New("watch.debounce must be positive"))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		err = multierr.Append(err, fmt.Errorf("tracing.sample_rate %v out of range [0,1]", c.Tracing.SampleRate))
	}
	return err
}

// NewLogger builds the production zap logger at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
