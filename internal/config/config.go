// Package config loads dsquery settings from an optional config file and
// DSQUERY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable: engine.chunk_size is read
// from DSQUERY_ENGINE_CHUNK_SIZE.
const EnvPrefix = "DSQUERY"

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Config is the full dsquery configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// StoreConfig selects the native executor.
type StoreConfig struct {
	Backend        string `mapstructure:"backend"`
	Path           string `mapstructure:"path"`
	RequireIndexes bool   `mapstructure:"require_indexes"`
}

// EngineConfig tunes query execution.
type EngineConfig struct {
	MaxConcurrentSources int `mapstructure:"max_concurrent_sources"`
	ChunkSize            int `mapstructure:"chunk_size"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level     string `mapstructure:"level"`  // debug, info, warn, error
	Format    string `mapstructure:"format"` // text, json
	AddSource bool   `mapstructure:"add_source"`
}

// MetricsConfig configures the Prometheus endpoint served by the shell.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.path", "dsquery.db")
	v.SetDefault("store.require_indexes", false)
	v.SetDefault("engine.max_concurrent_sources", 30)
	v.SetDefault("engine.chunk_size", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.add_source", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", "127.0.0.1:9464")
}

// Load reads configuration. Values come from, lowest precedence first:
// defaults, the config file, then DSQUERY_* environment variables.
//
// An explicit path must exist. With no path, dsquery.yaml in the working
// directory is read when present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("dsquery")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with only defaults applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: defaults do not unmarshal: %v", err))
	}
	return &cfg
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendBadger:
		if c.Store.Path == "" {
			return fmt.Errorf("config: store.path is required for the %s backend", c.Store.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown store.backend %q", c.Store.Backend)
	}
	if c.Engine.MaxConcurrentSources <= 0 {
		return fmt.Errorf("config: engine.max_concurrent_sources must be positive, got %d", c.Engine.MaxConcurrentSources)
	}
	if c.Engine.ChunkSize <= 0 {
		return fmt.Errorf("config: engine.chunk_size must be positive, got %d", c.Engine.ChunkSize)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	return nil
}

// Logger builds a logger writing to w.
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: c.AddSource}

	var handler slog.Handler
	if c.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log.level %q", s)
	}
}
