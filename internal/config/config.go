// Package config loads warp settings from warp.yaml and WARP_ environment
// variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ryohey/warp/internal/compiler"
)

const (
	configFileName = "warp"
	configFileType = "yaml"
	envPrefix      = "WARP"

	KeyDebounce       = "debounce"
	KeyPollInterval   = "poll_interval"
	KeyAssetDir       = "asset_dir"
	KeyAssetURL       = "asset_url"
	KeyAssetRateLimit = "asset_rate_limit"
	KeyProjectDir     = "project_dir"
	KeyDB             = "db"
	KeyLogLevel       = "log_level"
	KeyNodeKind       = "node_kind"
	KeyLinkKind       = "link_kind"
	KeyPositionalKind = "positional_kind"
	KeyRegistry       = "registry"
	KeyMetricsAddr    = "metrics_addr"
)

// Config is the resolved configuration. Zero-valued string settings mean
// the feature is off: no asset store, no pass log, no metrics listener.
type Config struct {
	Debounce       time.Duration `mapstructure:"debounce"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	AssetDir       string        `mapstructure:"asset_dir"`
	AssetURL       string        `mapstructure:"asset_url"`
	AssetRateLimit float64       `mapstructure:"asset_rate_limit"` // requests per second, 0 is unlimited
	ProjectDir     string        `mapstructure:"project_dir"`
	DB             string        `mapstructure:"db"`
	LogLevel       string        `mapstructure:"log_level"`
	NodeKind       int           `mapstructure:"node_kind"`
	LinkKind       int           `mapstructure:"link_kind"`
	PositionalKind string        `mapstructure:"positional_kind"`
	Registry       string        `mapstructure:"registry"` // CUE field registry; empty uses the built-in one
	MetricsAddr    string        `mapstructure:"metrics_addr"`

	// File is the config file that was read, or "" when none was found.
	File string `mapstructure:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Debounce:       100 * time.Millisecond,
		PollInterval:   3 * time.Second,
		LogLevel:       "info",
		NodeKind:       compiler.DefaultNodeKind,
		LinkKind:       compiler.DefaultLinkKind,
		PositionalKind: "Transform",
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault(KeyDebounce, d.Debounce)
	v.SetDefault(KeyPollInterval, d.PollInterval)
	v.SetDefault(KeyAssetDir, d.AssetDir)
	v.SetDefault(KeyAssetURL, d.AssetURL)
	v.SetDefault(KeyAssetRateLimit, d.AssetRateLimit)
	v.SetDefault(KeyProjectDir, d.ProjectDir)
	v.SetDefault(KeyDB, d.DB)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyNodeKind, d.NodeKind)
	v.SetDefault(KeyLinkKind, d.LinkKind)
	v.SetDefault(KeyPositionalKind, d.PositionalKind)
	v.SetDefault(KeyRegistry, d.Registry)
	v.SetDefault(KeyMetricsAddr, d.MetricsAddr)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration. With an explicit path the file must exist;
// otherwise warp.yaml is looked up in the working directory and a missing
// file is not an error. Environment variables (WARP_DEBOUNCE, WARP_DB, ...)
// override the file.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Debounce < 0:
		return fmt.Errorf("config: %s must not be negative", KeyDebounce)
	case c.PollInterval <= 0:
		return fmt.Errorf("config: %s must be positive", KeyPollInterval)
	case c.AssetRateLimit < 0:
		return fmt.Errorf("config: %s must not be negative", KeyAssetRateLimit)
	case c.NodeKind == c.LinkKind:
		return fmt.Errorf("config: %s and %s must differ", KeyNodeKind, KeyLinkKind)
	case c.PositionalKind == "":
		return fmt.Errorf("config: %s must be set", KeyPositionalKind)
	case c.AssetDir != "" && c.AssetURL != "":
		return fmt.Errorf("config: set only one of %s and %s", KeyAssetDir, KeyAssetURL)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	level, _ := ParseLevel(c.LogLevel)
	return level
}

// TreeOptions returns the compiler options for the configured class ids.
func (c *Config) TreeOptions() []compiler.TreeOption {
	return []compiler.TreeOption{
		compiler.WithNodeKind(c.NodeKind),
		compiler.WithLinkKind(c.LinkKind),
	}
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: %s %q: %w", KeyLogLevel, s, err)
	}
	return level, nil
}
