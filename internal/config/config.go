package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for venice-sync.
type Config struct {
	BaseURL       string  `mapstructure:"base_url"`
	APIKey        string  `mapstructure:"api_key"`
	Timeout       string  `mapstructure:"timeout"`
	RateLimit     float64 `mapstructure:"rate_limit"`
	CacheDir      string  `mapstructure:"cache_dir"`
	CacheFreshTTL string  `mapstructure:"cache_fresh_ttl"`
	CacheStaleTTL string  `mapstructure:"cache_stale_ttl"`
	Output        string  `mapstructure:"output"`
	Format        string  `mapstructure:"format"`
	Type          string  `mapstructure:"type"`
	NoCache       bool    `mapstructure:"no_cache"`
	LogLevel      string  `mapstructure:"log_level"`
}

// Load reads configuration from file, environment, and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("base_url", "https://api.venice.ai/api/v1")
	v.SetDefault("timeout", "30s")
	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("cache_dir", defaultCacheDir())
	v.SetDefault("cache_fresh_ttl", "5m")
	v.SetDefault("cache_stale_ttl", "24h")
	v.SetDefault("output", "providers.yaml")
	v.SetDefault("format", "yaml")
	v.SetDefault("type", "text")
	v.SetDefault("no_cache", false)
	v.SetDefault("log_level", "info")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/venice-sync")
	}

	// Environment variables
	v.SetEnvPrefix("VENICE")
	v.AutomaticEnv()
	_ = v.BindEnv("api_key", "VENICE_API_KEY")
	_ = v.BindEnv("base_url", "VENICE_BASE_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Duration parses one of the duration-valued settings, falling back
// when the value is missing or malformed.
func Duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/venice-sync-cache"
	}
	return filepath.Join(home, ".cache", "venice_sync")
}
