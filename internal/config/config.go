// Package config provides configuration management for retronews. Values are
// resolved by Viper from the config file, environment variables and defaults;
// this package turns the resolved keys into typed structs and validates them.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Server defaults
const (
	defaultServerAddress      = ":8080"
	defaultServerReadTimeout  = 15 * time.Second
	defaultServerWriteTimeout = 30 * time.Second
	defaultServerIdleTimeout  = 60 * time.Second
)

// Cache defaults mirror the upstream publishing cadence: ten minutes per
// entry, few feeds, a few dozen recently-read stories.
const (
	defaultCacheTTL            = 10 * time.Minute
	defaultFeedCapacity        = 10
	defaultArticleCapacity     = 50
	defaultFetchTimeout        = 20 * time.Second
	defaultImageMaxConcurrent  = 4
	defaultImageSize           = 96
	defaultUserAgent           = "retronews/1.0"
	defaultConvertPath         = "convert"
	defaultImageRequestTimeout = 30 * time.Second
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
	// WriteTimeout must cover a full image transcode stream.
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggerConfig holds the logger settings.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"`
}

// CacheConfig bounds the per-variant content caches.
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	FeedCapacity    int           `mapstructure:"feed_capacity"`
	ArticleCapacity int           `mapstructure:"article_capacity"`
}

// FetchConfig holds the upstream HTTP client settings.
type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// ImagingConfig holds the image transcode settings.
type ImagingConfig struct {
	ConvertPath    string        `mapstructure:"convert_path"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	Width          int           `mapstructure:"width"`
	Height         int           `mapstructure:"height"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TrafficConfig holds the traffic snapshot settings.
type TrafficConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

// WarmConfig controls the background feed warmer. An empty schedule disables
// it; feeds are then fetched lazily on first request.
type WarmConfig struct {
	Schedule string `mapstructure:"schedule"`
}

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Imaging ImagingConfig `mapstructure:"imaging"`
	Traffic TrafficConfig `mapstructure:"traffic"`
	Warm    WarmConfig    `mapstructure:"warm"`
}

// Load materializes the configuration from Viper's resolved state.
func Load() (*Config, error) {
	SetDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Cache.FeedCapacity <= 0 || c.Cache.ArticleCapacity <= 0 {
		return fmt.Errorf("cache capacities must be positive")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive, got %s", c.Fetch.Timeout)
	}
	if c.Imaging.Width <= 0 || c.Imaging.Height <= 0 {
		return fmt.Errorf("imaging dimensions must be positive, got %dx%d",
			c.Imaging.Width, c.Imaging.Height)
	}
	if c.Imaging.MaxConcurrent <= 0 {
		return fmt.Errorf("imaging.max_concurrent must be positive, got %d",
			c.Imaging.MaxConcurrent)
	}
	return nil
}

// SetDefaults registers production-safe defaults with Viper. Called by Load;
// exported so tests can seed a bare Viper instance.
func SetDefaults() {
	viper.SetDefault("server", map[string]any{
		"address":       defaultServerAddress,
		"read_timeout":  defaultServerReadTimeout.String(),
		"write_timeout": defaultServerWriteTimeout.String(),
		"idle_timeout":  defaultServerIdleTimeout.String(),
	})

	viper.SetDefault("logger", map[string]any{
		"level":       "info",
		"development": false,
		"encoding":    "json",
	})

	viper.SetDefault("cache", map[string]any{
		"ttl":              defaultCacheTTL.String(),
		"feed_capacity":    defaultFeedCapacity,
		"article_capacity": defaultArticleCapacity,
	})

	viper.SetDefault("fetch", map[string]any{
		"timeout":    defaultFetchTimeout.String(),
		"user_agent": defaultUserAgent,
	})

	viper.SetDefault("imaging", map[string]any{
		"convert_path":    defaultConvertPath,
		"max_concurrent":  defaultImageMaxConcurrent,
		"width":           defaultImageSize,
		"height":          defaultImageSize,
		"request_timeout": defaultImageRequestTimeout.String(),
	})

	viper.SetDefault("traffic", map[string]any{
		"url": "",
		"ttl": defaultCacheTTL.String(),
	})

	viper.SetDefault("warm", map[string]any{
		"schedule": "",
	})
}
