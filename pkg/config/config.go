// Package config provides configuration loading and validation for the gold price service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	// Validate and sanitize path
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in YAML
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	return &cfg, nil
}

// Default upstream endpoints. The listing and CSV feed are the Bank of
// Taiwan gold passbook pages; the chart API is Yahoo Finance.
const (
	DefaultListingURL    = "https://rate.bot.com.tw/gold?Lang=zh-TW"
	DefaultHistoryURL    = "https://rate.bot.com.tw/gold/csv/0/day"
	DefaultMarketDataURL = "https://query1.finance.yahoo.com"
)

// ApplyDefaults sets default values for optional fields.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = ":8080"
	}
	if cfg.Server.WebSocket.Enabled && cfg.Server.WebSocket.Addr == "" {
		cfg.Server.WebSocket.Addr = ":8081"
	}
	if cfg.Server.CacheTTL.ToDuration() == 0 {
		cfg.Server.CacheTTL = Duration(60 * time.Second)
	}

	// Source defaults
	if cfg.Sources.Listing.URL == "" {
		cfg.Sources.Listing.URL = DefaultListingURL
	}
	if cfg.Sources.Listing.RowPattern == "" {
		cfg.Sources.Listing.RowPattern = "1公克"
	}
	if cfg.Sources.Listing.Timeout.ToDuration() == 0 {
		cfg.Sources.Listing.Timeout = Duration(10 * time.Second)
	}
	if cfg.Sources.History.URL == "" {
		cfg.Sources.History.URL = DefaultHistoryURL
	}
	if cfg.Sources.History.Timeout.ToDuration() == 0 {
		cfg.Sources.History.Timeout = Duration(10 * time.Second)
	}
	if cfg.Sources.MarketData.BaseURL == "" {
		cfg.Sources.MarketData.BaseURL = DefaultMarketDataURL
	}
	if cfg.Sources.MarketData.FuturesSymbol == "" {
		cfg.Sources.MarketData.FuturesSymbol = "GC=F"
	}
	if cfg.Sources.MarketData.FXSymbol == "" {
		cfg.Sources.MarketData.FXSymbol = "TWD=X"
	}
	if cfg.Sources.MarketData.Timeout.ToDuration() == 0 {
		cfg.Sources.MarketData.Timeout = Duration(10 * time.Second)
	}

	// Aggregator defaults
	if cfg.Aggregator.Timezone == "" {
		cfg.Aggregator.Timezone = "Asia/Taipei"
	}
	if cfg.Aggregator.FallbackPrice == 0 {
		cfg.Aggregator.FallbackPrice = 2880
	}
	if cfg.Aggregator.FallbackExchangeRate == 0 {
		cfg.Aggregator.FallbackExchangeRate = 32.5
	}
	if cfg.Aggregator.DefaultPremium == 0 {
		cfg.Aggregator.DefaultPremium = 1.02
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
