package config

import "time"

// Config is the root configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Sources    SourcesConfig    `yaml:"sources"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig configures the HTTP and WebSocket servers
type ServerConfig struct {
	HTTP      HTTPConfig `yaml:"http"`
	WebSocket WSConfig   `yaml:"websocket"`
	CacheTTL  Duration   `yaml:"cache_ttl"`
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WSConfig configures the WebSocket server
type WSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// SourcesConfig configures the upstream price sources
type SourcesConfig struct {
	Listing    ListingConfig    `yaml:"listing"`
	History    HistoryConfig    `yaml:"history"`
	MarketData MarketDataConfig `yaml:"market_data"`
}

// ListingConfig configures the bank HTML listing source (spot price)
type ListingConfig struct {
	URL        string   `yaml:"url"`
	RowPattern string   `yaml:"row_pattern"`
	Timeout    Duration `yaml:"timeout"`
}

// HistoryConfig configures the CSV history feed source
type HistoryConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// MarketDataConfig configures the chart/market-data API source
type MarketDataConfig struct {
	BaseURL       string   `yaml:"base_url"`
	FuturesSymbol string   `yaml:"futures_symbol"`
	FXSymbol      string   `yaml:"fx_symbol"`
	Timeout       Duration `yaml:"timeout"`
}

// AggregatorConfig configures pipeline fallbacks and formatting
type AggregatorConfig struct {
	Timezone             string  `yaml:"timezone"`
	FallbackPrice        float64 `yaml:"fallback_price"`
	FallbackExchangeRate float64 `yaml:"fallback_exchange_rate"`
	DefaultPremium       float64 `yaml:"default_premium"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
