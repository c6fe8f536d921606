package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if err := validateSourcesConfig(&cfg.Sources); err != nil {
		return fmt.Errorf("sources config: %w", err)
	}

	if err := validateAggregatorConfig(&cfg.Aggregator); err != nil {
		return fmt.Errorf("aggregator config: %w", err)
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateSourcesConfig(cfg *SourcesConfig) error {
	if err := validateURL("listing.url", cfg.Listing.URL); err != nil {
		return err
	}
	if err := validateURL("history.url", cfg.History.URL); err != nil {
		return err
	}
	if err := validateURL("market_data.base_url", cfg.MarketData.BaseURL); err != nil {
		return err
	}

	for name, timeout := range map[string]Duration{
		"listing.timeout":     cfg.Listing.Timeout,
		"history.timeout":     cfg.History.Timeout,
		"market_data.timeout": cfg.MarketData.Timeout,
	} {
		if timeout.ToDuration() < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidTimeout, name)
		}
	}

	return nil
}

func validateAggregatorConfig(cfg *AggregatorConfig) error {
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTimezone, cfg.Timezone)
	}
	if cfg.FallbackPrice <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidFallbackPrice, cfg.FallbackPrice)
	}
	if cfg.FallbackExchangeRate <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidExchangeRate, cfg.FallbackExchangeRate)
	}
	if cfg.DefaultPremium <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPremium, cfg.DefaultPremium)
	}
	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	switch strings.ToLower(cfg.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, cfg.Level)
	}

	switch strings.ToLower(cfg.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %s (%q)", ErrInvalidURL, name, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %s must use http or https", ErrInvalidURL, name)
	}
	return nil
}
