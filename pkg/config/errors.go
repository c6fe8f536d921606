// Package config provides configuration loading and validation for the gold price service.
package config

import "errors"

var (
	// ErrInvalidURL indicates that a source URL is not a valid absolute URL.
	ErrInvalidURL = errors.New("invalid source URL")
	// ErrInvalidTimeout indicates that a timeout is negative.
	ErrInvalidTimeout = errors.New("timeout must not be negative")
	// ErrInvalidTimezone indicates that the configured timezone is unknown.
	ErrInvalidTimezone = errors.New("unknown timezone")
	// ErrInvalidFallbackPrice indicates a non-positive fallback price.
	ErrInvalidFallbackPrice = errors.New("fallback_price must be positive")
	// ErrInvalidExchangeRate indicates a non-positive fallback exchange rate.
	ErrInvalidExchangeRate = errors.New("fallback_exchange_rate must be positive")
	// ErrInvalidPremium indicates a non-positive default premium.
	ErrInvalidPremium = errors.New("default_premium must be positive")
	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates an unknown log format.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
