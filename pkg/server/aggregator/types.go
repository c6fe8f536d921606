// Package aggregator reconciles the upstream gold price sources into a
// single current price plus daily and intraday series.
package aggregator

import (
	"github.com/shopspring/decimal"

	"tc.com/gold-prices/pkg/server/sources"
)

// GramsPerTroyOunce converts futures pricing (quoted per troy ounce)
// to per-gram pricing.
var GramsPerTroyOunce = decimal.NewFromFloat(31.1034768)

// Result is the outcome of one aggregation run. Regenerated wholesale
// per invocation; never persisted by this package.
type Result struct {
	CurrentPrice float64              `json:"currentPrice"`
	History      []sources.PricePoint `json:"history"`
	Intraday     []sources.PricePoint `json:"intraday"`
}

// Fallbacks are the named constants used when upstream context is
// missing. Injected rather than inlined so tests can override them.
type Fallbacks struct {
	// Price is the hard-coded per-gram price used when every source failed.
	Price decimal.Decimal
	// ExchangeRate is the assumed USD/TWD rate for the history backfill.
	ExchangeRate decimal.Decimal
	// Premium is the assumed retail premium over converted futures prices.
	Premium decimal.Decimal
}

// NewFallbacks builds Fallbacks from plain float configuration values.
func NewFallbacks(price, exchangeRate, premium float64) Fallbacks {
	return Fallbacks{
		Price:        decimal.NewFromFloat(price),
		ExchangeRate: decimal.NewFromFloat(exchangeRate),
		Premium:      decimal.NewFromFloat(premium),
	}
}
