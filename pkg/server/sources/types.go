// Package sources provides clients for the upstream gold price sources.
package sources

import (
	"context"

	"github.com/shopspring/decimal"
)

// PricePoint is a single observation in a price series.
// Date is either a calendar day (2024-01-05) or a full timestamp for
// intraday points. Price is TWD per gram. Label is a short display
// string for charts.
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
	Label string  `json:"label"`
}

// SpotQuoter extracts the current per-gram sell price from a listing
// document. Kept narrow so the fragile scraping can be swapped or
// faked without touching the aggregation pipeline.
type SpotQuoter interface {
	SpotPrice(ctx context.Context) (decimal.Decimal, error)
}

// HistoryProvider returns the daily sell-price history, oldest first.
type HistoryProvider interface {
	DailyHistory(ctx context.Context) ([]PricePoint, error)
}

// ChartSeries is a decoded series from the market-data chart API.
// Closes may contain nil entries for timestamps with no quote.
type ChartSeries struct {
	Timestamps  []int64
	Closes      []*decimal.Decimal
	MarketPrice decimal.Decimal
}

// MarketData provides futures chart series and a same-day FX quote.
type MarketData interface {
	// Chart fetches the futures series for the given interval and range,
	// e.g. ("15m", "1d") for intraday or ("1d", "3mo") for backfill.
	Chart(ctx context.Context, interval, rng string) (*ChartSeries, error)

	// ExchangeRate fetches the current USD to local-currency rate.
	ExchangeRate(ctx context.Context) (decimal.Decimal, error)
}
