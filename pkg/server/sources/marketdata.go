package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"tc.com/gold-prices/pkg/logging"
	"tc.com/gold-prices/pkg/metrics"
	"tc.com/gold-prices/pkg/version"
)

// MarketDataSource fetches gold futures series and FX quotes from a
// Yahoo-style chart API. The same endpoint serves intraday (15m/1d),
// backfill (1d/3mo) and same-day FX queries.
type MarketDataSource struct {
	baseURL       string
	futuresSymbol string
	fxSymbol      string
	client        *http.Client
	logger        *logging.Logger
}

// chartResponse mirrors the chart API payload:
// { chart: { result: [ { timestamp, indicators: { quote: [ { close } ] }, meta } ], error } }
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  interface{}   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
	Meta struct {
		RegularMarketPrice float64 `json:"regularMarketPrice"`
	} `json:"meta"`
}

// NewMarketDataSource creates a chart API client.
func NewMarketDataSource(baseURL, futuresSymbol, fxSymbol string, timeout time.Duration, logger *logging.Logger) *MarketDataSource {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &MarketDataSource{
		baseURL:       baseURL,
		futuresSymbol: futuresSymbol,
		fxSymbol:      fxSymbol,
		client:        &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

// Chart fetches the futures series for the given interval and range.
func (s *MarketDataSource) Chart(ctx context.Context, interval, rng string) (series *ChartSeries, err error) {
	defer func() { metrics.RecordSourceFetch("market_data", err) }()

	series, err = s.fetchChart(ctx, s.futuresSymbol, interval, rng)
	if err != nil {
		return nil, err
	}
	if len(series.Timestamps) == 0 {
		return nil, fmt.Errorf("%w: %s %s/%s", ErrEmptyChart, s.futuresSymbol, interval, rng)
	}

	s.logger.Debug("Fetched futures chart",
		"symbol", s.futuresSymbol, "interval", interval, "range", rng, "points", len(series.Timestamps))
	return series, nil
}

// ExchangeRate fetches the current USD to local-currency rate from the
// FX symbol's 1-day chart. The regular market price from meta is
// preferred; the last non-null close is the fallback.
func (s *MarketDataSource) ExchangeRate(ctx context.Context) (rate decimal.Decimal, err error) {
	defer func() { metrics.RecordSourceFetch("fx", err) }()

	series, err := s.fetchChart(ctx, s.fxSymbol, "1d", "1d")
	if err != nil {
		return decimal.Zero, err
	}

	if series.MarketPrice.IsPositive() {
		return series.MarketPrice, nil
	}
	for i := len(series.Closes) - 1; i >= 0; i-- {
		if series.Closes[i] != nil && series.Closes[i].IsPositive() {
			return *series.Closes[i], nil
		}
	}

	return decimal.Zero, fmt.Errorf("%w: %s", ErrNoExchangeRate, s.fxSymbol)
}

func (s *MarketDataSource) fetchChart(ctx context.Context, symbol, interval, rng string) (*ChartSeries, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		s.baseURL, url.PathEscape(symbol), url.QueryEscape(interval), url.QueryEscape(rng))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.AgentString())
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var data chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if data.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %v", ErrChartAPIError, data.Chart.Error)
	}
	if len(data.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyChart, symbol)
	}

	result := data.Chart.Result[0]
	series := &ChartSeries{
		Timestamps:  result.Timestamp,
		MarketPrice: decimal.NewFromFloat(result.Meta.RegularMarketPrice),
	}

	if len(result.Indicators.Quote) > 0 {
		closes := result.Indicators.Quote[0].Close
		series.Closes = make([]*decimal.Decimal, len(closes))
		for i, c := range closes {
			if c == nil {
				continue
			}
			value := decimal.NewFromFloat(*c)
			series.Closes[i] = &value
		}
	}

	return series, nil
}
