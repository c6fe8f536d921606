package aggregator

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tc.com/gold-prices/pkg/server/sources"
)

var errUpstream = errors.New("upstream down")

type fakeSpot struct {
	price decimal.Decimal
	err   error
}

func (f *fakeSpot) SpotPrice(_ context.Context) (decimal.Decimal, error) {
	return f.price, f.err
}

type fakeHistory struct {
	points []sources.PricePoint
	err    error
}

func (f *fakeHistory) DailyHistory(_ context.Context) ([]sources.PricePoint, error) {
	return f.points, f.err
}

type fakeMarket struct {
	intraday    *sources.ChartSeries
	intradayErr error
	backfill    *sources.ChartSeries
	backfillErr error
	rate        decimal.Decimal
	rateErr     error
}

func (f *fakeMarket) Chart(_ context.Context, _, rng string) (*sources.ChartSeries, error) {
	if rng == "1d" {
		return f.intraday, f.intradayErr
	}
	return f.backfill, f.backfillErr
}

func (f *fakeMarket) ExchangeRate(_ context.Context) (decimal.Decimal, error) {
	return f.rate, f.rateErr
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }

func dailyPoints(prices ...float64) []sources.PricePoint {
	points := make([]sources.PricePoint, 0, len(prices))
	for i, price := range prices {
		day := i + 1
		points = append(points, sources.PricePoint{
			Date:  time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			Price: price,
			Label: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC).Format("01/02"),
		})
	}
	return points
}

func newTestAggregator(spot sources.SpotQuoter, history sources.HistoryProvider, market sources.MarketData) *Aggregator {
	agg := New(spot, history, market, NewFallbacks(2880, 32.5, 1.02), time.UTC, nil)
	agg.now = func() time.Time {
		return time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)
	}
	return agg
}

func TestAggregate_SpotFromListing(t *testing.T) {
	agg := newTestAggregator(
		&fakeSpot{price: dec(t, "2780")},
		&fakeHistory{points: dailyPoints(2690, 2695, 2700, 2705, 2710)},
		&fakeMarket{intradayErr: errUpstream, rateErr: errUpstream},
	)

	result := agg.Aggregate(context.Background())

	assert.Equal(t, 2780.0, result.CurrentPrice)
	assert.Len(t, result.History, 5)
	assert.Empty(t, result.Intraday)
}

func TestAggregate_SpotFallsBackToHistory(t *testing.T) {
	// Weekend path: listing closed, CSV feed still answers
	agg := newTestAggregator(
		&fakeSpot{err: errUpstream},
		&fakeHistory{points: dailyPoints(2690, 2695, 2700, 2705, 2710)},
		&fakeMarket{intradayErr: errUpstream, rateErr: errUpstream},
	)

	result := agg.Aggregate(context.Background())

	assert.Equal(t, 2710.0, result.CurrentPrice, "current price must equal the last history row")
	assert.Len(t, result.History, 5)
}

func TestAggregate_IntradayScaling(t *testing.T) {
	// rate chosen so converted price == close, keeping expectations readable
	market := &fakeMarket{
		intraday: &sources.ChartSeries{
			Timestamps: []int64{1704412800, 1704413700, 1704414600},
			Closes:     []*decimal.Decimal{ptr(dec(t, "2600")), nil, ptr(dec(t, "2700"))},
		},
		rate: GramsPerTroyOunce,
	}
	agg := newTestAggregator(
		&fakeSpot{price: dec(t, "2780")},
		&fakeHistory{points: dailyPoints(2690, 2695, 2700, 2705, 2710)},
		market,
	)

	result := agg.Aggregate(context.Background())

	require.Len(t, result.Intraday, 2, "null quote must be skipped")

	// scaler = 2780/2700; each point scaled then floored
	assert.Equal(t, 2677.0, result.Intraday[0].Price) // floor(2600 * 2780/2700)
	assert.Equal(t, 2780.0, result.Intraday[1].Price) // floor(2700 * 2780/2700)

	// Labels are wall-clock HH:mm, dates full timestamps
	first := time.Unix(1704412800, 0).In(time.UTC)
	assert.Equal(t, first.Format("15:04"), result.Intraday[0].Label)
	assert.Equal(t, first.Format(time.RFC3339), result.Intraday[0].Date)
}

func TestAggregate_IntradayDerivesCurrentPrice(t *testing.T) {
	// No spot, no history: current comes from the scaled futures price
	market := &fakeMarket{
		intraday: &sources.ChartSeries{
			Timestamps: []int64{1704412800},
			Closes:     []*decimal.Decimal{ptr(dec(t, "2700"))},
		},
		rate:        GramsPerTroyOunce,
		backfillErr: errUpstream,
	}
	agg := newTestAggregator(&fakeSpot{err: errUpstream}, &fakeHistory{err: errUpstream}, market)

	result := agg.Aggregate(context.Background())

	// floor(2700 * 1.02)
	assert.Equal(t, 2754.0, result.CurrentPrice)
	assert.Empty(t, result.History)
}

func TestAggregate_IntradayBothOrNothing(t *testing.T) {
	tests := []struct {
		name   string
		market *fakeMarket
	}{
		{
			name: "chart fails",
			market: &fakeMarket{
				intradayErr: errUpstream,
				rate:        dec(t, "32"),
			},
		},
		{
			name: "fx fails",
			market: &fakeMarket{
				intraday: &sources.ChartSeries{
					Timestamps: []int64{1704412800},
					Closes:     []*decimal.Decimal{ptr(dec(t, "2700"))},
				},
				rateErr: errUpstream,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := newTestAggregator(
				&fakeSpot{price: dec(t, "2780")},
				&fakeHistory{points: dailyPoints(2690, 2695, 2700, 2705, 2710)},
				tt.market,
			)

			result := agg.Aggregate(context.Background())

			assert.Empty(t, result.Intraday)
			assert.Equal(t, 2780.0, result.CurrentPrice, "spot price must survive an intraday failure")
		})
	}
}

func TestAggregate_BackfillReplacesThinHistory(t *testing.T) {
	backfillTS := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	market := &fakeMarket{
		intradayErr: errUpstream,
		rateErr:     errUpstream,
		backfill: &sources.ChartSeries{
			Timestamps: []int64{backfillTS.Unix()},
			Closes:     []*decimal.Decimal{ptr(dec(t, "2600"))},
		},
	}
	agg := newTestAggregator(
		&fakeSpot{price: dec(t, "2780")},
		&fakeHistory{points: dailyPoints(2700, 2710)}, // fewer than 5 rows
		market,
	)

	result := agg.Aggregate(context.Background())

	require.Len(t, result.History, 1, "thin history must be replaced by the backfill series")

	// floor(2600 * 32.5 / 31.1034768 * 1.02)
	expected := dec(t, "2600").
		Mul(dec(t, "32.5")).
		Div(GramsPerTroyOunce).
		Mul(dec(t, "1.02")).
		Floor().InexactFloat64()
	assert.Equal(t, expected, result.History[0].Price)
	assert.Equal(t, "2024-01-05", result.History[0].Date)
	assert.Equal(t, "1/5", result.History[0].Label, "backfill labels have no leading zeros")
}

func TestAggregate_BackfillFailurePreservesHistory(t *testing.T) {
	agg := newTestAggregator(
		&fakeSpot{price: dec(t, "2780")},
		&fakeHistory{points: dailyPoints(2700, 2710)},
		&fakeMarket{intradayErr: errUpstream, rateErr: errUpstream, backfillErr: errUpstream},
	)

	result := agg.Aggregate(context.Background())

	require.Len(t, result.History, 2, "existing history must not be discarded when backfill fails")
	assert.Equal(t, 2710.0, result.History[1].Price)
}

func TestAggregate_TotalFailure(t *testing.T) {
	agg := newTestAggregator(
		&fakeSpot{err: errUpstream},
		&fakeHistory{err: errUpstream},
		&fakeMarket{intradayErr: errUpstream, rateErr: errUpstream, backfillErr: errUpstream},
	)

	result := agg.Aggregate(context.Background())

	assert.Equal(t, 2880.0, result.CurrentPrice)
	require.Len(t, result.History, 1)
	assert.Equal(t, sources.PricePoint{Date: "2024-01-06", Price: 2880, Label: "Today"}, result.History[0])
	assert.Empty(t, result.Intraday)
}

func TestAggregate_FallbackOverrides(t *testing.T) {
	agg := New(
		&fakeSpot{err: errUpstream},
		&fakeHistory{err: errUpstream},
		&fakeMarket{intradayErr: errUpstream, rateErr: errUpstream, backfillErr: errUpstream},
		NewFallbacks(1234, 30, 1.05),
		time.UTC,
		nil,
	)

	result := agg.Aggregate(context.Background())
	assert.Equal(t, 1234.0, result.CurrentPrice)
}

func TestAggregate_CurrentPriceAlwaysPositive(t *testing.T) {
	combos := []struct {
		name    string
		spot    sources.SpotQuoter
		history sources.HistoryProvider
		market  sources.MarketData
	}{
		{"all up", &fakeSpot{price: dec(t, "2780")}, &fakeHistory{points: dailyPoints(2690, 2695, 2700, 2705, 2710)}, &fakeMarket{intradayErr: errUpstream, rateErr: errUpstream}},
		{"spot down", &fakeSpot{err: errUpstream}, &fakeHistory{points: dailyPoints(2690, 2695, 2700, 2705, 2710)}, &fakeMarket{intradayErr: errUpstream, rateErr: errUpstream}},
		{"all down", &fakeSpot{err: errUpstream}, &fakeHistory{err: errUpstream}, &fakeMarket{intradayErr: errUpstream, rateErr: errUpstream, backfillErr: errUpstream}},
	}

	for _, tt := range combos {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestAggregator(tt.spot, tt.history, tt.market).Aggregate(context.Background())
			if result.CurrentPrice <= 0 {
				t.Errorf("CurrentPrice must be positive, got %v", result.CurrentPrice)
			}
			if result.History == nil || result.Intraday == nil {
				t.Error("Series must never be nil")
			}
		})
	}
}

func TestAggregate_HistoryAscending(t *testing.T) {
	agg := newTestAggregator(
		&fakeSpot{price: dec(t, "2780")},
		&fakeHistory{points: dailyPoints(2690, 2695, 2700, 2705, 2710)},
		&fakeMarket{intradayErr: errUpstream, rateErr: errUpstream},
	)

	result := agg.Aggregate(context.Background())
	for i := 1; i < len(result.History); i++ {
		if result.History[i-1].Date >= result.History[i].Date {
			t.Errorf("History not strictly ascending at %d: %s >= %s", i, result.History[i-1].Date, result.History[i].Date)
		}
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	agg := newTestAggregator(
		&fakeSpot{price: dec(t, "2780")},
		&fakeHistory{points: dailyPoints(2690, 2695, 2700, 2705, 2710)},
		&fakeMarket{
			intraday: &sources.ChartSeries{
				Timestamps: []int64{1704412800, 1704413700},
				Closes:     []*decimal.Decimal{ptr(dec(t, "2600")), ptr(dec(t, "2700"))},
			},
			rate: GramsPerTroyOunce,
		},
	)

	first := agg.Aggregate(context.Background())
	second := agg.Aggregate(context.Background())

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Consecutive runs with unchanged upstream data must match:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestFallbackResult(t *testing.T) {
	agg := newTestAggregator(&fakeSpot{}, &fakeHistory{}, &fakeMarket{})

	result := agg.FallbackResult()
	assert.Equal(t, 2880.0, result.CurrentPrice)
	assert.NotNil(t, result.History)
	assert.NotNil(t, result.Intraday)
	assert.Empty(t, result.History)
	assert.Empty(t, result.Intraday)
}
