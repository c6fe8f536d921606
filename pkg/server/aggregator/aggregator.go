package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tc.com/gold-prices/pkg/logging"
	"tc.com/gold-prices/pkg/metrics"
	"tc.com/gold-prices/pkg/server/sources"
)

// Chart parameters for the two futures queries.
const (
	intradayInterval = "15m"
	intradayRange    = "1d"
	backfillInterval = "1d"
	backfillRange    = "3mo"

	// minHistoryPoints is the threshold below which the CSV history is
	// considered too thin and the backfill kicks in.
	minHistoryPoints = 5
)

// Aggregator runs the reconciliation pipeline. It holds no state
// between runs; every Aggregate call is a fresh, idempotent pass over
// the upstream sources.
type Aggregator struct {
	spot    sources.SpotQuoter
	history sources.HistoryProvider
	market  sources.MarketData
	fb      Fallbacks
	loc     *time.Location
	logger  *logging.Logger
	now     func() time.Time
}

// snapshot is the best-known state threaded through the pipeline.
// Each stage takes a snapshot and returns an updated one; stages never
// share mutable state.
type snapshot struct {
	current  decimal.Decimal
	history  []sources.PricePoint
	intraday []sources.PricePoint
}

// New creates an aggregator over the three upstream sources. loc is
// the timezone used for intraday labels and synthetic dates.
func New(spot sources.SpotQuoter, history sources.HistoryProvider, market sources.MarketData, fb Fallbacks, loc *time.Location, logger *logging.Logger) *Aggregator {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{
		spot:    spot,
		history: history,
		market:  market,
		fb:      fb,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
	}
}

// Aggregate runs the full pipeline. It never fails: every stage is
// independently guarded, and on total upstream failure the result
// still carries the fallback price and a synthetic history point.
func (a *Aggregator) Aggregate(ctx context.Context) Result {
	start := time.Now()

	snap := snapshot{}
	snap = a.fetchSpot(ctx, snap)
	snap = a.fetchHistory(ctx, snap)
	snap = a.spotFromHistory(snap)
	snap = a.fetchIntraday(ctx, snap)
	snap = a.backfillHistory(ctx, snap)
	snap = a.finalize(snap)

	result := Result{
		CurrentPrice: snap.current.InexactFloat64(),
		History:      orEmpty(snap.history),
		Intraday:     orEmpty(snap.intraday),
	}

	metrics.RecordAggregation(time.Since(start), result.CurrentPrice, len(result.History), len(result.Intraday))
	a.logger.Info("Aggregation complete",
		"current_price", result.CurrentPrice,
		"history_points", len(result.History),
		"intraday_points", len(result.Intraday),
		"duration", time.Since(start).String())

	return result
}

// FallbackResult is the payload used when even response assembly
// failed. It still carries a usable price.
func (a *Aggregator) FallbackResult() Result {
	return Result{
		CurrentPrice: a.fb.Price.InexactFloat64(),
		History:      []sources.PricePoint{},
		Intraday:     []sources.PricePoint{},
	}
}

// fetchSpot extracts the sell price from the bank listing (stage 1).
// Failure leaves the current price unset; later stages compensate.
func (a *Aggregator) fetchSpot(ctx context.Context, snap snapshot) snapshot {
	price, err := a.spot.SpotPrice(ctx)
	if err != nil {
		a.logger.Warn("Spot listing unavailable", "error", err.Error())
		metrics.RecordStageFallback("spot")
		return snap
	}

	snap.current = price
	return snap
}

// fetchHistory loads the CSV daily history (stage 2). This runs even
// when the spot listing succeeded: history is the weekend recovery
// path and must be obtainable when the market is closed.
func (a *Aggregator) fetchHistory(ctx context.Context, snap snapshot) snapshot {
	points, err := a.history.DailyHistory(ctx)
	if err != nil {
		a.logger.Warn("History feed unavailable", "error", err.Error())
		metrics.RecordStageFallback("history")
		return snap
	}

	snap.history = points
	return snap
}

// spotFromHistory fills a missing spot price from the most recent
// history entry (stage 3).
func (a *Aggregator) spotFromHistory(snap snapshot) snapshot {
	if snap.current.IsPositive() || len(snap.history) == 0 {
		return snap
	}

	last := snap.history[len(snap.history)-1]
	snap.current = decimal.NewFromFloat(last.Price)
	metrics.RecordStageFallback("spot_from_history")
	a.logger.Info("Using last history price as spot", "date", last.Date, "price", last.Price)
	return snap
}

// fetchIntraday builds the intraday trend from the futures chart and
// the same-day FX rate (stage 4). The two fetches run concurrently and
// both must succeed; a partial pair is useless for conversion.
func (a *Aggregator) fetchIntraday(ctx context.Context, snap snapshot) snapshot {
	var (
		chart    *sources.ChartSeries
		chartErr error
		rate     decimal.Decimal
		rateErr  error
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		chart, chartErr = a.market.Chart(ctx, intradayInterval, intradayRange)
	}()
	go func() {
		defer wg.Done()
		rate, rateErr = a.market.ExchangeRate(ctx)
	}()
	wg.Wait()

	if chartErr != nil || rateErr != nil {
		a.logger.Warn("Intraday data unavailable",
			"chart_error", errString(chartErr), "fx_error", errString(rateErr))
		metrics.RecordStageFallback("intraday")
		return snap
	}

	// USD per troy ounce -> TWD per gram
	factor := rate.Div(GramsPerTroyOunce)
	converted := make([]*decimal.Decimal, len(chart.Closes))
	var lastConverted decimal.Decimal
	for i, quote := range chart.Closes {
		if quote == nil {
			continue
		}
		value := quote.Mul(factor)
		converted[i] = &value
		lastConverted = value
	}

	if !lastConverted.IsPositive() {
		a.logger.Warn("Intraday chart had no usable quotes")
		metrics.RecordStageFallback("intraday")
		return snap
	}

	// Futures prices trade at a premium to the local retail listing.
	// Anchor the series to the known spot price when we have one,
	// otherwise assume the configured premium. The scaler is kept as a
	// numerator/denominator pair and applied multiply-first so the last
	// point lands exactly on the spot price.
	num, den := a.fb.Premium, decimal.NewFromInt(1)
	if snap.current.IsPositive() {
		num, den = snap.current, lastConverted
	} else {
		snap.current = lastConverted.Mul(num).Floor()
	}

	points := make([]sources.PricePoint, 0, len(chart.Timestamps))
	for i, ts := range chart.Timestamps {
		if i >= len(converted) || converted[i] == nil {
			continue
		}
		t := time.Unix(ts, 0).In(a.loc)
		price, _ := converted[i].Mul(num).Div(den).Floor().Float64()
		points = append(points, sources.PricePoint{
			Date:  t.Format(time.RFC3339),
			Price: price,
			Label: t.Format("15:04"),
		})
	}

	snap.intraday = points
	return snap
}

// backfillHistory replaces a too-thin daily history with a 3-month
// futures-derived series (stage 5). With no FX context at this point,
// conversion uses the fixed fallback rate and premium. A non-empty
// stage-2 history is preserved when the backfill itself fails.
func (a *Aggregator) backfillHistory(ctx context.Context, snap snapshot) snapshot {
	if len(snap.history) >= minHistoryPoints {
		return snap
	}

	metrics.RecordStageFallback("backfill")
	chart, err := a.market.Chart(ctx, backfillInterval, backfillRange)
	if err != nil {
		a.logger.Warn("History backfill unavailable, keeping existing history",
			"error", err.Error(), "existing_points", len(snap.history))
		return snap
	}

	factor := a.fb.ExchangeRate.Div(GramsPerTroyOunce).Mul(a.fb.Premium)
	points := make([]sources.PricePoint, 0, len(chart.Timestamps))
	for i, ts := range chart.Timestamps {
		if i >= len(chart.Closes) || chart.Closes[i] == nil {
			continue
		}
		t := time.Unix(ts, 0).In(a.loc)
		price, _ := chart.Closes[i].Mul(factor).Floor().Float64()
		points = append(points, sources.PricePoint{
			Date:  t.Format("2006-01-02"),
			Price: price,
			Label: fmt.Sprintf("%d/%d", int(t.Month()), t.Day()),
		})
	}

	if len(points) == 0 {
		a.logger.Warn("History backfill yielded no points, keeping existing history")
		return snap
	}

	a.logger.Info("Backfilled history from futures chart", "points", len(points))
	snap.history = points
	return snap
}

// finalize guarantees a positive current price (stage 6). The
// hard-coded fallback with a single synthetic point is the path of
// last resort when every upstream failed.
func (a *Aggregator) finalize(snap snapshot) snapshot {
	if snap.current.IsPositive() {
		return snap
	}

	if len(snap.history) > 0 {
		snap.current = decimal.NewFromFloat(snap.history[len(snap.history)-1].Price)
		return snap
	}

	metrics.RecordStageFallback("final")
	a.logger.Warn("All sources failed, using fallback price", "price", a.fb.Price.String())
	snap.current = a.fb.Price
	snap.history = []sources.PricePoint{{
		Date:  a.now().In(a.loc).Format("2006-01-02"),
		Price: a.fb.Price.InexactFloat64(),
		Label: "Today",
	}}
	return snap
}

func orEmpty(points []sources.PricePoint) []sources.PricePoint {
	if points == nil {
		return []sources.PricePoint{}
	}
	return points
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
