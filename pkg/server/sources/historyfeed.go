package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tc.com/gold-prices/pkg/logging"
	"tc.com/gold-prices/pkg/metrics"
	"tc.com/gold-prices/pkg/version"
)

// HistoryFeedSource fetches the bank's comma-separated daily rate feed.
// Rows are `date(YYYYMMDD),buy,...,sell,...` with the sell price in
// column 3 (0-indexed). The first row is a header and is discarded.
type HistoryFeedSource struct {
	url    string
	client *http.Client
	logger *logging.Logger
}

// NewHistoryFeedSource creates a history feed client.
func NewHistoryFeedSource(url string, timeout time.Duration, logger *logging.Logger) *HistoryFeedSource {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &HistoryFeedSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// DailyHistory fetches and parses the feed. The returned series is
// normalized to ascending date order (oldest first).
func (s *HistoryFeedSource) DailyHistory(ctx context.Context) (points []PricePoint, err error) {
	defer func() { metrics.RecordSourceFetch("history", err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.AgentString())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	points = parseHistoryFeed(string(body))
	if len(points) == 0 {
		return nil, fmt.Errorf("%w", ErrNoHistoryRows)
	}

	s.logger.Debug("Parsed history feed", "rows", len(points))
	return points, nil
}

// parseHistoryFeed parses the feed body, skipping the header row and
// any row that is malformed. Invalid rows are dropped, not fatal.
func parseHistoryFeed(body string) []PricePoint {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")

	points := make([]PricePoint, 0, len(lines))
	for i, line := range lines {
		if i == 0 {
			// Header row
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		point, ok := parseHistoryRow(line)
		if !ok {
			continue
		}
		points = append(points, point)
	}

	return normalizeOrder(points)
}

// parseHistoryRow parses a single `YYYYMMDD,buy,...,sell,...` row.
func parseHistoryRow(line string) (PricePoint, bool) {
	cols := strings.Split(line, ",")
	if len(cols) < 4 {
		return PricePoint{}, false
	}

	rawDate := strings.TrimSpace(cols[0])
	if len(rawDate) < 8 {
		return PricePoint{}, false
	}

	sell, err := decimal.NewFromString(strings.TrimSpace(cols[3]))
	if err != nil {
		return PricePoint{}, false
	}

	price, _ := sell.Float64()
	return PricePoint{
		Date:  rawDate[:4] + "-" + rawDate[4:6] + "-" + rawDate[6:8],
		Price: price,
		Label: rawDate[4:6] + "/" + rawDate[6:8],
	}, true
}

// normalizeOrder makes the series ascending by date. The feed's native
// order is detected by comparing the first and last rows; this is a
// best-effort heuristic and would silently invert if the upstream
// format ever mixed orders within one response.
func normalizeOrder(points []PricePoint) []PricePoint {
	if len(points) >= 2 && points[0].Date > points[len(points)-1].Date {
		for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
			points[i], points[j] = points[j], points[i]
		}
	}
	return points
}
