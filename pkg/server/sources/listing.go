package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tc.com/gold-prices/pkg/logging"
	"tc.com/gold-prices/pkg/metrics"
	"tc.com/gold-prices/pkg/version"
)

// ListingSource scrapes the current gold passbook sell price from the
// bank's HTML listing page. The page lists one row per denomination
// with two price columns (buy, sell); the sell price is the second.
type ListingSource struct {
	url        string
	rowPattern string
	client     *http.Client
	logger     *logging.Logger
}

var (
	listingRowRegex  = regexp.MustCompile(`(?s)<tr[^>]*>.*?</tr>`)
	listingCellRegex = regexp.MustCompile(`(?s)<td[^>]*>(.*?)</td>`)
	htmlTagRegex     = regexp.MustCompile(`<[^>]*>`)
	listingNumRegex  = regexp.MustCompile(`^[0-9][0-9,]*(?:\.[0-9]+)?$`)
)

// NewListingSource creates a listing scraper. rowPattern selects the
// denomination row, e.g. "1公克" for the 1 gram line.
func NewListingSource(url, rowPattern string, timeout time.Duration, logger *logging.Logger) *ListingSource {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &ListingSource{
		url:        url,
		rowPattern: rowPattern,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SpotPrice fetches the listing page and extracts the sell price for
// the configured denomination row.
func (s *ListingSource) SpotPrice(ctx context.Context) (price decimal.Decimal, err error) {
	defer func() { metrics.RecordSourceFetch("listing", err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.AgentString())

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch listing page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read response: %w", err)
	}

	price, err = s.parseSellPrice(string(body))
	if err != nil {
		return decimal.Zero, err
	}

	s.logger.Debug("Extracted spot price from listing", "price", price.String())
	return price, nil
}

// parseSellPrice locates the denomination row and returns the second
// numeric cell (buy is first, sell is second).
func (s *ListingSource) parseSellPrice(html string) (decimal.Decimal, error) {
	rows := listingRowRegex.FindAllString(html, -1)

	for _, row := range rows {
		if !strings.Contains(row, s.rowPattern) {
			continue
		}

		cells := listingCellRegex.FindAllStringSubmatch(row, -1)
		prices := make([]decimal.Decimal, 0, 2)
		for _, cell := range cells {
			text := strings.TrimSpace(stripHTML(cell[1]))
			if !listingNumRegex.MatchString(text) {
				continue
			}
			value, err := decimal.NewFromString(strings.ReplaceAll(text, ",", ""))
			if err != nil || !value.IsPositive() {
				continue
			}
			prices = append(prices, value)
		}

		if len(prices) < 2 {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrPriceCellNotFound, s.rowPattern)
		}
		return prices[1], nil
	}

	return decimal.Zero, fmt.Errorf("%w: %q", ErrRowNotFound, s.rowPattern)
}

// stripHTML removes tags and collapses entities we care about.
func stripHTML(s string) string {
	s = htmlTagRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}
