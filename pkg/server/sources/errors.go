// Package sources provides clients for the upstream gold price sources.
package sources

import "errors"

var (
	// ErrUnexpectedStatus indicates an unexpected HTTP status code.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
	// ErrRowNotFound indicates that the listing row pattern was not found.
	ErrRowNotFound = errors.New("listing row not found")
	// ErrPriceCellNotFound indicates that the sell price cell was not found in the listing row.
	ErrPriceCellNotFound = errors.New("sell price cell not found in listing row")
	// ErrNoHistoryRows indicates that the history feed yielded no valid rows.
	ErrNoHistoryRows = errors.New("no valid rows in history feed")
	// ErrEmptyChart indicates a chart response with no result.
	ErrEmptyChart = errors.New("empty chart result")
	// ErrNoExchangeRate indicates that no usable exchange rate was found.
	ErrNoExchangeRate = errors.New("no exchange rate in response")
	// ErrChartAPIError indicates that the chart API returned an error payload.
	ErrChartAPIError = errors.New("chart API returned an error")
)
