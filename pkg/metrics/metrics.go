// Package metrics provides Prometheus metrics for the gold price service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceFetchesTotal is a counter of upstream fetch attempts by outcome.
	SourceFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gold_source_fetches_total",
			Help: "Total number of upstream fetch attempts by source and status",
		},
		[]string{"source", "status"},
	)

	// StageFallbacksTotal is a counter of pipeline stages that fell back to a default.
	StageFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gold_stage_fallbacks_total",
			Help: "Total number of aggregation stages that used a fallback path",
		},
		[]string{"stage"},
	)

	// AggregationDuration is a histogram of full pipeline run durations.
	AggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gold_aggregation_duration_seconds",
			Help:    "Duration of complete gold price aggregation runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CurrentPrice is a gauge of the most recently aggregated spot price.
	CurrentPrice = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gold_current_price",
			Help: "Most recently aggregated gold price (TWD per gram)",
		},
	)

	// HistoryPoints is a gauge of the number of points in the last history series.
	HistoryPoints = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gold_series_points",
			Help: "Number of points in the last aggregated series",
		},
		[]string{"series"},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 25},
		},
		[]string{"endpoint"},
	)
)

// Init initializes Prometheus metrics registry.
func Init() {
	prometheus.MustRegister(
		SourceFetchesTotal,
		StageFallbacksTotal,
		AggregationDuration,
		CurrentPrice,
		HistoryPoints,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordSourceFetch records an upstream fetch attempt.
func RecordSourceFetch(source string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	SourceFetchesTotal.WithLabelValues(source, status).Inc()
}

// RecordStageFallback records a pipeline stage falling back to a default.
func RecordStageFallback(stage string) {
	StageFallbacksTotal.WithLabelValues(stage).Inc()
}

// RecordAggregation records a completed aggregation run.
func RecordAggregation(duration time.Duration, currentPrice float64, historyPoints, intradayPoints int) {
	AggregationDuration.Observe(duration.Seconds())
	CurrentPrice.Set(currentPrice)
	HistoryPoints.WithLabelValues("history").Set(float64(historyPoints))
	HistoryPoints.WithLabelValues("intraday").Set(float64(intradayPoints))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
