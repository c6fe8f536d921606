// Package api provides HTTP and WebSocket API endpoints for the gold price service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tc.com/gold-prices/pkg/logging"
	"tc.com/gold-prices/pkg/metrics"
	"tc.com/gold-prices/pkg/server/aggregator"
	"tc.com/gold-prices/pkg/server/sources"
)

// aggregateTimeout bounds one full pipeline run (up to five upstream
// calls) so the endpoint always responds.
const aggregateTimeout = 25 * time.Second

// Aggregator is the pipeline the API serves.
type Aggregator interface {
	Aggregate(ctx context.Context) aggregator.Result
	FallbackResult() aggregator.Result
}

// Server represents the HTTP API server.
type Server struct {
	addr       string
	aggregator Aggregator
	server     *http.Server
	logger     *logging.Logger

	cacheTTL  time.Duration
	cacheMu   sync.Mutex
	lastCache *aggregator.Result
	cacheTime time.Time

	wsServer *WebSocketServer // Optional WebSocket server for streaming
}

// goldResponse is the caller-facing payload.
type goldResponse struct {
	Success      bool                 `json:"success"`
	Error        string               `json:"error,omitempty"`
	CurrentPrice float64              `json:"currentPrice"`
	History      []sources.PricePoint `json:"history"`
	Intraday     []sources.PricePoint `json:"intraday"`
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, agg Aggregator, cacheTTL time.Duration, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Server{
		addr:       addr,
		aggregator: agg,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// SetWebSocketServer sets the WebSocket server for streaming updates.
func (s *Server) SetWebSocketServer(ws *WebSocketServer) {
	s.wsServer = ws
}

// Handler returns the request mux, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/gold", s.handleGold)
	mux.HandleFunc("/gold", s.handleGold) // Compatibility with the frontend fetch path
	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		s.logger.Info("Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleHealth handles /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RecordHTTPRequest("/health", "200", time.Since(start))
	}()

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleGold handles /v1/gold and /gold endpoints.
func (s *Server) handleGold(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "200"
	defer func() {
		metrics.RecordHTTPRequest(r.URL.Path, status, time.Since(start))
	}()

	// Check cache: a run costs up to five upstream calls
	if cached := s.cachedResult(); cached != nil {
		s.sendJSON(w, http.StatusOK, successResponse(*cached))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), aggregateTimeout)
	defer cancel()

	result, err := s.runAggregation(ctx)
	if err != nil {
		// Assembly failure. Even the failure payload carries a usable price.
		status = "500"
		s.logger.Error("Aggregation failed", "error", err.Error())
		fallback := s.aggregator.FallbackResult()
		s.sendJSON(w, http.StatusInternalServerError, goldResponse{
			Success:      false,
			Error:        err.Error(),
			CurrentPrice: fallback.CurrentPrice,
			History:      fallback.History,
			Intraday:     fallback.Intraday,
		})
		return
	}

	s.storeCache(result)

	if s.wsServer != nil {
		s.wsServer.SendUpdate(result)
	}

	s.sendJSON(w, http.StatusOK, successResponse(result))
}

// runAggregation executes one pipeline run, converting a panic during
// response assembly into an error per the failure contract.
func (s *Server) runAggregation(ctx context.Context) (result aggregator.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("aggregation failed: %v", r)
		}
	}()

	return s.aggregator.Aggregate(ctx), nil
}

// cachedResult returns the cached result if it is still fresh.
func (s *Server) cachedResult() *aggregator.Result {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if s.lastCache != nil && time.Since(s.cacheTime) < s.cacheTTL {
		return s.lastCache
	}
	return nil
}

func (s *Server) storeCache(result aggregator.Result) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.lastCache = &result
	s.cacheTime = time.Now()
}

func successResponse(result aggregator.Result) goldResponse {
	return goldResponse{
		Success:      true,
		CurrentPrice: result.CurrentPrice,
		History:      result.History,
		Intraday:     result.Intraday,
	}
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}
