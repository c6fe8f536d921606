package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tc.com/gold-prices/pkg/config"
	"tc.com/gold-prices/pkg/logging"
	"tc.com/gold-prices/pkg/metrics"
	"tc.com/gold-prices/pkg/server/aggregator"
	"tc.com/gold-prices/pkg/server/api"
	"tc.com/gold-prices/pkg/server/sources"
	"tc.com/gold-prices/pkg/version"
)

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer    = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("goldprice-go version %s\n", version.Version)
		os.Exit(0)
	}

	// Secrets and overrides may live in a .env file; the YAML config is
	// env-expanded after this.
	_ = godotenv.Load()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("Starting goldprice-go", "version", version.Version)

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	loc, err := time.LoadLocation(cfg.Aggregator.Timezone)
	if err != nil {
		// Validate already checked this; fall back rather than die.
		logger.Warn("Unknown timezone, using local", "timezone", cfg.Aggregator.Timezone)
		loc = time.Local
	}

	listing := sources.NewListingSource(
		cfg.Sources.Listing.URL,
		cfg.Sources.Listing.RowPattern,
		cfg.Sources.Listing.Timeout.ToDuration(),
		logger,
	)
	history := sources.NewHistoryFeedSource(
		cfg.Sources.History.URL,
		cfg.Sources.History.Timeout.ToDuration(),
		logger,
	)
	market := sources.NewMarketDataSource(
		cfg.Sources.MarketData.BaseURL,
		cfg.Sources.MarketData.FuturesSymbol,
		cfg.Sources.MarketData.FXSymbol,
		cfg.Sources.MarketData.Timeout.ToDuration(),
		logger,
	)

	agg := aggregator.New(
		listing,
		history,
		market,
		aggregator.NewFallbacks(
			cfg.Aggregator.FallbackPrice,
			cfg.Aggregator.FallbackExchangeRate,
			cfg.Aggregator.DefaultPremium,
		),
		loc,
		logger,
	)

	httpServer := api.NewServer(cfg.Server.HTTP.Addr, agg, cfg.Server.CacheTTL.ToDuration(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wsServer *api.WebSocketServer
	if cfg.Server.WebSocket.Enabled {
		wsServer = api.NewWebSocketServer(cfg.Server.WebSocket.Addr, logger)
		httpServer.SetWebSocketServer(wsServer)
		go func() {
			if err := wsServer.Start(ctx); err != nil {
				logger.Error("WebSocket server failed", "error", err)
			}
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", "signal", sig.String())
	case err := <-errChan:
		if err != nil {
			logger.Error("Server error", "error", err)
		}
	}

	if wsServer != nil {
		wsServer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}

	logger.Info("Shutdown complete")
}

// loadConfig reads the YAML config, falling back to built-in defaults
// when the default config path simply does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && path == "config/config.yaml" {
		fmt.Fprintln(os.Stderr, "No config file found, using defaults")
		return config.Default(), nil
	}
	return nil, err
}
