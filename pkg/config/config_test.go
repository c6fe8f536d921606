package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTP.Addr != ":8080" {
		t.Errorf("Expected default addr :8080, got %s", cfg.Server.HTTP.Addr)
	}
	if cfg.Server.CacheTTL.ToDuration() != 60*time.Second {
		t.Errorf("Expected default cache TTL 60s, got %s", cfg.Server.CacheTTL.ToDuration())
	}
	if cfg.Sources.Listing.RowPattern != "1公克" {
		t.Errorf("Expected default row pattern, got %s", cfg.Sources.Listing.RowPattern)
	}
	if cfg.Sources.MarketData.FuturesSymbol != "GC=F" {
		t.Errorf("Expected default futures symbol GC=F, got %s", cfg.Sources.MarketData.FuturesSymbol)
	}
	if cfg.Aggregator.FallbackPrice != 2880 {
		t.Errorf("Expected default fallback price 2880, got %v", cfg.Aggregator.FallbackPrice)
	}
	if cfg.Aggregator.FallbackExchangeRate != 32.5 {
		t.Errorf("Expected default fallback FX 32.5, got %v", cfg.Aggregator.FallbackExchangeRate)
	}
	if cfg.Aggregator.DefaultPremium != 1.02 {
		t.Errorf("Expected default premium 1.02, got %v", cfg.Aggregator.DefaultPremium)
	}
	if cfg.Aggregator.Timezone != "Asia/Taipei" {
		t.Errorf("Expected default timezone Asia/Taipei, got %s", cfg.Aggregator.Timezone)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}
}

func TestLoad_Values(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  http:
    addr: ":9000"
  cache_ttl: 90s
aggregator:
  fallback_price: 3000
logging:
  level: debug
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTP.Addr != ":9000" {
		t.Errorf("Expected :9000, got %s", cfg.Server.HTTP.Addr)
	}
	if cfg.Server.CacheTTL.ToDuration() != 90*time.Second {
		t.Errorf("Expected 90s, got %s", cfg.Server.CacheTTL.ToDuration())
	}
	if cfg.Aggregator.FallbackPrice != 3000 {
		t.Errorf("Expected 3000, got %v", cfg.Aggregator.FallbackPrice)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug, got %s", cfg.Logging.Level)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("GOLD_LISTING_URL", "https://example.com/gold")

	cfg, err := Load(writeConfig(t, `
sources:
  listing:
    url: "${GOLD_LISTING_URL}"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Sources.Listing.URL != "https://example.com/gold" {
		t.Errorf("Expected env-expanded URL, got %s", cfg.Sources.Listing.URL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [broken"))
	if err == nil {
		t.Error("Expected error for invalid YAML, got none")
	}
}

func TestDuration_Unmarshal(t *testing.T) {
	cfg, err := Load(writeConfig(t, "sources:\n  listing:\n    timeout: 1500ms\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Sources.Listing.Timeout.ToDuration() != 1500*time.Millisecond {
		t.Errorf("Expected 1500ms, got %s", cfg.Sources.Listing.Timeout.ToDuration())
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"bad listing url", func(c *Config) { c.Sources.Listing.URL = "not a url" }, ErrInvalidURL},
		{"ftp url", func(c *Config) { c.Sources.History.URL = "ftp://example.com/feed" }, ErrInvalidURL},
		{"bad timezone", func(c *Config) { c.Aggregator.Timezone = "Mars/Olympus" }, ErrInvalidTimezone},
		{"negative fallback price", func(c *Config) { c.Aggregator.FallbackPrice = -1 }, ErrInvalidFallbackPrice},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, ErrInvalidLogLevel},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}
