// Package config defines the top-level configuration for the trading
// simulator and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TRADESIM_* environment
// variables.
type Config struct {
	Server   ServerConfig `toml:"server"`
	Stream   StreamConfig `toml:"stream"`
	Feed     FeedConfig   `toml:"feed"`
	Market   MarketConfig `toml:"market"`
	Mode     string       `toml:"mode"`
	LogLevel string       `toml:"log_level"`
}

// ServerConfig holds HTTP + WebSocket server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// StreamConfig holds the broker's dissemination cadences.
type StreamConfig struct {
	QuoteInterval     duration `toml:"quote_interval"`
	BookInterval      duration `toml:"book_interval"`
	HeartbeatInterval duration `toml:"heartbeat_interval"`
	TradeMinDelay     duration `toml:"trade_min_delay"`
	TradeMaxDelay     duration `toml:"trade_max_delay"`
	ConnectedDelay    duration `toml:"connected_delay"`
}

// FeedConfig holds the broker WebSocket endpoint and symbol set the client
// side consumes.
type FeedConfig struct {
	URL     string   `toml:"url"`
	Symbols []string `toml:"symbols"`
}

// MarketConfig holds simulator seeding parameters. An empty BasePrices map
// falls back to the built-in watchlist.
type MarketConfig struct {
	BasePrices map[string]float64 `toml:"base_prices"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "500ms", "10s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "500ms" or "10s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Enabled:     true,
			Port:        4001,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Stream: StreamConfig{
			QuoteInterval:     duration{time.Second},
			BookInterval:      duration{500 * time.Millisecond},
			HeartbeatInterval: duration{10 * time.Second},
			TradeMinDelay:     duration{2 * time.Second},
			TradeMaxDelay:     duration{5 * time.Second},
			ConnectedDelay:    duration{100 * time.Millisecond},
		},
		Feed: FeedConfig{
			URL:     "ws://localhost:4001/ws",
			Symbols: []string{"AAPL", "MSFT", "SPY"},
		},
		Market: MarketConfig{
			BasePrices: map[string]float64{},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve": true,
	"watch": true,
	"full":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, watch, full)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	needsServer := mode == "serve" || mode == "full"
	if needsServer {
		if !c.Server.Enabled {
			errs = append(errs, "server: must be enabled for mode "+c.Mode)
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if c.Stream.QuoteInterval.Duration <= 0 {
		errs = append(errs, "stream: quote_interval must be positive")
	}
	if c.Stream.BookInterval.Duration <= 0 {
		errs = append(errs, "stream: book_interval must be positive")
	}
	if c.Stream.HeartbeatInterval.Duration <= 0 {
		errs = append(errs, "stream: heartbeat_interval must be positive")
	}
	if c.Stream.TradeMinDelay.Duration <= 0 {
		errs = append(errs, "stream: trade_min_delay must be positive")
	}
	if c.Stream.TradeMaxDelay.Duration < c.Stream.TradeMinDelay.Duration {
		errs = append(errs, "stream: trade_max_delay must not be less than trade_min_delay")
	}

	needsFeed := mode == "watch" || mode == "full"
	if needsFeed {
		if c.Feed.URL == "" {
			errs = append(errs, "feed: url must not be empty for mode "+c.Mode)
		}
		if len(c.Feed.Symbols) == 0 {
			errs = append(errs, "feed: at least one symbol is required for mode "+c.Mode)
		}
	}

	for sym, price := range c.Market.BasePrices {
		if price <= 0 {
			errs = append(errs, fmt.Sprintf("market: base price for %s must be positive, got %v", sym, price))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
