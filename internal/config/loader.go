package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRADESIM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			// Missing file: run on defaults plus env overrides.
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRADESIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators adjust endpoints and cadences at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setBool(&cfg.Server.Enabled, "TRADESIM_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRADESIM_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRADESIM_SERVER_CORS_ORIGINS")

	// ── Stream ──
	setDuration(&cfg.Stream.QuoteInterval, "TRADESIM_STREAM_QUOTE_INTERVAL")
	setDuration(&cfg.Stream.BookInterval, "TRADESIM_STREAM_BOOK_INTERVAL")
	setDuration(&cfg.Stream.HeartbeatInterval, "TRADESIM_STREAM_HEARTBEAT_INTERVAL")
	setDuration(&cfg.Stream.TradeMinDelay, "TRADESIM_STREAM_TRADE_MIN_DELAY")
	setDuration(&cfg.Stream.TradeMaxDelay, "TRADESIM_STREAM_TRADE_MAX_DELAY")
	setDuration(&cfg.Stream.ConnectedDelay, "TRADESIM_STREAM_CONNECTED_DELAY")

	// ── Feed ──
	setStr(&cfg.Feed.URL, "TRADESIM_FEED_URL")
	setStringSlice(&cfg.Feed.Symbols, "TRADESIM_FEED_SYMBOLS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRADESIM_MODE")
	setStr(&cfg.LogLevel, "TRADESIM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
