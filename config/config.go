package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Output    OutputConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all sessions.
	Proxy string

	// Stealth injects anti-bot-detection evasions into every session.
	Stealth bool // default: true

	// UserAgent overrides the browser's user agent when set.
	UserAgent string

	// ViewportWidth and ViewportHeight size every session's window.
	ViewportWidth  int // default: 1920
	ViewportHeight int // default: 1080

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockTrackers drops requests to known analytics and ad hosts.
	BlockTrackers bool // default: true
}

// ScraperConfig controls traversal and extraction behavior.
type ScraperConfig struct {
	// Workers is the size of the category worker pool.
	Workers int // default: 5

	// NavigationTimeout bounds a single page navigation.
	NavigationTimeout time.Duration // default: 30s

	// ReadyTimeout bounds the wait for listing items to render.
	ReadyTimeout time.Duration // default: 10s

	// ConsentTimeout bounds the wait for the cookie banner's accept button.
	ConsentTimeout time.Duration // default: 10s

	// StableQuiet is how long the DOM must stay unchanged to count as settled.
	StableQuiet time.Duration // default: 500ms

	// StableTimeout bounds each DOM-settle wait.
	StableTimeout time.Duration // default: 5s

	// PollInterval is the polling period of condition waits.
	PollInterval time.Duration // default: 250ms

	// ScrollBatch is the number of containers scrolled past per step.
	ScrollBatch int // default: 100

	// PageInterval is the minimum gap between navigations of one category.
	PageInterval time.Duration // default: 0 (no pacing)
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CacheConfig controls the job result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached aggregates.
	MaxEntries int // default: 100
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
	File   string // empty: stdout
}

// OutputConfig selects where aggregates are persisted.
type OutputConfig struct {
	// Sink is "file" or "redis".
	Sink string // default: "file"

	// Dir is the base directory of the file sink.
	Dir string // default: "./output"

	// Format is "csv" or "columnar".
	Format string // default: "csv"

	// Prefix names output files and streams.
	Prefix string // default: "products"

	// RedisAddr and RedisDB locate the Redis server of the redis sink.
	RedisAddr string // default: "localhost:6379"
	RedisDB   int    // default: 0

	// RedisStream is the base stream key of the redis sink.
	RedisStream string // default: "shelfscan"
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment take precedence.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	return &Config{
		Server: ServerConfig{
			Host: envOr("SHELFSCAN_HOST", "0.0.0.0"),
			Port: envIntOr("SHELFSCAN_PORT", 8080),
			Mode: envOr("SHELFSCAN_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("SHELFSCAN_HEADLESS", true),
			NoSandbox:      envBoolOr("SHELFSCAN_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("SHELFSCAN_BROWSER_BIN"),
			Proxy:          os.Getenv("SHELFSCAN_PROXY"),
			Stealth:        envBoolOr("SHELFSCAN_STEALTH", true),
			UserAgent:      os.Getenv("SHELFSCAN_USER_AGENT"),
			ViewportWidth:  envIntOr("SHELFSCAN_VIEWPORT_WIDTH", 1920),
			ViewportHeight: envIntOr("SHELFSCAN_VIEWPORT_HEIGHT", 1080),
			BlockedResourceTypes: envSliceOr("SHELFSCAN_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockTrackers: envBoolOr("SHELFSCAN_BLOCK_TRACKERS", true),
		},
		Scraper: ScraperConfig{
			Workers:           envIntOr("SHELFSCAN_WORKERS", 5),
			NavigationTimeout: envDurationOr("SHELFSCAN_NAV_TIMEOUT", 30*time.Second),
			ReadyTimeout:      envDurationOr("SHELFSCAN_READY_TIMEOUT", 10*time.Second),
			ConsentTimeout:    envDurationOr("SHELFSCAN_CONSENT_TIMEOUT", 10*time.Second),
			StableQuiet:       envDurationOr("SHELFSCAN_STABLE_QUIET", 500*time.Millisecond),
			StableTimeout:     envDurationOr("SHELFSCAN_STABLE_TIMEOUT", 5*time.Second),
			PollInterval:      envDurationOr("SHELFSCAN_POLL_INTERVAL", 250*time.Millisecond),
			ScrollBatch:       envIntOr("SHELFSCAN_SCROLL_BATCH", 100),
			PageInterval:      envDurationOr("SHELFSCAN_PAGE_INTERVAL", 0),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SHELFSCAN_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SHELFSCAN_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SHELFSCAN_RATE_RPS", 1.0),
			Burst:             envIntOr("SHELFSCAN_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SHELFSCAN_CACHE_MAX_ENTRIES", 100),
		},
		Log: LogConfig{
			Level:  envOr("SHELFSCAN_LOG_LEVEL", "info"),
			Format: envOr("SHELFSCAN_LOG_FORMAT", "json"),
			File:   os.Getenv("SHELFSCAN_LOG_FILE"),
		},
		Output: OutputConfig{
			Sink:        envOr("SHELFSCAN_OUTPUT_SINK", "file"),
			Dir:         envOr("SHELFSCAN_OUTPUT_DIR", "./output"),
			Format:      envOr("SHELFSCAN_OUTPUT_FORMAT", "csv"),
			Prefix:      envOr("SHELFSCAN_OUTPUT_PREFIX", "products"),
			RedisAddr:   envOr("SHELFSCAN_REDIS_ADDR", "localhost:6379"),
			RedisDB:     envIntOr("SHELFSCAN_REDIS_DB", 0),
			RedisStream: envOr("SHELFSCAN_REDIS_STREAM", "shelfscan"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
