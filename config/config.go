package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/pledgescope/evasion"
)

// DefaultTargetURL is the fundraising page scraped when none is configured.
const DefaultTargetURL = "https://jesoutiens.fondationsaintluc.be/fr-FR/project/2-wheels-4-purpose?tab=vue-d-ensemble"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Pipeline  PipelineConfig
	Evasion   EvasionConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how browser processes are started.
type BrowserConfig struct {
	// MaxSessions caps concurrently running browser sessions.
	MaxSessions int // default: 2

	// Proxy is the proxy URL for all browser traffic.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// ScraperConfig controls one scrape of the target page.
type ScraperConfig struct {
	// TargetURL is the fundraising page.
	TargetURL string

	// RequestTimeout bounds a whole request, session launch included.
	RequestTimeout time.Duration // default: 90s

	// NavigationTimeout bounds navigation up to the load event.
	NavigationTimeout time.Duration // default: 45s

	// IdleTimeout bounds the best-effort wait for the DOM to settle.
	IdleTimeout time.Duration // default: 10s

	// InitialSettle is waited after consent dismissal, before extraction.
	InitialSettle time.Duration // default: 2.5s

	// RenderSettle is waited after scrolling in the debug render.
	RenderSettle time.Duration // default: 3s

	// RenderMaxBytes truncates the debug render unless full output is asked.
	RenderMaxBytes int // default: 100000
}

// PipelineConfig tunes the scroll-and-rescan stage.
type PipelineConfig struct {
	ScrollStep     int           // default: 600
	ScrollInterval time.Duration // default: 120ms
	SettleDelay    time.Duration // default: 2s
}

// EvasionConfig overrides parts of evasion.Default(). Empty values keep
// the defaults.
type EvasionConfig struct {
	UserAgent      string
	AcceptLanguage string
	LaunchModes    string // comma separated, e.g. "headless-new,headless-legacy"
	ViewportWidth  int
	ViewportHeight int
	Stealth        bool // default: true
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-client rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per client.
	Burst int // default: 3
}

// WebhookConfig controls scrape notifications. An empty URL disables them.
type WebhookConfig struct {
	URL    string
	Secret string // signs the body with HMAC-SHA256 when set
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PLEDGESCOPE_HOST", "0.0.0.0"),
			Port: envIntOr("PLEDGESCOPE_PORT", 8080),
			Mode: envOr("PLEDGESCOPE_MODE", "release"),
		},
		Browser: BrowserConfig{
			MaxSessions: envIntOr("PLEDGESCOPE_MAX_SESSIONS", 2),
			Proxy:       os.Getenv("PLEDGESCOPE_PROXY"),
			NoSandbox:   envBoolOr("PLEDGESCOPE_NO_SANDBOX", false),
			BrowserBin:  os.Getenv("PLEDGESCOPE_BROWSER_BIN"),
		},
		Scraper: ScraperConfig{
			TargetURL:         envOr("PLEDGESCOPE_TARGET_URL", DefaultTargetURL),
			RequestTimeout:    envDurationOr("PLEDGESCOPE_REQUEST_TIMEOUT", 90*time.Second),
			NavigationTimeout: envDurationOr("PLEDGESCOPE_NAV_TIMEOUT", 45*time.Second),
			IdleTimeout:       envDurationOr("PLEDGESCOPE_IDLE_TIMEOUT", 10*time.Second),
			InitialSettle:     envDurationOr("PLEDGESCOPE_INITIAL_SETTLE", 2500*time.Millisecond),
			RenderSettle:      envDurationOr("PLEDGESCOPE_RENDER_SETTLE", 3*time.Second),
			RenderMaxBytes:    envIntOr("PLEDGESCOPE_RENDER_MAX_BYTES", 100000),
		},
		Pipeline: PipelineConfig{
			ScrollStep:     envIntOr("PLEDGESCOPE_SCROLL_STEP", 600),
			ScrollInterval: envDurationOr("PLEDGESCOPE_SCROLL_INTERVAL", 120*time.Millisecond),
			SettleDelay:    envDurationOr("PLEDGESCOPE_SCROLL_SETTLE", 2*time.Second),
		},
		Evasion: EvasionConfig{
			UserAgent:      os.Getenv("PLEDGESCOPE_USER_AGENT"),
			AcceptLanguage: os.Getenv("PLEDGESCOPE_ACCEPT_LANGUAGE"),
			LaunchModes:    os.Getenv("PLEDGESCOPE_LAUNCH_MODES"),
			ViewportWidth:  envIntOr("PLEDGESCOPE_VIEWPORT_WIDTH", 0),
			ViewportHeight: envIntOr("PLEDGESCOPE_VIEWPORT_HEIGHT", 0),
			Stealth:        envBoolOr("PLEDGESCOPE_STEALTH", true),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PLEDGESCOPE_AUTH_ENABLED", false),
			APIKeys: envSliceOr("PLEDGESCOPE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PLEDGESCOPE_RATE_RPS", 1.0),
			Burst:             envIntOr("PLEDGESCOPE_RATE_BURST", 3),
		},
		Webhook: WebhookConfig{
			URL:    envOr("PLEDGESCOPE_WEBHOOK_URL", ""),
			Secret: envOr("PLEDGESCOPE_WEBHOOK_SECRET", ""),
		},
		Log: LogConfig{
			Level:  envOr("PLEDGESCOPE_LOG_LEVEL", "info"),
			Format: envOr("PLEDGESCOPE_LOG_FORMAT", "json"),
		},
	}
}

// Profile builds the evasion profile from the defaults and the overrides,
// and validates it.
func (c EvasionConfig) Profile() (evasion.Profile, error) {
	p := evasion.Default()
	if c.UserAgent != "" {
		p.UserAgent = c.UserAgent
	}
	if c.AcceptLanguage != "" {
		p.AcceptLanguage = c.AcceptLanguage
	}
	if c.LaunchModes != "" {
		modes, err := evasion.ParseLaunchModes(c.LaunchModes)
		if err != nil {
			return evasion.Profile{}, fmt.Errorf("PLEDGESCOPE_LAUNCH_MODES: %w", err)
		}
		p.LaunchModes = modes
	}
	if c.ViewportWidth > 0 {
		p.Viewport.Width = c.ViewportWidth
	}
	if c.ViewportHeight > 0 {
		p.Viewport.Height = c.ViewportHeight
	}
	p.Stealth = c.Stealth

	if err := p.Validate(); err != nil {
		return evasion.Profile{}, err
	}
	return p, nil
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
