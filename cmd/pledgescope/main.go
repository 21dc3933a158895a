package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/pledgescope/api"
	"github.com/use-agent/pledgescope/browser"
	"github.com/use-agent/pledgescope/cleaner"
	"github.com/use-agent/pledgescope/config"
	"github.com/use-agent/pledgescope/scraper"
	"github.com/use-agent/pledgescope/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	config.InitLogger(cfg.Log)
	slog.Info("pledgescope starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxSessions", cfg.Browser.MaxSessions,
		"target", cfg.Scraper.TargetURL,
	)

	// ── 3. Build the evasion profile ────────────────────────────────
	profile, err := cfg.Evasion.Profile()
	if err != nil {
		slog.Error("invalid evasion profile", "error", err)
		os.Exit(1)
	}

	// ── 4. Initialise scraper (browsers launch per request) ─────────
	driver := browser.NewDriver(browser.Config{
		Bin:       cfg.Browser.BrowserBin,
		NoSandbox: cfg.Browser.NoSandbox,
		Proxy:     cfg.Browser.Proxy,
	})
	sc := scraper.NewScraper(driver, profile, cfg.Browser.MaxSessions, cfg.Scraper, cfg.Pipeline)

	var notifier *webhook.Notifier
	if cfg.Webhook.URL != "" {
		notifier = webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret)
		sc.SetNotifier(notifier)
		slog.Info("webhook notifications enabled", "signed", cfg.Webhook.Secret != "")
	}

	// ── 5. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(sc, cleaner.NewCleaner(), cfg, time.Now())

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// In-flight scrapes get their navigation budget to finish; each closes
	// its own browser on return.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scraper.NavigationTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	if notifier != nil {
		if err := notifier.Wait(ctx); err != nil {
			slog.Warn("pending webhook deliveries dropped", "error", err)
		}
	}

	slog.Info("pledgescope stopped")
}
