// Package browser drives a real Chromium instance for one request at a time:
// launching with fallbacks, applying the evasion profile, navigating and
// capturing the JSON responses the page fetches while it loads.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/pledgescope/evasion"
	"github.com/use-agent/pledgescope/models"
)

// Config controls how the browser process is started.
type Config struct {
	// Bin overrides the Chromium binary path. Empty lets rod find or
	// download one.
	Bin string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool

	// Proxy is passed to --proxy-server when set.
	Proxy string
}

// Driver opens browser sessions. It keeps no per-session state and is safe
// for concurrent use.
type Driver struct {
	cfg Config
}

// NewDriver creates a Driver.
func NewDriver(cfg Config) *Driver {
	return &Driver{cfg: cfg}
}

// process is a launched and connected browser.
type process struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// Open launches a browser with the first launch mode of the profile that
// works, opens a blank page and applies the profile to it. The returned
// Session must be closed by the caller.
func (d *Driver) Open(ctx context.Context, profile evasion.Profile) (*Session, error) {
	if err := profile.Validate(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal, "invalid evasion profile", err)
	}

	proc, mode, err := launchFirst(ctx, profile.LaunchModes, d.launch)
	if err != nil {
		return nil, err
	}
	slog.Info("browser launched", "mode", mode)

	s := newSession(ctx, proc, mode, profile)

	page, err := proc.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.Close()
		return nil, models.NewScrapeError(models.ErrCodeLaunchFailed, "failed to open a page", err)
	}
	s.page = page

	if err := s.applyProfile(); err != nil {
		s.Close()
		return nil, models.NewScrapeError(models.ErrCodeLaunchFailed, "failed to apply evasion profile", err)
	}
	s.autoDismissDialogs()

	return s, nil
}

// launchFirst tries each mode in order and commits to the first one that
// starts. When every mode fails, the error carries each variant's failure.
func launchFirst[T any](ctx context.Context, modes []evasion.LaunchMode, try func(context.Context, evasion.LaunchMode) (T, error)) (T, evasion.LaunchMode, error) {
	var zero T
	var errs []error
	for _, mode := range modes {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		v, err := try(ctx, mode)
		if err == nil {
			return v, mode, nil
		}
		slog.Warn("browser launch variant failed", "mode", mode, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", mode, err))
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no launch modes configured"))
	}
	return zero, "", models.NewScrapeError(
		models.ErrCodeLaunchFailed,
		"failed to launch browser",
		errors.Join(errs...),
	)
}

// launch starts and connects one browser variant. A half-started process is
// killed before returning an error.
func (d *Driver) launch(ctx context.Context, mode evasion.LaunchMode) (*process, error) {
	l := d.newLauncher(mode).Context(ctx)

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		l.Cleanup()
		return nil, err
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &process{launcher: l, browser: b}, nil
}

// newLauncher builds the launcher for one mode with the stealth flag set.
func (d *Driver) newLauncher(mode evasion.LaunchMode) *launcher.Launcher {
	l := launcher.New().NoSandbox(d.cfg.NoSandbox)

	switch mode {
	case evasion.LaunchHeadlessNew:
		l = l.HeadlessNew(true)
	case evasion.LaunchWindowed:
		l = l.Headless(false)
	case evasion.LaunchHeadlessLegacy:
		l = l.Headless(true)
	}

	if d.cfg.Bin != "" {
		l = l.Bin(d.cfg.Bin)
	}
	if d.cfg.Proxy != "" {
		l = l.Proxy(d.cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	return l
}

// applyProfile installs everything that must be in place before the first
// navigation: init scripts, user agent, viewport.
func (s *Session) applyProfile() error {
	p := s.profile

	if p.Stealth {
		if _, err := s.page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	if _, err := s.page.EvalOnNewDocument(p.NavigatorScript()); err != nil {
		return fmt.Errorf("navigator overrides: %w", err)
	}

	err := proto.NetworkSetUserAgentOverride{
		UserAgent:      p.UserAgent,
		AcceptLanguage: p.AcceptLanguage,
		Platform:       p.Navigator.Platform,
	}.Call(s.page)
	if err != nil {
		return fmt.Errorf("user agent override: %w", err)
	}

	err = s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             p.Viewport.Width,
		Height:            p.Viewport.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("viewport: %w", err)
	}
	return nil
}
