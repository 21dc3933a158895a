// Package scraper runs one browser session per request against the target
// page and turns it into contribution data or a debug render.
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/use-agent/pledgescope/browser"
	"github.com/use-agent/pledgescope/config"
	"github.com/use-agent/pledgescope/evasion"
	"github.com/use-agent/pledgescope/extract"
	"github.com/use-agent/pledgescope/models"
	"github.com/use-agent/pledgescope/webhook"
	"golang.org/x/sync/semaphore"
)

// capture is the response buffer of a session.
type capture interface {
	extract.ResponseSource
	Stop()
}

// session is the part of browser.Session the scraper drives.
type session interface {
	extract.Page
	StartCapture() capture
	Navigate(target string, opts browser.NavigateOptions) error
	DismissConsent() bool
	OuterHTML() (string, error)
	URL() string
	StatusCode() int
	Mode() evasion.LaunchMode
	Close()
}

// Notifier receives an event after every contributions scrape.
type Notifier interface {
	Notify(event *webhook.Event)
}

// opener starts a session with the given profile.
type opener func(ctx context.Context, profile evasion.Profile) (session, error)

// Scraper gates browser sessions and runs the scrape flows.
// It is safe for concurrent use.
type Scraper struct {
	open     opener
	profile  evasion.Profile
	pipeline *extract.Pipeline
	cfg      config.ScraperConfig
	notifier Notifier

	sem         *semaphore.Weighted
	maxSessions int
	active      atomic.Int32

	// lastLayout is the row fingerprint of the previous DOM scrape.
	lastLayout atomic.Uint64
}

// NewScraper wires a Scraper to a browser driver.
func NewScraper(d *browser.Driver, profile evasion.Profile, maxSessions int, scraperCfg config.ScraperConfig, pipelineCfg config.PipelineConfig) *Scraper {
	open := func(ctx context.Context, p evasion.Profile) (session, error) {
		s, err := d.Open(ctx, p)
		if err != nil {
			return nil, err
		}
		return rodSession{s}, nil
	}
	return newScraper(open, profile, maxSessions, scraperCfg, pipelineCfg)
}

func newScraper(open opener, profile evasion.Profile, maxSessions int, scraperCfg config.ScraperConfig, pipelineCfg config.PipelineConfig) *Scraper {
	if maxSessions <= 0 {
		maxSessions = 1
	}
	return &Scraper{
		open:    open,
		profile: profile,
		pipeline: extract.NewPipeline(extract.Config{
			ScrollStep:     pipelineCfg.ScrollStep,
			ScrollInterval: pipelineCfg.ScrollInterval,
			SettleDelay:    pipelineCfg.SettleDelay,
		}),
		cfg:         scraperCfg,
		sem:         semaphore.NewWeighted(int64(maxSessions)),
		maxSessions: maxSessions,
	}
}

// SetNotifier registers n to receive scrape events. Call before serving.
func (s *Scraper) SetNotifier(n Notifier) {
	s.notifier = n
}

// Stats returns a snapshot of session usage.
func (s *Scraper) Stats() models.SessionStats {
	return models.SessionStats{
		MaxSessions:    s.maxSessions,
		ActiveSessions: int(s.active.Load()),
	}
}

// withSession runs fn with a fresh session under the request timeout.
//
// Lifecycle:
//
//  1. Timeout guard   – hard deadline on the entire operation
//  2. Acquire slot    – wait for the session semaphore
//  3. Open session    – launch with fallbacks, apply the evasion profile
//  4. DEFER: close    – page, browser and launcher on every path
func (s *Scraper) withSession(ctx context.Context, fn func(ctx context.Context, sess session) error) error {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	// ── 2. Acquire slot ───────────────────────────────────────────────
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return models.NewScrapeError(
			models.ErrCodeNavigationTimeout,
			"timed out waiting for a free browser session",
			err,
		)
	}
	defer s.sem.Release(1)

	s.active.Add(1)
	defer s.active.Add(-1)

	// ── 3. Open session ───────────────────────────────────────────────
	sess, err := s.open(ctx, s.profile)
	if err != nil {
		var se *models.ScrapeError
		if errors.As(err, &se) {
			return se
		}
		return models.NewScrapeError(models.ErrCodeLaunchFailed, "failed to open browser session", err)
	}

	// ── 4. CRITICAL DEFER: no zombie Chrome processes ─────────────────
	defer sess.Close()

	return fn(ctx, sess)
}

// load navigates to the target page and clears the consent banner.
func (s *Scraper) load(sess session) error {
	err := sess.Navigate(s.cfg.TargetURL, browser.NavigateOptions{
		Timeout:     s.cfg.NavigationTimeout,
		IdleTimeout: s.cfg.IdleTimeout,
	})
	if err != nil {
		return err
	}
	sess.DismissConsent()
	return nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// settleError turns an expired request context into a timeout error.
func settleError(err error) error {
	slog.Warn("request deadline reached while waiting for the page to settle", "error", err)
	return models.NewScrapeError(models.ErrCodeNavigationTimeout, "request deadline exceeded", err)
}

// rodSession adapts browser.Session to the session interface.
type rodSession struct {
	*browser.Session
}

func (r rodSession) StartCapture() capture {
	return r.Session.StartCapture()
}
