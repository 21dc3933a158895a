package browser

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/pledgescope/evasion"
	"github.com/use-agent/pledgescope/models"
	"github.com/ysmood/gson"
)

// maxScrollSteps bounds ScrollToBottom on pages that keep growing.
const maxScrollSteps = 200

// NavigateOptions bounds a navigation.
type NavigateOptions struct {
	// Timeout covers the navigation and the load event. Zero leaves only
	// the session's own deadline.
	Timeout time.Duration

	// IdleTimeout bounds the best-effort wait for the DOM to settle after
	// the load event. Zero skips the wait.
	IdleTimeout time.Duration
}

// Session is one browser process and one page, scoped to a single request.
// Methods are not safe for concurrent use, except Close.
type Session struct {
	ctx     context.Context
	proc    *process
	page    *rod.Page
	mode    evasion.LaunchMode
	profile evasion.Profile

	statusCode int

	// events cancels every event subscription of the session.
	events    context.CancelFunc
	eventsCtx context.Context

	closeOnce sync.Once
}

func newSession(ctx context.Context, proc *process, mode evasion.LaunchMode, profile evasion.Profile) *Session {
	eventsCtx, cancel := context.WithCancel(ctx)
	return &Session{
		ctx:       ctx,
		proc:      proc,
		mode:      mode,
		profile:   profile,
		events:    cancel,
		eventsCtx: eventsCtx,
	}
}

// Mode returns the launch mode the session committed to.
func (s *Session) Mode() evasion.LaunchMode { return s.mode }

// StatusCode returns the HTTP status of the last main document, or 0 when
// it could not be read. A non-2xx status is informational only.
func (s *Session) StatusCode() int { return s.statusCode }

// Navigate loads target and waits for the load event within opts.Timeout.
// A deadline yields NAVIGATION_TIMEOUT, any other failure NAVIGATION_FAILED.
func (s *Session) Navigate(target string, opts NavigateOptions) error {
	s.setHeaders(target)

	navCtx, cancel := boundedContext(s.ctx, opts.Timeout)
	defer cancel()
	p := s.page.Context(navCtx)

	if err := p.Navigate(target); err != nil {
		return categorizeError(err, "navigation to target URL failed")
	}
	if err := p.WaitLoad(); err != nil {
		return categorizeError(err, "target page did not finish loading")
	}

	if opts.IdleTimeout > 0 {
		idle := s.page.Context(s.ctx).Timeout(opts.IdleTimeout)
		if err := idle.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
			slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
		}
		idle.CancelTimeout()
	}

	s.statusCode = s.readStatus()
	if s.statusCode >= 300 {
		slog.Warn("target responded with non-2xx status", "status", s.statusCode, "url", target)
	}
	return nil
}

// boundedContext derives a context with timeout d, or a plain cancelable
// one when d is not positive.
func boundedContext(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// setHeaders sends the profile headers plus a search engine Referer with
// every request of the page.
func (s *Session) setHeaders(target string) {
	headers := s.profile.Headers()
	if _, ok := headers["Referer"]; !ok {
		if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
			headers["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		}
	}
	if len(headers) == 0 {
		return
	}
	err := proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(s.page)
	if err != nil {
		slog.Warn("failed to set extra headers", "error", err)
	}
}

// readStatus reads the main document status from the navigation timing
// entry, which needs no event listener.
func (s *Session) readStatus() int {
	res, err := s.page.Context(s.ctx).Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// HTML returns the current rendered document.
func (s *Session) HTML() (string, error) {
	return s.page.Context(s.ctx).HTML()
}

// OuterHTML returns document.documentElement.outerHTML.
func (s *Session) OuterHTML() (string, error) {
	res, err := s.Eval(`() => document.documentElement ? document.documentElement.outerHTML : ""`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// URL returns the current location, or "" when it cannot be read.
func (s *Session) URL() string {
	res, err := s.Eval(`() => window.location.href`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// Eval runs js in the page and awaits the result if it is a promise.
func (s *Session) Eval(js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	return s.page.Context(s.ctx).Eval(js, args...)
}

// ScrollToBottom scrolls down by step pixels every interval until the end
// of the document is passed or maxScrollSteps increments were made.
func (s *Session) ScrollToBottom(step int, interval time.Duration) error {
	_, err := s.Eval(`(step, interval, maxSteps) => new Promise((resolve) => {
		let scrolled = 0;
		let steps = 0;
		const timer = setInterval(() => {
			const height = document.body ? document.body.scrollHeight : 0;
			window.scrollBy(0, step);
			scrolled += step;
			steps++;
			if (scrolled >= height || steps >= maxSteps) {
				clearInterval(timer);
				resolve(steps);
			}
		}, interval);
	})`, step, interval.Milliseconds(), maxScrollSteps)
	return err
}

// autoDismissDialogs dismisses every alert/confirm/prompt the page opens so
// that no dialog blocks the session.
func (s *Session) autoDismissDialogs() {
	page := s.page
	wait := page.Context(s.eventsCtx).EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		_ = proto.PageHandleJavaScriptDialog{Accept: false}.Call(page)
	})
	go wait()
}

// Close releases the page, the browser and the launcher. It is safe to call
// more than once and from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.events()

		if s.page != nil {
			if err := s.page.Close(); err != nil {
				slog.Debug("close page", "error", err)
			}
		}
		if s.proc == nil {
			return
		}
		if err := s.proc.browser.Close(); err != nil {
			slog.Debug("close browser", "error", err)
		}
		s.proc.launcher.Kill()
		s.proc.launcher.Cleanup()
	})
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed ScrapeErrors so the API layer
// can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeNavigationTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeNavigationTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
