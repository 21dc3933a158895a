package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pledgescope/browser"
	"github.com/use-agent/pledgescope/config"
	"github.com/use-agent/pledgescope/evasion"
	"github.com/use-agent/pledgescope/models"
	"github.com/use-agent/pledgescope/webhook"
	"github.com/ysmood/gson"
)

type fakeCapture struct {
	responses []models.CapturedResponse
	stopped   bool
}

func (f *fakeCapture) Responses() []models.CapturedResponse { return f.responses }
func (f *fakeCapture) Stop()                                { f.stopped = true }

type fakeSession struct {
	mu sync.Mutex

	capture  *fakeCapture
	navErr   error
	html     string
	outer    string
	url      string
	navCalls int
	consent  int
	scrolled int
	closed   int

	// block, when set, is waited on inside Navigate.
	block chan struct{}
}

func (f *fakeSession) StartCapture() capture { return f.capture }

func (f *fakeSession) Navigate(string, browser.NavigateOptions) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navCalls++
	return f.navErr
}

func (f *fakeSession) DismissConsent() bool { f.consent++; return false }
func (f *fakeSession) HTML() (string, error) { return f.html, nil }
func (f *fakeSession) ScrollToBottom(int, time.Duration) error {
	f.scrolled++
	return nil
}
func (f *fakeSession) OuterHTML() (string, error)  { return f.outer, nil }
func (f *fakeSession) URL() string                 { return f.url }
func (f *fakeSession) StatusCode() int             { return 200 }
func (f *fakeSession) Mode() evasion.LaunchMode    { return evasion.LaunchHeadlessNew }
func (f *fakeSession) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []*webhook.Event
}

func (r *recordingNotifier) Notify(ev *webhook.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

var testCfg = config.ScraperConfig{
	TargetURL:         config.DefaultTargetURL,
	RequestTimeout:    5 * time.Second,
	NavigationTimeout: time.Second,
}

var fastPipeline = config.PipelineConfig{ScrollStep: 100, ScrollInterval: time.Millisecond}

func newTestScraper(sess *fakeSession, openErr error) *Scraper {
	return newScraper(func(context.Context, evasion.Profile) (session, error) {
		if openErr != nil {
			return nil, openErr
		}
		return sess, nil
	}, evasion.Default(), 1, testCfg, fastPipeline)
}

func TestContributions_Network(t *testing.T) {
	capt := &fakeCapture{responses: []models.CapturedResponse{{
		URL: "https://x/api",
		Body: gson.New(map[string]any{
			"data": []any{
				map[string]any{"name": "Alice", "amount": "25"},
				map[string]any{"name": "Anonyme", "amount": "10"},
			},
			"total": 12,
		}),
	}}}
	sess := &fakeSession{capture: capt}

	resp, err := newTestScraper(sess, nil).Contributions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 12, resp.TotalContributionsCount)
	require.Len(t, resp.Contributors, 1)
	assert.Equal(t, "Alice", resp.Contributors[0].Name)
	assert.Equal(t, 25.0, *resp.Contributors[0].Amount)
	assert.Equal(t, "network", resp.Source)

	assert.Equal(t, 1, sess.consent)
	assert.Equal(t, 0, sess.scrolled)
	assert.True(t, capt.stopped)
	assert.Equal(t, 1, sess.closed)
}

func TestContributions_DOM(t *testing.T) {
	sess := &fakeSession{capture: &fakeCapture{}, html: `<ul class="contributions">
		<li class="contribution"><span class="contribution__name">Alice</span><span class="contribution__amount">25 €</span></li>
		<li class="contribution"><span class="contribution__name">Bob</span><span class="contribution__amount">10 €</span></li>
	</ul>`}

	resp, err := newTestScraper(sess, nil).Contributions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, resp.TotalContributionsCount)
	assert.Equal(t, "dom", resp.Source)
}

func TestContributions_NotifiesSummary(t *testing.T) {
	sess := &fakeSession{capture: &fakeCapture{}, html: `<ul class="contributions">
		<li class="contribution"><span class="contribution__name">Alice</span><span class="contribution__amount">25 €</span></li>
	</ul>`}
	rec := &recordingNotifier{}
	sc := newTestScraper(sess, nil)
	sc.SetNotifier(rec)

	_, err := sc.Contributions(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.events, 1)
	assert.Equal(t, webhook.EventScraped, rec.events[0].Type)
	summary, ok := rec.events[0].Data.(webhook.ScrapeSummary)
	require.True(t, ok)
	assert.Equal(t, "dom", summary.Source)
	assert.Equal(t, 1, summary.Contributors)
	assert.Len(t, summary.Layout, 16, "hex layout fingerprint of the matched row")
}

func TestCompareLayout(t *testing.T) {
	sc := newTestScraper(nil, nil)

	assert.Equal(t, -1, sc.compareLayout(0xff), "nothing to compare against yet")
	assert.Equal(t, 0, sc.compareLayout(0xff))
	assert.Equal(t, 16, sc.compareLayout(0xff00))
	assert.Equal(t, uint64(0xff00), sc.lastLayout.Load())
}

func TestContributions_TracksLayoutAcrossRuns(t *testing.T) {
	rowPage := `<ul class="contributions">
		<li class="contribution"><span class="contribution__name">%s</span><span class="contribution__amount">25 €</span></li>
	</ul>`
	sess := &fakeSession{capture: &fakeCapture{}, html: fmt.Sprintf(rowPage, "Alice")}
	sc := newTestScraper(sess, nil)

	_, err := sc.Contributions(context.Background())
	require.NoError(t, err)
	first := sc.lastLayout.Load()
	assert.NotZero(t, first)

	sess.html = fmt.Sprintf(rowPage, "Bob")
	_, err = sc.Contributions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, sc.lastLayout.Load(), "same template, same fingerprint")
}

func TestContributions_NotifiesFailure(t *testing.T) {
	rec := &recordingNotifier{}
	sc := newTestScraper(nil, models.NewScrapeError(models.ErrCodeLaunchFailed, "no browser", nil))
	sc.SetNotifier(rec)

	_, err := sc.Contributions(context.Background())
	require.Error(t, err)

	require.Len(t, rec.events, 1)
	assert.Equal(t, webhook.EventFailed, rec.events[0].Type)
	assert.Equal(t, webhook.Failure{Code: models.ErrCodeLaunchFailed, Message: "no browser"}, rec.events[0].Data)
}

func TestContributions_NothingFound(t *testing.T) {
	sess := &fakeSession{capture: &fakeCapture{}, html: `<p>rien</p>`}

	resp, err := newTestScraper(sess, nil).Contributions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, resp.TotalContributionsCount)
	assert.Empty(t, resp.Contributors)
	assert.Equal(t, "none", resp.Source)
	assert.Equal(t, 1, sess.scrolled)
}

func TestContributions_LaunchFailure(t *testing.T) {
	launchErr := models.NewScrapeError(models.ErrCodeLaunchFailed, "failed to launch browser", errors.New("all variants"))

	resp, err := newTestScraper(nil, launchErr).Contributions(context.Background())

	assert.Nil(t, resp)
	var se *models.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrCodeLaunchFailed, se.Code)
}

func TestContributions_PlainOpenErrorIsLaunchFailure(t *testing.T) {
	_, err := newTestScraper(nil, errors.New("exec: chrome not found")).Contributions(context.Background())

	var se *models.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrCodeLaunchFailed, se.Code)
}

func TestContributions_NavigationFailureClosesSession(t *testing.T) {
	navErr := models.NewScrapeError(models.ErrCodeNavigationTimeout, "navigation to target URL failed", context.DeadlineExceeded)
	sess := &fakeSession{capture: &fakeCapture{}, navErr: navErr}

	resp, err := newTestScraper(sess, nil).Contributions(context.Background())

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, navErr)
	assert.Equal(t, 1, sess.closed)
	assert.Equal(t, 0, sess.consent)
}

func TestRender(t *testing.T) {
	sess := &fakeSession{outer: "<html></html>"}

	page, err := newTestScraper(sess, nil).Render(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "<html></html>", page.HTML)
	assert.Equal(t, config.DefaultTargetURL, page.URL, "falls back to the target URL")
	assert.Equal(t, 1, sess.scrolled)
	assert.Equal(t, 1, sess.closed)
}

func TestSessionsAreGated(t *testing.T) {
	block := make(chan struct{})
	sess := &fakeSession{capture: &fakeCapture{}, block: block}
	sc := newTestScraper(sess, nil)

	done := make(chan error, 1)
	go func() {
		_, err := sc.Contributions(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return sc.Stats().ActiveSessions == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := sc.Contributions(ctx)
	var se *models.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrCodeNavigationTimeout, se.Code)

	close(block)
	require.NoError(t, <-done)
	assert.Equal(t, 0, sc.Stats().ActiveSessions)
	assert.Equal(t, 1, sc.Stats().MaxSessions)
}
