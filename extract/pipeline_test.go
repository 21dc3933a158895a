package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pledgescope/models"
)

// fakePage serves htmlBefore until ScrollToBottom is called, then htmlAfter.
type fakePage struct {
	htmlBefore string
	htmlAfter  string
	htmlErr    error
	scrollErr  error
	panicOn    string

	htmlCalls   int
	scrollCalls int
	scrolled    bool
}

func (f *fakePage) HTML() (string, error) {
	f.htmlCalls++
	if f.panicOn == "html" {
		panic("page crashed")
	}
	if f.htmlErr != nil {
		return "", f.htmlErr
	}
	if f.scrolled {
		return f.htmlAfter, nil
	}
	return f.htmlBefore, nil
}

func (f *fakePage) ScrollToBottom(step int, interval time.Duration) error {
	f.scrollCalls++
	f.scrolled = true
	return f.scrollErr
}

type fakeSource struct {
	responses []models.CapturedResponse
	calls     int
}

func (f *fakeSource) Responses() []models.CapturedResponse {
	f.calls++
	return f.responses
}

const twoItems = `<html><body><ul class="contributions">
	<li class="contribution"><span class="contribution__name">Alice</span><span class="contribution__amount">25 €</span></li>
	<li class="contribution"><span class="contribution__name">Bob</span><span class="contribution__amount">10 €</span></li>
</ul></body></html>`

const emptyPage = `<html><body><h1>Projet</h1></body></html>`

func newTestPipeline() *Pipeline {
	return NewPipeline(Config{ScrollStep: 400, ScrollInterval: time.Millisecond, SettleDelay: time.Millisecond})
}

func TestRun_NetworkShortCircuits(t *testing.T) {
	page := &fakePage{htmlBefore: twoItems}
	src := &fakeSource{responses: []models.CapturedResponse{
		captured(t, "u", `{"data": [{"name": "Alice", "amount": "25"}], "total": 12}`),
	}}

	out := newTestPipeline().Run(context.Background(), page, src)

	assert.Equal(t, StrategyNetwork, out.Strategy)
	require.Len(t, out.Records, 1)
	assert.Equal(t, 0, page.htmlCalls, "DOM stage must not run")
	assert.Equal(t, 0, page.scrollCalls, "scroll stage must not run")
}

func TestRun_DOMWhenNoNetworkData(t *testing.T) {
	page := &fakePage{htmlBefore: twoItems}
	src := &fakeSource{}

	out := newTestPipeline().Run(context.Background(), page, src)

	assert.Equal(t, StrategyDOM, out.Strategy)
	assert.Len(t, out.Records, 2)
	assert.Nil(t, out.TotalCount)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 1, page.htmlCalls)
	assert.Equal(t, 0, page.scrollCalls)
}

func TestRun_ScrollAndRescan(t *testing.T) {
	page := &fakePage{htmlBefore: emptyPage, htmlAfter: twoItems}

	out := newTestPipeline().Run(context.Background(), page, &fakeSource{})

	assert.Equal(t, StrategyDOMAfterScroll, out.Strategy)
	assert.Len(t, out.Records, 2)
	assert.Equal(t, 1, page.scrollCalls)
	assert.Equal(t, 2, page.htmlCalls)
}

func TestRun_ScrollErrorStillRescans(t *testing.T) {
	page := &fakePage{htmlBefore: emptyPage, htmlAfter: twoItems, scrollErr: errors.New("eval failed")}

	out := newTestPipeline().Run(context.Background(), page, &fakeSource{})

	assert.Equal(t, StrategyDOMAfterScroll, out.Strategy)
	assert.Len(t, out.Records, 2)
}

func TestRun_NothingFound(t *testing.T) {
	page := &fakePage{htmlBefore: emptyPage, htmlAfter: emptyPage}

	out := newTestPipeline().Run(context.Background(), page, &fakeSource{})

	assert.Equal(t, StrategyNone, out.Strategy)
	assert.True(t, out.Empty())
	assert.Nil(t, out.TotalCount)
}

func TestRun_StrategyFailuresAreRecovered(t *testing.T) {
	t.Run("html error", func(t *testing.T) {
		page := &fakePage{htmlErr: errors.New("target closed")}
		out := newTestPipeline().Run(context.Background(), page, &fakeSource{})
		assert.Equal(t, StrategyNone, out.Strategy)
		assert.Equal(t, 2, page.htmlCalls, "both DOM stages were attempted")
	})

	t.Run("panic", func(t *testing.T) {
		page := &fakePage{panicOn: "html"}
		out := newTestPipeline().Run(context.Background(), page, &fakeSource{})
		assert.Equal(t, StrategyNone, out.Strategy)
		assert.Equal(t, 1, page.scrollCalls, "pipeline moved on after the panic")
	})
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page := &fakePage{htmlBefore: twoItems}
	out := newTestPipeline().Run(ctx, page, &fakeSource{})

	assert.Equal(t, StrategyNone, out.Strategy)
	assert.Equal(t, 0, page.htmlCalls)
}

func TestNewPipeline_Defaults(t *testing.T) {
	p := NewPipeline(Config{SettleDelay: -time.Second})
	assert.Equal(t, 600, p.cfg.ScrollStep)
	assert.Equal(t, 120*time.Millisecond, p.cfg.ScrollInterval)
	assert.Equal(t, time.Duration(0), p.cfg.SettleDelay)
}
