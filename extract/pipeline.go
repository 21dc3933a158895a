package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/pledgescope/models"
)

// Page is the part of a browser session the pipeline needs.
type Page interface {
	// HTML returns the current rendered document.
	HTML() (string, error)

	// ScrollToBottom scrolls down by step pixels every interval until the
	// end of the document is passed.
	ScrollToBottom(step int, interval time.Duration) error
}

// ResponseSource hands out the JSON responses captured so far, in the order
// they were observed.
type ResponseSource interface {
	Responses() []models.CapturedResponse
}

// Config tunes the scroll-and-rescan stage.
type Config struct {
	ScrollStep     int           // pixels per scroll increment
	ScrollInterval time.Duration // pause between increments
	SettleDelay    time.Duration // wait after scrolling before re-reading the DOM
}

// Pipeline runs the extraction strategies in priority order.
// It holds no per-run state and is safe for concurrent use.
type Pipeline struct {
	cfg Config
}

// NewPipeline creates a Pipeline, filling zero config values with defaults.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.ScrollStep <= 0 {
		cfg.ScrollStep = 600
	}
	if cfg.ScrollInterval <= 0 {
		cfg.ScrollInterval = 120 * time.Millisecond
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	return &Pipeline{cfg: cfg}
}

// ScrollParams returns the scroll increment and interval in use.
func (p *Pipeline) ScrollParams() (int, time.Duration) {
	return p.cfg.ScrollStep, p.cfg.ScrollInterval
}

// stage is one state of the pipeline.
type stage struct {
	strategy Strategy
	run      func() (Outcome, error)
}

// Run executes NETWORK_SCAN → DOM_SCAN → SCROLL_AND_RESCAN and returns the
// first non-empty outcome. Later stages never run once an earlier one has
// produced records. A failing stage counts as "no records"; Run itself
// never fails and returns a StrategyNone outcome when nothing was found.
func (p *Pipeline) Run(ctx context.Context, page Page, src ResponseSource) Outcome {
	stages := []stage{
		{StrategyNetwork, func() (Outcome, error) {
			return scanNetwork(src.Responses()), nil
		}},
		{StrategyDOM, func() (Outcome, error) {
			rawHTML, err := page.HTML()
			if err != nil {
				return Outcome{}, fmt.Errorf("read html: %w", err)
			}
			return scanDOM(rawHTML)
		}},
		{StrategyDOMAfterScroll, func() (Outcome, error) {
			if err := page.ScrollToBottom(p.cfg.ScrollStep, p.cfg.ScrollInterval); err != nil {
				// Content may still have loaded; read the DOM anyway.
				slog.Debug("extract: scroll failed", "error", err)
			}
			if err := sleep(ctx, p.cfg.SettleDelay); err != nil {
				return Outcome{}, err
			}
			rawHTML, err := page.HTML()
			if err != nil {
				return Outcome{}, fmt.Errorf("read html: %w", err)
			}
			return rescanDOM(rawHTML)
		}},
	}

	for _, st := range stages {
		out := attempt(ctx, st)
		if !out.Empty() {
			slog.Info("extract: strategy succeeded",
				"strategy", out.Strategy,
				"records", len(out.Records),
			)
			return out
		}
	}

	slog.Info("extract: no strategy produced records")
	return Outcome{Strategy: StrategyNone}
}

// attempt runs one stage, turning errors and panics into an empty outcome.
func attempt(ctx context.Context, st stage) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("extract: strategy panicked", "strategy", st.strategy, "panic", r)
			out = Outcome{}
		}
	}()

	if err := ctx.Err(); err != nil {
		slog.Warn("extract: strategy skipped", "strategy", st.strategy, "error", err)
		return Outcome{}
	}

	out, err := st.run()
	if err != nil {
		slog.Warn("extract: strategy failed", "strategy", st.strategy, "error", err)
		return Outcome{}
	}
	if out.Empty() {
		slog.Debug("extract: strategy found nothing", "strategy", st.strategy)
		return Outcome{}
	}
	out.Strategy = st.strategy
	return out
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
