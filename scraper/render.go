package scraper

import (
	"context"
	"log/slog"

	"github.com/use-agent/pledgescope/models"
)

// RenderedPage is the post-JavaScript document of the target page.
type RenderedPage struct {
	HTML       string
	URL        string
	StatusCode int
}

// Render loads the target page, scrolls to the bottom so lazy content is
// present, and returns the outer HTML.
func (s *Scraper) Render(ctx context.Context) (*RenderedPage, error) {
	var page *RenderedPage

	err := s.withSession(ctx, func(ctx context.Context, sess session) error {
		if err := s.load(sess); err != nil {
			return err
		}

		step, interval := s.pipeline.ScrollParams()
		if err := sess.ScrollToBottom(step, interval); err != nil {
			slog.Warn("render scroll failed, using current DOM", "error", err)
		}
		if err := sleep(ctx, s.cfg.RenderSettle); err != nil {
			return settleError(err)
		}

		html, err := sess.OuterHTML()
		if err != nil {
			return models.NewScrapeError(models.ErrCodeInternal, "failed to read page HTML", err)
		}

		finalURL := sess.URL()
		if finalURL == "" {
			finalURL = s.cfg.TargetURL
		}
		page = &RenderedPage{HTML: html, URL: finalURL, StatusCode: sess.StatusCode()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}
