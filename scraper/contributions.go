package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/pledgescope/assemble"
	"github.com/use-agent/pledgescope/models"
	"github.com/use-agent/pledgescope/simhash"
	"github.com/use-agent/pledgescope/webhook"
)

// Contributions scrapes the target page and returns the assembled payload.
//
// The capture buffer is started before navigation so the payloads fetched
// during the initial load are seen. Strategy failures never surface here;
// only launch and navigation failures do.
func (s *Scraper) Contributions(ctx context.Context) (*models.ContributionsResponse, error) {
	start := time.Now()
	var resp *models.ContributionsResponse
	var layout string

	err := s.withSession(ctx, func(ctx context.Context, sess session) error {
		capt := sess.StartCapture()
		defer capt.Stop()

		if err := s.load(sess); err != nil {
			return err
		}
		if err := sleep(ctx, s.cfg.InitialSettle); err != nil {
			return settleError(err)
		}

		out := s.pipeline.Run(ctx, sess, capt)
		resp = assemble.Assemble(out)
		if out.Layout != 0 {
			layout = simhash.Hex(out.Layout)
			s.compareLayout(out.Layout)
		}

		slog.Info("contributions scraped",
			"strategy", out.Strategy,
			"records", len(out.Records),
			"contributors", len(resp.Contributors),
			"total", resp.TotalContributionsCount,
			"layout", layout,
			"status", sess.StatusCode(),
			"launchMode", sess.Mode(),
			"elapsed", time.Since(start).String(),
		)
		return nil
	})
	if err != nil {
		s.notifyFailure(err)
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.Notify(webhook.NewEvent(webhook.EventScraped, webhook.ScrapeSummary{
			Source:       resp.Source,
			Total:        resp.TotalContributionsCount,
			Contributors: len(resp.Contributors),
			Layout:       layout,
			ElapsedMs:    time.Since(start).Milliseconds(),
		}))
	}
	return resp, nil
}

// layoutDriftBits is the Hamming distance above which two row fingerprints
// are considered different templates.
const layoutDriftBits = 10

// compareLayout records fp and reports how far it moved from the previous
// DOM scrape. It returns -1 on the first one.
func (s *Scraper) compareLayout(fp uint64) int {
	prev := s.lastLayout.Swap(fp)
	if prev == 0 {
		return -1
	}
	d := simhash.Distance(prev, fp)
	if d > layoutDriftBits {
		slog.Warn("contribution row layout changed",
			"previous", simhash.Hex(prev),
			"current", simhash.Hex(fp),
			"distance", d,
		)
	} else {
		slog.Debug("contribution row layout unchanged", "distance", d)
	}
	return d
}

func (s *Scraper) notifyFailure(err error) {
	if s.notifier == nil {
		return
	}
	f := webhook.Failure{Code: models.ErrCodeInternal, Message: err.Error()}
	var se *models.ScrapeError
	if errors.As(err, &se) {
		f.Code = se.Code
		f.Message = se.Message
	}
	s.notifier.Notify(webhook.NewEvent(webhook.EventFailed, f))
}
