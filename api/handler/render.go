package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pledgescope/cleaner"
	"github.com/use-agent/pledgescope/models"
	"github.com/use-agent/pledgescope/scraper"
)

// PageRenderer produces the post-JavaScript document of the target page.
type PageRenderer interface {
	Render(ctx context.Context) (*scraper.RenderedPage, error)
}

// Render returns a handler for GET /api/v1/render.
//
// Flow:
//  1. Bind query (full, pretty, format, selector), apply defaults.
//  2. Render the page in a fresh session.
//  3. Absolutize, format and truncate via the cleaner.
//  4. Respond with the length headers.
func Render(r PageRenderer, cl *cleaner.Cleaner, maxBytes int) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// ── 1. Parse query ──────────────────────────────────────────
		var req models.RenderRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid query", err))
			return
		}
		req.Defaults()
		if req.Selector != "" {
			if err := cleaner.ValidateSelector(req.Selector); err != nil {
				respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid selector", err))
				return
			}
		}

		// ── 2. Render ───────────────────────────────────────────────
		page, err := r.Render(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}

		// ── 3. Clean ────────────────────────────────────────────────
		limit := maxBytes
		if req.Full {
			limit = 0
		}
		res, err := cl.Render(page.HTML, page.URL, cleaner.Options{
			Format:   req.Format,
			Pretty:   req.Pretty,
			Selector: req.Selector,
			MaxBytes: limit,
		})
		if err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInternal, "failed to process rendered page", err))
			return
		}

		// ── 4. Respond ──────────────────────────────────────────────
		contentType := "text/html; charset=utf-8"
		if req.Format == cleaner.FormatMarkdown {
			contentType = "text/markdown; charset=utf-8"
		}
		c.Header("X-HTML-Length", strconv.Itoa(res.Length))
		c.Header("X-HTML-Truncated", strconv.FormatBool(res.Truncated))
		c.Header("X-Elapsed-Ms", formatMs(time.Since(start)))
		c.Data(http.StatusOK, contentType, []byte(res.Content))
	}
}

func formatMs(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
