package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pledgescope/models"
)

// cacheControl lets a CDN serve the last result for five minutes and keep
// serving it while a fresh scrape runs.
const cacheControl = "s-maxage=300, stale-while-revalidate"

// ContributionsSource produces the contribution payload.
type ContributionsSource interface {
	Contributions(ctx context.Context) (*models.ContributionsResponse, error)
}

// Contributions returns a handler for GET /api/v1/contributions.
//
// An empty result is a 200 with zero contributors; only launch and
// navigation failures produce an error status, and then no partial data is
// sent.
func Contributions(src ContributionsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		resp, err := src.Contributions(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}

		c.Header("Cache-Control", cacheControl)
		c.Header("X-Elapsed-Ms", formatMs(time.Since(start)))
		c.JSON(http.StatusOK, resp)
	}
}
