package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pledgescope/models"
)

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response. Nothing else is written to the body.
func respondError(c *gin.Context, err error) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, "internal error", err)
	}

	status := mapErrorToStatus(scrapeErr)
	slog.Error("request failed",
		"path", c.FullPath(),
		"status", status,
		"code", scrapeErr.Code,
		"error", scrapeErr,
	)

	c.JSON(status, models.ErrorResponse{
		Error:   errorTitle(scrapeErr.Code),
		Details: scrapeErr.Details(),
		Code:    scrapeErr.Code,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeNavigationTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}

func errorTitle(code string) string {
	switch code {
	case models.ErrCodeLaunchFailed:
		return "Browser launch failed"
	case models.ErrCodeNavigationTimeout:
		return "Target page timed out"
	case models.ErrCodeNavigation:
		return "Target page unreachable"
	case models.ErrCodeInvalidInput:
		return "Invalid request"
	default:
		return "Scrape failed"
	}
}
