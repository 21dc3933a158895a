package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pledgescope/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// StatsSource reports browser session usage.
type StatsSource interface {
	Stats() models.SessionStats
}

// Health returns a handler for GET /api/v1/health.
//
// Reports session utilisation and degrades status when every session slot
// is busy, since new requests then queue.
func Health(sc StatsSource, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sc.Stats()

		status := "healthy"
		if stats.MaxSessions > 0 && stats.ActiveSessions >= stats.MaxSessions {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			SessionStats: stats,
			Version:      Version,
		})
	}
}
