package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pledgescope/api/handler"
	"github.com/use-agent/pledgescope/api/middleware"
	"github.com/use-agent/pledgescope/cleaner"
	"github.com/use-agent/pledgescope/config"
)

// Service is what the routes need from the scraper.
type Service interface {
	handler.ContributionsSource
	handler.PageRenderer
	handler.StatsSource
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(svc Service, cl *cleaner.Cleaner, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(svc, startTime))

	// Protected routes share one auth + rate limit chain so the legacy path
	// draws from the same buckets.
	var chain []gin.HandlerFunc
	if cfg.Auth.Enabled {
		chain = append(chain, middleware.Auth(cfg.Auth.APIKeys))
	}
	chain = append(chain, middleware.RateLimit(cfg.RateLimit))

	protected := v1.Group("", chain...)

	contributions := handler.Contributions(svc)
	protected.GET("/contributions", contributions)
	protected.GET("/render", handler.Render(svc, cl, cfg.Scraper.RenderMaxBytes))

	// Legacy path kept for existing consumers.
	legacy := r.Group("/api", chain...)
	legacy.GET("/scrape", contributions)

	return r
}
