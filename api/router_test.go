package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/use-agent/pledgescope/cleaner"
	"github.com/use-agent/pledgescope/config"
	"github.com/use-agent/pledgescope/models"
	"github.com/use-agent/pledgescope/scraper"
)

type stubService struct{ calls int }

func (s *stubService) Contributions(context.Context) (*models.ContributionsResponse, error) {
	s.calls++
	return &models.ContributionsResponse{Contributors: []models.Contributor{}, Source: "none"}, nil
}

func (s *stubService) Render(context.Context) (*scraper.RenderedPage, error) {
	return &scraper.RenderedPage{HTML: "<html></html>", URL: "https://example.org/"}, nil
}

func (s *stubService) Stats() models.SessionStats { return models.SessionStats{MaxSessions: 1} }

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.Server.Mode = gin.TestMode
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}
	return cfg
}

func do(r http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Routes(t *testing.T) {
	svc := &stubService{}
	r := NewRouter(svc, cleaner.NewCleaner(), testConfig(), time.Now())

	assert.Equal(t, http.StatusOK, do(r, "/api/v1/health", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, "/api/v1/contributions", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, "/api/scrape", nil).Code)
	assert.Equal(t, 2, svc.calls)
	assert.Equal(t, http.StatusNotFound, do(r, "/api/v1/scrape", nil).Code)
}

func TestRouter_SharedRateLimit(t *testing.T) {
	r := NewRouter(&stubService{}, cleaner.NewCleaner(), testConfig(), time.Now())

	assert.Equal(t, http.StatusOK, do(r, "/api/v1/contributions", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, "/api/scrape", nil).Code)

	w := do(r, "/api/v1/contributions", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeRateLimited)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(r, "/api/v1/health", nil).Code, "health is not rate limited")
}

func TestRouter_Auth(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKeys: []string{"secret"}}
	r := NewRouter(&stubService{}, cleaner.NewCleaner(), cfg, time.Now())

	w := do(r, "/api/v1/contributions", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeUnauthorized)

	assert.Equal(t, http.StatusUnauthorized, do(r, "/api/scrape", http.Header{"X-Api-Key": {"wrong"}}).Code)
	assert.Equal(t, http.StatusOK, do(r, "/api/v1/contributions", http.Header{"Authorization": {"Bearer secret"}}).Code)
	assert.Equal(t, http.StatusOK, do(r, "/api/v1/health", nil).Code)
}
