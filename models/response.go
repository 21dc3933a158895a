package models

import "github.com/ysmood/gson"

// ContributionsResponse is the response for GET /api/v1/contributions.
type ContributionsResponse struct {
	// TotalContributionsCount is the count declared by the page when one was
	// found, otherwise the number of contributors returned. Never negative.
	TotalContributionsCount int `json:"total_contributions_count"`

	// Contributors never contains anonymous entries.
	Contributors []Contributor `json:"contributors"`

	// Source names the extraction strategy that produced the data
	// ("network", "dom", "dom_after_scroll" or "none").
	Source string `json:"source,omitempty"`
}

// Contributor is one named contribution.
type Contributor struct {
	Name        string `json:"name"`
	AmountLabel string `json:"amount_label"`

	// Amount is nil when AmountLabel could not be parsed.
	Amount *float64 `json:"amount"`
}

// CapturedResponse is a JSON network response observed while the target
// page loaded.
type CapturedResponse struct {
	URL  string
	Body gson.JSON
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	SessionStats SessionStats `json:"session_stats"`
	Version      string       `json:"version"`
}

// SessionStats reports how many browser sessions are in use.
type SessionStats struct {
	MaxSessions    int `json:"max_sessions"`
	ActiveSessions int `json:"active_sessions"`
}
