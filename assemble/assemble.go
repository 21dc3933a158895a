// Package assemble shapes an extraction outcome into the API payload.
package assemble

import (
	"strings"

	"github.com/use-agent/pledgescope/amount"
	"github.com/use-agent/pledgescope/extract"
	"github.com/use-agent/pledgescope/models"
)

// anonymousNames are the placeholder names the page shows for donors who
// chose not to be listed. Matching is exact and case-insensitive.
var anonymousNames = []string{"anonyme", "anonymous"}

// isAnonymous reports whether name is an anonymity placeholder.
func isAnonymous(name string) bool {
	name = strings.TrimSpace(name)
	for _, a := range anonymousNames {
		if strings.EqualFold(name, a) {
			return true
		}
	}
	return false
}

// Assemble filters anonymous and nameless records, normalizes amounts and
// reconciles the total count. The declared total wins when the strategy
// found one; otherwise the number of returned contributors is used.
func Assemble(out extract.Outcome) *models.ContributionsResponse {
	contributors := make([]models.Contributor, 0, len(out.Records))
	for _, rec := range out.Records {
		name := strings.TrimSpace(rec.Name)
		if name == "" || isAnonymous(name) {
			continue
		}
		label := strings.TrimSpace(rec.AmountText)
		contributors = append(contributors, models.Contributor{
			Name:        name,
			AmountLabel: label,
			Amount:      amount.Ptr(label),
		})
	}

	total := len(contributors)
	if out.TotalCount != nil && *out.TotalCount >= 0 {
		total = *out.TotalCount
	}

	source := out.Strategy
	if source == "" {
		source = extract.StrategyNone
	}

	return &models.ContributionsResponse{
		TotalContributionsCount: total,
		Contributors:            contributors,
		Source:                  string(source),
	}
}
