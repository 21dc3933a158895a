package browser

import (
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// consentClickTimeout bounds each lookup-and-click attempt.
const consentClickTimeout = 3 * time.Second

// consentSelectors are tried in order; the first visible match is clicked.
var consentSelectors = []string{
	"#onetrust-accept-btn-handler",
	`button[aria-label*="Accepter"]`,
	`[class*="cookie"] button`,
}

// consentLabel matches accept buttons by their visible text (JS regex).
const consentLabel = `/^\s*(accepter|j[’']accepte|tout accepter|accept all|accept)\s*$/i`

// DismissConsent clicks the first cookie/consent accept button it finds.
// It reports whether something was clicked. Failures are swallowed.
func (s *Session) DismissConsent() bool {
	for _, sel := range consentSelectors {
		if s.clickFirst(sel, "") {
			slog.Debug("consent dismissed", "selector", sel)
			return true
		}
	}
	if s.clickFirst("button", consentLabel) {
		slog.Debug("consent dismissed", "label", consentLabel)
		return true
	}
	return false
}

// clickFirst clicks the first element matching selector, and label when
// set. It reports whether the click went through.
func (s *Session) clickFirst(selector, label string) bool {
	p := s.page.Context(s.ctx).Timeout(consentClickTimeout)
	defer p.CancelTimeout()

	var (
		found bool
		el    *rod.Element
		err   error
	)
	if label == "" {
		found, el, err = p.Has(selector)
	} else {
		found, el, err = p.HasR(selector, label)
	}
	if err != nil || !found {
		return false
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		slog.Debug("consent click failed", "selector", selector, "error", err)
		return false
	}
	return true
}
