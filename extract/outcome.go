// Package extract pulls contribution records out of a rendered fundraising
// page using an ordered set of strategies: captured JSON payloads first,
// then the DOM, then the DOM again after forcing lazy content to load.
package extract

// Strategy names the method that produced an Outcome.
type Strategy string

const (
	StrategyNetwork        Strategy = "network"
	StrategyDOM            Strategy = "dom"
	StrategyDOMAfterScroll Strategy = "dom_after_scroll"
	StrategyNone           Strategy = "none"
)

// Record is a contribution as found on the page, before any cleaning.
type Record struct {
	Name       string
	AmountText string
}

// Outcome is the result of one pipeline run.
//
// If Records is non-empty, Strategy is never StrategyNone.
type Outcome struct {
	Records []Record

	// TotalCount is the count declared by the page itself, nil when the
	// strategy found none.
	TotalCount *int

	Strategy Strategy

	// Layout is the markup fingerprint of the first matched row for the DOM
	// strategies, zero otherwise.
	Layout uint64
}

// Empty reports whether the outcome carries no records.
func (o Outcome) Empty() bool {
	return len(o.Records) == 0
}

func intPtr(n int) *int {
	return &n
}
