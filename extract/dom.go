package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/use-agent/pledgescope/simhash"
)

// containerSelectors locate the contributions block, tried in order:
// explicit test ids first, then known class name patterns.
var containerSelectors = []string{
	`[data-testid="contributions-section"]`,
	`[data-testid="contributions"]`,
	`ul.contributions__list`,
	`ul.contributions__ul`,
	`ul[class*="contributions"]`,
	`ul[class*="contribution"]`,
	`section[class*="contribution"]`,
}

// headingSelector and headingPattern drive the last-resort container
// lookup: the section around the first heading that reads like a
// contributions label ("Contributions", "Dernières contributions", ...).
const headingSelector = "h2, h3, h4"

var headingPattern = regexp.MustCompile(`(?i)(derni[èe]res?\s+contributions?|last\s+contributions?|contributions?)`)

// itemSelector matches one contribution row inside the container.
const itemSelector = `li[class*="contribution"], li:has([class*="contribution__"])`

// resolver finds one field inside a contribution row.
type resolver struct {
	Selector string

	// Text, when set, must match the candidate's text.
	Text *regexp.Regexp

	// TextNodes walks the row's text nodes in document order instead of
	// matching elements; Selector is unused.
	TextNodes bool
}

var currencyOrDigit = regexp.MustCompile(`(?i)(€|\$|£|\beur(o|os)?\b|\d)`)

// nameResolvers and amountResolvers are evaluated left to right; the first
// one yielding non-empty text wins.
var nameResolvers = []resolver{
	{Selector: `.contribution__name`},
	{Selector: `[class*="name"]`},
	{Selector: `[data-testid="contributor-name"]`},
}

var amountResolvers = []resolver{
	{Selector: `.contribution__amount`},
	{Selector: `[class*="amount"]`},
	{Selector: `[data-testid="contribution-amount"]`},
	{Text: currencyOrDigit, TextNodes: true},
}

type counterScope int

const (
	scopeContainer counterScope = iota
	scopeDocument
)

type counterCandidate struct {
	Selector string
	Scope    counterScope
}

// counterCandidates locate the page's own "N contributions" figure.
var counterCandidates = []counterCandidate{
	{Selector: `[data-testid="contributions-count"]`, Scope: scopeContainer},
	{Selector: `strong.bold.color--prim`, Scope: scopeContainer},
	{Selector: `[data-testid="contributions-count"]`, Scope: scopeDocument},
	{Selector: `[class*="contributions-count"]`, Scope: scopeDocument},
}

// missingAmount is the label used when a row has a name but no amount.
const missingAmount = "N/A"

// scanDOM runs the full DOM strategy over a rendered HTML snapshot.
func scanDOM(rawHTML string) (Outcome, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Outcome{}, fmt.Errorf("parse html: %w", err)
	}

	container, err := findContainer(doc)
	if err != nil {
		return Outcome{}, err
	}

	records, layout, err := collectRecords(container)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Records: records, Layout: layout}
	if len(records) > 0 {
		if n, ok := readCounter(doc.Selection, container); ok {
			out.TotalCount = intPtr(n)
		}
	}
	return out, nil
}

// rescanDOM is the reduced query run after scrolling: rows anywhere in the
// document, same field resolvers, no counter lookup.
func rescanDOM(rawHTML string) (Outcome, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Outcome{}, fmt.Errorf("parse html: %w", err)
	}
	records, layout, err := collectRecords(doc.Selection)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Records: records, Layout: layout}, nil
}

// findContainer returns the first matching container candidate, the
// section around a contributions heading, or the whole document.
func findContainer(doc *goquery.Document) (*goquery.Selection, error) {
	for _, s := range containerSelectors {
		m, err := cascadia.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("container selector %q: %w", s, err)
		}
		if found := doc.FindMatcher(m).First(); found.Length() > 0 {
			return found, nil
		}
	}

	var container *goquery.Selection
	doc.Find(headingSelector).EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if !headingPattern.MatchString(h.Text()) {
			return true
		}
		if section := h.Closest("section, article"); section.Length() > 0 {
			container = section
		} else if parent := h.Parent(); parent.Length() > 0 {
			container = parent
		} else {
			container = h
		}
		return false
	})
	if container != nil {
		return container, nil
	}
	return doc.Selection, nil
}

// collectRecords returns the records found under scope and the structural
// fingerprint of the first row that produced one.
func collectRecords(scope *goquery.Selection) ([]Record, uint64, error) {
	m, err := cascadia.Compile(itemSelector)
	if err != nil {
		return nil, 0, fmt.Errorf("item selector: %w", err)
	}

	var records []Record
	var layout uint64
	var resolveErr error
	scope.FindMatcher(m).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		name, nameNode, err := resolveField(row, nameResolvers, nil)
		if err != nil {
			resolveErr = err
			return false
		}
		if name == "" {
			return true
		}
		amountText, _, err := resolveField(row, amountResolvers, nameNode)
		if err != nil {
			resolveErr = err
			return false
		}
		if amountText == "" {
			amountText = missingAmount
		}
		if len(records) == 0 {
			if markup, err := goquery.OuterHtml(row); err == nil {
				layout = simhash.FingerprintMarkup(markup)
			}
		}
		records = append(records, Record{Name: name, AmountText: amountText})
		return true
	})
	if resolveErr != nil {
		return nil, 0, resolveErr
	}
	return records, layout, nil
}

// resolveField evaluates resolvers in order and returns the first
// non-empty text. skip excludes a node already claimed by another field.
func resolveField(row *goquery.Selection, resolvers []resolver, skip *html.Node) (string, *html.Node, error) {
	for _, r := range resolvers {
		if r.TextNodes {
			if text, node := firstTextNode(row.Get(0), r.Text, skip); text != "" {
				return text, node, nil
			}
			continue
		}

		m, err := cascadia.Compile(r.Selector)
		if err != nil {
			return "", nil, fmt.Errorf("field selector %q: %w", r.Selector, err)
		}

		var text string
		var node *html.Node
		row.FindMatcher(m).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			n := el.Get(0)
			if overlaps(n, skip) {
				return true
			}
			t := visibleText(el)
			if t == "" || (r.Text != nil && !r.Text.MatchString(t)) {
				return true
			}
			text, node = t, n
			return false
		})
		if text != "" {
			return text, node, nil
		}
	}
	return "", nil, nil
}

// firstTextNode returns the first non-empty text node under root that
// matches pattern and does not overlap skip. Script and style content is
// ignored.
func firstTextNode(root *html.Node, pattern *regexp.Regexp, skip *html.Node) (string, *html.Node) {
	if root == nil {
		return "", nil
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c == skip {
			continue
		}
		switch c.Type {
		case html.TextNode:
			t := strings.Join(strings.Fields(c.Data), " ")
			if t != "" && (pattern == nil || pattern.MatchString(t)) {
				return t, c
			}
		case html.ElementNode:
			switch c.Data {
			case "script", "style", "noscript", "template":
				continue
			}
			if text, node := firstTextNode(c, pattern, skip); text != "" {
				return text, node
			}
		}
	}
	return "", nil
}

// overlaps reports whether a and b are the same node or one contains the
// other.
func overlaps(a, b *html.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a == b || contains(a, b) || contains(b, a)
}

func contains(ancestor, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// readCounter returns the digits of the first counter candidate that
// contains any.
func readCounter(doc, container *goquery.Selection) (int, bool) {
	for _, c := range counterCandidates {
		scope := doc
		if c.Scope == scopeContainer {
			scope = container
		}
		var (
			n     int
			found bool
		)
		scope.Find(c.Selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			n, found = parseCount(el.Text())
			return !found
		})
		if found {
			return n, true
		}
	}
	return 0, false
}

var nonDigits = regexp.MustCompile(`\D+`)

func parseCount(s string) (int, bool) {
	digits := nonDigits.ReplaceAllString(s, "")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// visibleText collapses runs of whitespace in the element's text.
func visibleText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
