package cleaner

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// urlAttrs are the attributes rewritten by Absolutize.
var urlAttrs = []string{"src", "href"}

// Absolutize rewrites every relative src and href against base so the
// document renders outside of its origin. Fragments, data: and javascript:
// URLs and unparseable values are left alone.
func Absolutize(rawHTML string, base *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	for _, attr := range urlAttrs {
		doc.Find("[" + attr + "]").Each(func(_ int, s *goquery.Selection) {
			v, _ := s.Attr(attr)
			if abs, ok := resolve(base, v); ok {
				s.SetAttr(attr, abs)
			}
		})
	}

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return out, nil
}

func resolve(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return "", false
	}
	return base.ResolveReference(u).String(), true
}

// ValidateSelector reports whether selector compiles.
func ValidateSelector(selector string) error {
	if _, err := cascadia.Compile(selector); err != nil {
		return fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return nil
}

// FilterContent keeps only the elements matching selector. When nothing
// matches, or the selector is invalid, the input is returned unchanged.
func FilterContent(html, selector string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	m, err := cascadia.Compile(selector)
	if err != nil {
		return html
	}
	matches := doc.FindMatcher(m)
	if matches.Length() == 0 {
		return html
	}

	var buf strings.Builder
	matches.Each(func(_ int, s *goquery.Selection) {
		h, err := goquery.OuterHtml(s)
		if err == nil {
			buf.WriteString(h)
			buf.WriteByte('\n')
		}
	})
	return buf.String()
}
