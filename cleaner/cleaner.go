// Package cleaner turns a rendered page into the debug render output:
// absolute asset URLs, optional pretty printing or Markdown, truncation.
package cleaner

import (
	"fmt"
	"net/url"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
)

// Output formats.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// Cleaner holds the reusable Markdown converter. It is safe for concurrent
// use.
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner() *Cleaner {
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
	}
}

// Options controls one render.
type Options struct {
	// Format is FormatHTML (default) or FormatMarkdown.
	Format string

	// Pretty re-indents HTML output. Ignored for Markdown.
	Pretty bool

	// Selector keeps only the elements matching this CSS selector when it
	// matches anything.
	Selector string

	// MaxBytes truncates the output when positive.
	MaxBytes int
}

// Result is the processed document.
type Result struct {
	Content string

	// Length is the byte length before truncation.
	Length    int
	Truncated bool
}

// Render rewrites relative src/href attributes against pageURL, then
// formats and truncates the document.
//
// Flow:
//  1. Absolutize asset URLs.
//  1b. Narrow to Selector (if provided).
//  2. Convert to Markdown, or pretty print HTML when asked.
//  3. Truncate to MaxBytes on a rune boundary.
func (c *Cleaner) Render(rawHTML, pageURL string, opts Options) (*Result, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL: %w", err)
	}

	// ── 1. Absolute URLs ────────────────────────────────────────────
	html, err := Absolutize(rawHTML, base)
	if err != nil {
		return nil, err
	}

	// ── 1b. Selector narrowing ──────────────────────────────────────
	if opts.Selector != "" {
		html = FilterContent(html, opts.Selector)
	}

	// ── 2. Output format ────────────────────────────────────────────
	switch opts.Format {
	case FormatMarkdown:
		domain := base.Scheme + "://" + base.Host
		html, err = ToMarkdown(c.mdConverter, html, domain)
		if err != nil {
			return nil, fmt.Errorf("markdown conversion: %w", err)
		}
	case FormatHTML, "":
		if opts.Pretty {
			html, err = Pretty(html)
			if err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unknown format %q", opts.Format)
	}

	// ── 3. Truncation ───────────────────────────────────────────────
	res := &Result{Content: html, Length: len(html)}
	if opts.MaxBytes > 0 && len(html) > opts.MaxBytes {
		res.Content = truncate(html, opts.MaxBytes)
		res.Truncated = true
	}
	return res, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
