// Package simhash fingerprints markup structure so that two scrapes of the
// same page can be compared: a small Hamming distance means the page kept
// its layout, a large one means the site was redesigned and the extraction
// heuristics may need attention.
package simhash

import (
	"fmt"
	"hash/fnv"
	"math/bits"
	"strings"

	"golang.org/x/net/html"
)

// Fingerprint computes a 64-bit SimHash over whitespace separated tokens,
// using FNV-64a per token.
func Fingerprint(text string) uint64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	var vector [64]int
	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(word))
		hash := h.Sum64()

		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fingerprint uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fingerprint |= 1 << uint(i)
		}
	}
	return fingerprint
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Hex formats a fingerprint for logs.
func Hex(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

// FingerprintMarkup fingerprints the structure of an HTML fragment: the
// sequence of start tags with their class names, as 3-token shingles.
// Text content and other attributes are ignored, so two rows of the same
// template fingerprint identically.
func FingerprintMarkup(fragment string) uint64 {
	tokens := structureTokens(fragment)
	if len(tokens) == 0 {
		return 0
	}
	if shingles := makeShingles(tokens, 3); len(shingles) > 0 {
		return Fingerprint(strings.Join(shingles, " "))
	}
	return Fingerprint(strings.Join(tokens, " "))
}

// structureTokens walks the fragment with the tokenizer and emits
// "tag.class1.class2" for every start tag.
func structureTokens(fragment string) []string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var tokens []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tokens
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			var b strings.Builder
			b.WriteString(tok.Data)
			for _, a := range tok.Attr {
				if a.Key != "class" {
					continue
				}
				for _, cls := range strings.Fields(a.Val) {
					b.WriteByte('.')
					b.WriteString(cls)
				}
			}
			tokens = append(tokens, b.String())
		}
	}
}

// makeShingles creates n-gram shingles from a slice of tokens.
func makeShingles(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	shingles := make([]string, 0, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		shingles = append(shingles, strings.Join(tokens[i:i+n], "_"))
	}
	return shingles
}
