// Package amount turns human-formatted currency labels into numbers.
package amount

import (
	"math"
	"strconv"
	"strings"
)

// Normalize parses a currency label such as "1.234,56 €" or "$1,234.56".
//
// Everything except digits, ',', '.' and '-' is discarded. Whichever of the
// last ',' and the last '.' comes later is taken as the decimal separator and
// the other character as a thousands separator. The second return value is
// false when nothing numeric is left or the result is not a finite number.
//
// A trailing separator with no digits after it ("25,") parses as 25.
func Normalize(label string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, label)
	if cleaned == "" {
		return 0, false
	}

	lastComma := strings.LastIndexByte(cleaned, ',')
	lastDot := strings.LastIndexByte(cleaned, '.')

	var normalized string
	if lastComma > lastDot {
		// EU style: dots group thousands, the final comma is the decimal mark.
		// Any other comma left behind makes the parse fail.
		normalized = strings.ReplaceAll(cleaned, ".", "")
		i := strings.LastIndexByte(normalized, ',')
		normalized = normalized[:i] + "." + normalized[i+1:]
	} else {
		normalized = strings.ReplaceAll(cleaned, ",", "")
	}

	// "25." and "25," both mean 25.
	normalized = strings.TrimSuffix(normalized, ".")

	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Ptr is Normalize for JSON encoding: nil means "unparseable" and is
// rendered as null rather than 0.
func Ptr(label string) *float64 {
	v, ok := Normalize(label)
	if !ok {
		return nil
	}
	return &v
}
