package scraper

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
	// a single comma followed by exactly two digits, e.g. "12,50"
	decimalCommaPattern = regexp.MustCompile(`^[^\d,.]*\d+,\d{2}(?:[^\d,.].*)?$`)
	// dot-grouped thousands ending in a decimal comma, e.g. "1.234,56"
	dottedDecimalCommaPattern = regexp.MustCompile(`^[^\d,.]*\d{1,3}(?:\.\d{3})+,\d{2}(?:[^\d,.].*)?$`)
)

// ParsePrice converts a price-bearing string to a number. Whitespace and
// thousands separators are ignored, as is any currency symbol before the
// digits. A lone comma followed by exactly two digits is read as a decimal
// comma when there is no dot, or when the dots only group thousands before
// it ("1.234,56").
func ParsePrice(text string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)

	switch {
	case !strings.Contains(cleaned, ".") && decimalCommaPattern.MatchString(cleaned):
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case dottedDecimalCommaPattern.MatchString(cleaned):
		cleaned = strings.Replace(strings.ReplaceAll(cleaned, ".", ""), ",", ".", 1)
	default:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	match := numberPattern.FindString(cleaned)
	if match == "" {
		return 0, &ParseError{Text: text}
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &ParseError{Text: text}
	}
	return value, nil
}

// validPrice reports whether v can be stored as a PriceRecord.
func validPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
