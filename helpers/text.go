package helpers

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var errNoPrice = errors.New("no price text")

// CleanText collapses runs of whitespace (including non-breaking spaces)
// and trims the result.
func CleanText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// ParsePrice parses a displayed price such as "24,99 zł" into a decimal.
func ParsePrice(text string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(text, "zł", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, cleaned)
	if cleaned == "" {
		return decimal.Zero, errNoPrice
	}

	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", text, err)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative price %q", text)
	}
	return price, nil
}

// MinPrice returns the lowest price among texts. Texts that are not prices,
// such as discount badges, are ignored.
// Sale and list prices are shown side by side; the lowest one is charged.
func MinPrice(texts []string) (decimal.Decimal, error) {
	var (
		lowest decimal.Decimal
		found  bool
	)
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		price, err := ParsePrice(text)
		if err != nil {
			continue
		}
		if !found || price.LessThan(lowest) {
			lowest = price
			found = true
		}
	}
	if !found {
		return decimal.Zero, errNoPrice
	}
	return lowest, nil
}

// ResolveURL resolves href against base; absolute hrefs are returned as is
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil || ref.IsAbs() {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

// Words splits text into lower-cased words made of letters and digits
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ContainsAllWords reports whether every word of phrase occurs as a whole
// word in text.
func ContainsAllWords(text, phrase string) bool {
	present := make(map[string]bool)
	for _, w := range Words(text) {
		present[w] = true
	}
	for _, w := range Words(phrase) {
		if !present[w] {
			return false
		}
	}
	return true
}
