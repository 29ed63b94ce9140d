package crawler

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SortKey builds the ordering key of a product: its lower-cased name and
// description with whitespace, punctuation and symbols removed.
func SortKey(name, description string) string {
	lowered := cases.Lower(language.Polish).String(name + description)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, lowered)
}

// Normalize drops records that repeat a (phrase, URL) pair and orders the rest
// by phrase, sort key and shop. Ties keep their input order.
func Normalize(records []RawProductRecord) []NormalizedRecord {
	type seenKey struct {
		phrase string
		url    string
	}
	seen := make(map[seenKey]struct{}, len(records))

	out := make([]NormalizedRecord, 0, len(records))
	for _, record := range records {
		key := seenKey{record.SearchPhrase, record.URL}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, NormalizedRecord{
			RawProductRecord: record,
			SortKey:          SortKey(record.Name, record.Description),
		})
	}

	slices.SortStableFunc(out, func(a, b NormalizedRecord) int {
		return cmp.Or(
			strings.Compare(a.SearchPhrase, b.SearchPhrase),
			strings.Compare(a.SortKey, b.SortKey),
			cmp.Compare(a.ShopID, b.ShopID),
		)
	})
	return out
}
