// Package owners canonicalizes free-text deed-holder names into the grouping
// key used to join parcels across a county.
package owners

import (
	"strings"
	"unicode"
)

// entitySuffixes are trailing tokens stripped from owner names so that
// "SMITH FAMILY TRUST" and "SMITH" group together. Tokens are removed from the
// end of the name repeatedly, so compound suffixes like "REVOCABLE LIVING
// TRUST" collapse as well.
var entitySuffixes = map[string]struct{}{
	"LLC":          {},
	"LC":           {},
	"LLP":          {},
	"LP":           {},
	"INC":          {},
	"INCORPORATED": {},
	"CORP":         {},
	"CORPORATION":  {},
	"CO":           {},
	"COMPANY":      {},
	"LTD":          {},
	"TRUST":        {},
	"TRUSTEE":      {},
	"TRUSTEES":     {},
	"ESTATE":       {},
	"EST":          {},
	"FAMILY":       {},
	"REVOCABLE":    {},
	"IRREVOCABLE":  {},
	"LIVING":       {},
	"REV":          {},
	"ETAL":         {},
	"ET":           {},
	"AL":           {},
	"UX":           {},
}

// Normalize converts a raw deed-holder name into its canonical grouping key.
// The result is uppercase with punctuation collapsed to single spaces,
// "Last, First" order swapped to "First Last", and entity suffixes stripped.
// Normalize is a pure function: identical input always yields identical output.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	// Deed records commonly store "Last, First [Middle]"; swap on the first
	// comma so the key matches names recorded in natural order. A tail made
	// entirely of entity suffixes ("Acme Farms, LLC") is a suffix, not a
	// first name, and must not be swapped to the front.
	if i := strings.IndexByte(s, ','); i >= 0 {
		head, tail := strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
		if suffixOnly(tail) {
			s = head
		} else {
			s = tail + " " + head
		}
	}

	s = strings.ToUpper(s)

	// Collapse punctuation so "J.B. SMITH L.L.C." tokenizes cleanly.
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)

	tokens := strings.Fields(s)

	// Strip trailing entity suffixes, but never reduce a name to nothing.
	for len(tokens) > 1 {
		last := tokens[len(tokens)-1]
		if _, ok := entitySuffixes[last]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}

	return strings.Join(tokens, " ")
}

// suffixOnly reports whether every token of s is an entity suffix.
func suffixOnly(s string) bool {
	s = strings.ToUpper(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range tokens {
		if _, ok := entitySuffixes[tok]; !ok {
			return false
		}
	}
	return true
}
