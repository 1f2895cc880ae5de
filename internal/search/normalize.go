// Package search produces autocomplete suggestions from entry titles and item
// descriptions. Matching tolerates case, accents and simple Spanish
// singular/plural differences.
package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases, trims and strips diacritics.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Variants returns the normalized word followed by its singular/plural
// alternatives:
//
//   - ending in "s": also without the "s", otherwise also with an "s" added
//   - ending in "es": also without the "es", otherwise when ending in a
//     vowel also with "es" added
//
// Empty stems are dropped and duplicates removed.
func Variants(word string) []string {
	n := Normalize(word)
	out := []string{n}
	add := func(v string) {
		if v == "" {
			return
		}
		for _, have := range out {
			if have == v {
				return
			}
		}
		out = append(out, v)
	}

	if strings.HasSuffix(n, "s") {
		add(strings.TrimSuffix(n, "s"))
	} else {
		add(n + "s")
	}

	if strings.HasSuffix(n, "es") {
		add(strings.TrimSuffix(n, "es"))
	} else if endsInVowel(n) {
		add(n + "es")
	}
	return out
}

// Matches reports whether target is a plausible hit for query. It holds when
// the target equals or contains a query variant, or when a target variant
// contains the query.
func Matches(query, target string) bool {
	q := Normalize(query)
	t := Normalize(target)
	if q == "" {
		return false
	}
	for _, v := range Variants(query) {
		if t == v || strings.Contains(t, v) {
			return true
		}
	}
	for _, v := range Variants(target) {
		if strings.Contains(v, q) {
			return true
		}
	}
	return false
}

func endsInVowel(s string) bool {
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
