package search

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"omomoney/internal/core"
)

const (
	// MaxSuggestions caps the combined list.
	MaxSuggestions = 10
	// MaxPerType caps entries and items separately before combining.
	MaxPerType = 5
)

const (
	TypeEntry SuggestionType = "entry"
	TypeItem  SuggestionType = "item"
)

type SuggestionType string

// Label is the short tag shown next to a suggestion.
func (t SuggestionType) Label() string {
	if t == TypeItem {
		return "Item"
	}
	return "Entry"
}

// Suggestion is one autocomplete candidate. Text is the original, unmodified
// title or description.
type Suggestion struct {
	ID   uuid.UUID
	Text string
	Type SuggestionType
}

// Key identifies a suggestion by content, ignoring its per-pass ID.
func (s Suggestion) Key() string {
	return string(s.Type) + ":" + s.Text
}

type candidate struct {
	text       string
	normalized string
	typ        SuggestionType
}

// Generate runs one synchronous suggestion pass over the titles of entries
// and the descriptions of items. Text equal to excludeExact is never
// suggested. Entries win over items with the same text.
func Generate(query string, entries []core.Entry, items []core.Item, excludeExact string) []Suggestion {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	q := Normalize(query)
	lower := strings.ToLower(query)

	titles := make([]string, 0, len(entries))
	for _, e := range entries {
		titles = append(titles, e.Title)
	}
	descriptions := make([]string, 0, len(items))
	for _, it := range items {
		descriptions = append(descriptions, it.Description)
	}

	entryCands := collect(titles, TypeEntry, query, lower, q, excludeExact)
	itemCands := collect(descriptions, TypeItem, query, lower, q, excludeExact)

	taken := make(map[string]struct{}, len(entryCands))
	for _, c := range entryCands {
		taken[dedupKey(c.text)] = struct{}{}
	}
	combined := append([]candidate(nil), entryCands...)
	for _, c := range itemCands {
		if _, dup := taken[dedupKey(c.text)]; dup {
			continue
		}
		combined = append(combined, c)
	}

	rank(combined, q)
	if len(combined) > MaxSuggestions {
		combined = combined[:MaxSuggestions]
	}

	out := make([]Suggestion, len(combined))
	for i, c := range combined {
		out[i] = Suggestion{ID: uuid.New(), Text: c.text, Type: c.typ}
	}
	return out
}

// collect filters, deduplicates, ranks and caps the candidates of one type.
func collect(texts []string, typ SuggestionType, query, lower, normalized, excludeExact string) []candidate {
	seen := make(map[string]struct{})
	var out []candidate
	for _, text := range texts {
		if excludeExact != "" && text == excludeExact {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(text), lower) && !Matches(query, text) {
			continue
		}
		key := dedupKey(text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, candidate{text: text, normalized: Normalize(text), typ: typ})
	}
	rank(out, normalized)
	if len(out) > MaxPerType {
		out = out[:MaxPerType]
	}
	return out
}

// rank orders prefix matches first, then entries before items, then
// alphabetically by normalized text.
func rank(cands []candidate, normalizedQuery string) {
	sort.SliceStable(cands, func(a, b int) bool {
		pa := strings.HasPrefix(cands[a].normalized, normalizedQuery)
		pb := strings.HasPrefix(cands[b].normalized, normalizedQuery)
		if pa != pb {
			return pa
		}
		if cands[a].typ != cands[b].typ {
			return cands[a].typ == TypeEntry
		}
		return cands[a].normalized < cands[b].normalized
	})
}

func dedupKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
