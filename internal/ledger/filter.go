// Package ledger derives the main list view from the raw collections: it
// narrows entries by group, period, category and search text, buckets them by
// day and computes the totals shown above the list.
//
// Every function here is pure. Callers recompute on each change of the
// collections or of the filter criteria.
package ledger

import (
	"strings"
	"time"

	"omomoney/internal/core"
)

// Criteria is the filter state of the main list.
type Criteria struct {
	// HomeGroupID selects the ledger; empty means no group is selected.
	HomeGroupID string
	// MonthYear is any instant inside the month (or year) to show. Its
	// location defines where calendar boundaries fall.
	MonthYear time.Time
	// ShowAllYear widens the window from the month to the whole year.
	ShowAllYear bool
	// Category is a display name, or core.AllCategoriesLabel.
	Category   string
	SearchText string
}

// SearchMatch records which parts of an entry satisfied the search text.
type SearchMatch struct {
	EntryID         string
	TitleMatched    bool
	CategoryMatched bool
	MatchingItemIDs []string
}

// HasItemMatches reports whether the match is scoped to specific items.
func (m SearchMatch) HasItemMatches() bool {
	return len(m.MatchingItemIDs) > 0
}

// IndexMatches maps entry IDs to their matches.
func IndexMatches(matches []SearchMatch) map[string]SearchMatch {
	idx := make(map[string]SearchMatch, len(matches))
	for _, m := range matches {
		idx[m.EntryID] = m
	}
	return idx
}

// Window returns the half-open interval [start, end) covering the calendar
// month, or year, that contains t.
func Window(t time.Time, wholeYear bool) (time.Time, time.Time) {
	loc := t.Location()
	if wholeYear {
		start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// FilterEntries runs the date, category and search stages in order. The
// returned matches are nil when no search text is active.
func FilterEntries(entries []core.Entry, items []core.Item, c Criteria) ([]core.Entry, []SearchMatch) {
	if c.HomeGroupID == "" {
		return nil, nil
	}
	out := FilterByDate(entries, c.HomeGroupID, c.MonthYear, c.ShowAllYear)
	out = FilterByCategory(out, c.Category)
	return FilterBySearch(out, items, c.SearchText)
}

// FilterByDate keeps the group's entries dated inside the month (or year)
// window containing monthYear.
func FilterByDate(entries []core.Entry, homeGroupID string, monthYear time.Time, wholeYear bool) []core.Entry {
	start, end := Window(monthYear, wholeYear)
	out := make([]core.Entry, 0, len(entries))
	for _, e := range entries {
		if e.HomeGroupID != homeGroupID {
			continue
		}
		if e.Date.Before(start) || !e.Date.Before(end) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FilterByCategory keeps entries of the category named by label. The
// all-categories sentinel keeps everything; unknown labels act as the
// default category.
func FilterByCategory(entries []core.Entry, label string) []core.Entry {
	if core.IsAllCategories(label) {
		return entries
	}
	want := core.CategoryFromDisplayName(label)
	out := make([]core.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Category == want {
			out = append(out, e)
		}
	}
	return out
}

// FilterBySearch keeps entries whose title, category key or any item
// description contains the search text, ignoring case.
func FilterBySearch(entries []core.Entry, items []core.Item, searchText string) ([]core.Entry, []SearchMatch) {
	needle := strings.ToLower(strings.TrimSpace(searchText))
	if needle == "" {
		return entries, nil
	}

	byEntry := core.IndexItemsByEntry(items)
	out := make([]core.Entry, 0, len(entries))
	var matches []SearchMatch
	for _, e := range entries {
		m := SearchMatch{
			EntryID:         e.ID,
			TitleMatched:    strings.Contains(strings.ToLower(e.Title), needle),
			CategoryMatched: strings.Contains(strings.ToLower(string(e.Category)), needle),
		}
		for _, it := range byEntry[e.ID] {
			if strings.Contains(strings.ToLower(it.Description), needle) {
				m.MatchingItemIDs = append(m.MatchingItemIDs, it.ID)
			}
		}
		if m.TitleMatched || m.CategoryMatched || m.HasItemMatches() {
			out = append(out, e)
			matches = append(matches, m)
		}
	}
	return out, matches
}
