package ledger

import (
	"strings"
	"time"

	"omomoney/internal/core"
)

// EmptyState explains why the list shows nothing.
type EmptyState int

const (
	NotEmpty EmptyState = iota
	EmptyWelcome
	EmptyMultipleFilters
	EmptySearchNoResults
	EmptyCategoryNoResults
	EmptyNoEntriesThisMonth
	EmptyDateNoResults
	EmptyGeneric
)

func (s EmptyState) String() string {
	switch s {
	case EmptyWelcome:
		return "welcome"
	case EmptyMultipleFilters:
		return "multiple_filters"
	case EmptySearchNoResults:
		return "search_no_results"
	case EmptyCategoryNoResults:
		return "category_no_results"
	case EmptyNoEntriesThisMonth:
		return "no_entries_this_month"
	case EmptyDateNoResults:
		return "date_no_results"
	case EmptyGeneric:
		return "generic"
	default:
		return "not_empty"
	}
}

// ClassifyEmpty picks the empty-state message for a filter that produced no
// entries. now decides whether MonthYear is the current month.
func ClassifyEmpty(entries []core.Entry, c Criteria, now time.Time) EmptyState {
	hasInGroup := false
	for _, e := range entries {
		if e.HomeGroupID == c.HomeGroupID {
			hasInGroup = true
			break
		}
	}
	if !hasInGroup {
		return EmptyWelcome
	}

	hasInPeriod := len(FilterByDate(entries, c.HomeGroupID, c.MonthYear, c.ShowAllYear)) > 0
	categoryActive := !core.IsAllCategories(c.Category)
	searchActive := strings.TrimSpace(c.SearchText) != ""

	multiple := (categoryActive && searchActive) ||
		(categoryActive && !hasInPeriod) ||
		(searchActive && !hasInPeriod)

	switch {
	case multiple:
		return EmptyMultipleFilters
	case searchActive:
		return EmptySearchNoResults
	case categoryActive:
		return EmptyCategoryNoResults
	case !hasInPeriod && sameMonth(c.MonthYear, now):
		return EmptyNoEntriesThisMonth
	case !hasInPeriod:
		return EmptyDateNoResults
	default:
		return EmptyGeneric
	}
}

func sameMonth(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month()
}
