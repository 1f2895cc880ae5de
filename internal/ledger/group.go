package ledger

import (
	"sort"
	"time"

	"omomoney/internal/core"
)

// SectionKeyLayout formats the stable, locale-independent key of a day.
const SectionKeyLayout = "2006-01-02"

// Section is one calendar day of the list.
type Section struct {
	Day     time.Time
	Key     string
	Entries []core.Entry
}

// StartOfDay drops the time of day of t in t's own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// GroupByDay buckets entries by calendar day, newest day first. Entries keep
// the order they arrived in within each day.
func GroupByDay(entries []core.Entry) []Section {
	index := make(map[string]int)
	var sections []Section
	for _, e := range entries {
		day := StartOfDay(e.Date)
		key := day.Format(SectionKeyLayout)
		i, ok := index[key]
		if !ok {
			i = len(sections)
			index[key] = i
			sections = append(sections, Section{Day: day, Key: key})
		}
		sections[i].Entries = append(sections[i].Entries, e)
	}
	sort.SliceStable(sections, func(a, b int) bool {
		if sections[a].Day.Equal(sections[b].Day) {
			return sections[a].Key > sections[b].Key
		}
		return sections[a].Day.After(sections[b].Day)
	})
	return sections
}

// SectionKeys lists section keys in display order. Handy for list diffing.
func SectionKeys(sections []Section) []string {
	keys := make([]string, len(sections))
	for i, s := range sections {
		keys[i] = s.Key
	}
	return keys
}
