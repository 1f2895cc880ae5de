package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"omomoney/internal/core"
)

// View is everything the main list renders for one filter state.
type View struct {
	Criteria      Criteria
	Revision      uint64
	Entries       []core.Entry
	Matches       map[string]SearchMatch
	Sections      []Section
	TotalSpent    decimal.Decimal
	TotalPending  decimal.Decimal
	CategoryStats []CategoryStats
	ProgressScale decimal.Decimal
	Empty         EmptyState
}

// Compute runs the whole pipeline over a snapshot. Call it again whenever
// the snapshot revision or the criteria change.
func Compute(snap core.Snapshot, c Criteria, now time.Time) View {
	entries, matches := FilterEntries(snap.Entries, snap.Items, c)
	stats := CategoryStatsFor(entries, snap.Items)
	v := View{
		Criteria:      c,
		Revision:      snap.Revision,
		Entries:       entries,
		Matches:       IndexMatches(matches),
		Sections:      GroupByDay(entries),
		TotalSpent:    TotalSpent(entries, snap.Items, matches),
		TotalPending:  TotalPending(entries, snap.Items, matches),
		CategoryStats: stats,
		ProgressScale: ProgressScale(stats),
	}
	if len(entries) == 0 && c.HomeGroupID != "" {
		v.Empty = ClassifyEmpty(snap.Entries, c, now)
	}
	return v
}

// Match returns the search annotation for an entry, if any.
func (v View) Match(entryID string) (SearchMatch, bool) {
	m, ok := v.Matches[entryID]
	return m, ok
}

// UserHomeGroups returns the groups the user belongs to, in snapshot order.
func UserHomeGroups(snap core.Snapshot, userID string) []core.HomeGroup {
	allowed := make(map[string]struct{})
	for _, m := range snap.Memberships {
		if m.UserID == userID {
			allowed[m.HomeGroupID] = struct{}{}
		}
	}
	var out []core.HomeGroup
	for _, g := range snap.HomeGroups {
		if _, ok := allowed[g.ID]; ok {
			out = append(out, g)
		}
	}
	return out
}
