package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"omomoney/internal/core"
)

// CategoryStats aggregates one category within a set of entries.
type CategoryStats struct {
	Category   core.Category
	EntryCount int
	EntryIDs   []string
	TotalSpent decimal.Decimal
}

// Progress returns the share of scale this category represents, in [0, 1]
// for non-negative totals.
func (s CategoryStats) Progress(scale decimal.Decimal) float64 {
	if !scale.IsPositive() {
		return 0
	}
	f, _ := s.TotalSpent.Div(scale).Float64()
	return f
}

// CategoryStatsFor groups entries by category and totals what was spent in
// each. Categories with entries but no spend are kept. The result is sorted
// by total, largest first; equal totals keep category key order.
func CategoryStatsFor(entries []core.Entry, items []core.Item) []CategoryStats {
	byEntry := core.IndexItemsByEntry(items)
	index := make(map[core.Category]int)
	var stats []CategoryStats
	for _, e := range entries {
		i, ok := index[e.Category]
		if !ok {
			i = len(stats)
			index[e.Category] = i
			stats = append(stats, CategoryStats{Category: e.Category, TotalSpent: decimal.Zero})
		}
		s := &stats[i]
		s.EntryCount++
		s.EntryIDs = append(s.EntryIDs, e.ID)
		if !e.IsIncome() {
			s.TotalSpent = s.TotalSpent.Add(sumItems(byEntry[e.ID], true))
		}
	}
	sort.SliceStable(stats, func(a, b int) bool {
		if c := stats[a].TotalSpent.Cmp(stats[b].TotalSpent); c != 0 {
			return c > 0
		}
		return stats[a].Category < stats[b].Category
	})
	return stats
}

// ProgressScale is the reference for progress bars: the largest category
// total, or 1 when nothing was spent.
func ProgressScale(stats []CategoryStats) decimal.Decimal {
	top := decimal.Zero
	for _, s := range stats {
		if s.TotalSpent.GreaterThan(top) {
			top = s.TotalSpent
		}
	}
	if !top.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return top
}

// UnspentCategories lists the categories present in stats whose total is
// zero, in stats order.
func UnspentCategories(stats []CategoryStats) []core.Category {
	var out []core.Category
	for _, s := range stats {
		if s.TotalSpent.IsZero() {
			out = append(out, s.Category)
		}
	}
	return out
}
