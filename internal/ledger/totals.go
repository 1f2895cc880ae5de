package ledger

import (
	"github.com/shopspring/decimal"

	"omomoney/internal/core"
)

// PaymentState summarizes the paid flags of an entry's items.
type PaymentState int

const (
	NoItems PaymentState = iota
	NonePaid
	PartiallyPaid
	AllPaid
)

func (s PaymentState) String() string {
	switch s {
	case NonePaid:
		return "none_paid"
	case PartiallyPaid:
		return "partially_paid"
	case AllPaid:
		return "all_paid"
	default:
		return "no_items"
	}
}

// contributingItems returns the items that count for an entry: the matched
// ones when the search hit specific items, every item otherwise.
func contributingItems(entryID string, byEntry map[string][]core.Item, matches map[string]SearchMatch) []core.Item {
	all := byEntry[entryID]
	m, ok := matches[entryID]
	if !ok || !m.HasItemMatches() {
		return all
	}
	keep := make(map[string]struct{}, len(m.MatchingItemIDs))
	for _, id := range m.MatchingItemIDs {
		keep[id] = struct{}{}
	}
	out := make([]core.Item, 0, len(m.MatchingItemIDs))
	for _, it := range all {
		if _, ok := keep[it.ID]; ok {
			out = append(out, it)
		}
	}
	return out
}

func sumItems(items []core.Item, paid bool) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if it.Payed.IsPaid() == paid {
			total = total.Add(it.Money)
		}
	}
	return total
}

// TotalSpent sums the money of paid items across expense entries. Income
// entries never count. matches may be nil.
func TotalSpent(entries []core.Entry, items []core.Item, matches []SearchMatch) decimal.Decimal {
	return totalBy(entries, items, matches, true)
}

// TotalPending sums the money of items not yet marked paid across expense
// entries, scoped the same way as TotalSpent.
func TotalPending(entries []core.Entry, items []core.Item, matches []SearchMatch) decimal.Decimal {
	return totalBy(entries, items, matches, false)
}

func totalBy(entries []core.Entry, items []core.Item, matches []SearchMatch, paid bool) decimal.Decimal {
	byEntry := core.IndexItemsByEntry(items)
	idx := IndexMatches(matches)
	total := decimal.Zero
	for _, e := range entries {
		if e.IsIncome() {
			continue
		}
		total = total.Add(sumItems(contributingItems(e.ID, byEntry, idx), paid))
	}
	return total
}

// EntryDisplayTotal is the paid total shown on an entry row. It honors the
// search scope but, unlike TotalSpent, does not zero income entries.
func EntryDisplayTotal(entry core.Entry, items []core.Item, match *SearchMatch) decimal.Decimal {
	byEntry := map[string][]core.Item{entry.ID: filterByEntry(items, entry.ID)}
	var idx map[string]SearchMatch
	if match != nil {
		idx = map[string]SearchMatch{entry.ID: *match}
	}
	return sumItems(contributingItems(entry.ID, byEntry, idx), true)
}

// EntryPaymentState classifies one entry's items by their paid flags.
func EntryPaymentState(entryItems []core.Item) PaymentState {
	if len(entryItems) == 0 {
		return NoItems
	}
	paid := 0
	for _, it := range entryItems {
		if it.Payed.IsPaid() {
			paid++
		}
	}
	switch paid {
	case 0:
		return NonePaid
	case len(entryItems):
		return AllPaid
	default:
		return PartiallyPaid
	}
}

func filterByEntry(items []core.Item, entryID string) []core.Item {
	var out []core.Item
	for _, it := range items {
		if it.EntryID == entryID {
			out = append(out, it)
		}
	}
	return out
}
