package core

// Snapshot is a read-only copy of every collection at one store revision.
// Entries are ordered newest first; same-instant entries keep insertion order.
type Snapshot struct {
	Revision    uint64
	HomeGroups  []HomeGroup
	Entries     []Entry
	Items       []Item
	Users       []User
	Memberships []Membership
}

// IndexItemsByEntry groups items by the entry they reference. Items pointing
// at entries that no longer exist are simply never looked up.
func IndexItemsByEntry(items []Item) map[string][]Item {
	idx := make(map[string][]Item)
	for _, it := range items {
		idx[it.EntryID] = append(idx[it.EntryID], it)
	}
	return idx
}

// IndexEntries maps entry IDs to entries.
func IndexEntries(entries []Entry) map[string]Entry {
	idx := make(map[string]Entry, len(entries))
	for _, e := range entries {
		idx[e.ID] = e
	}
	return idx
}

// HomeGroup returns the group with the given ID.
func (s Snapshot) HomeGroup(id string) (HomeGroup, bool) {
	for _, g := range s.HomeGroups {
		if g.ID == id {
			return g, true
		}
	}
	return HomeGroup{}, false
}

// Entry returns the entry with the given ID.
func (s Snapshot) Entry(id string) (Entry, bool) {
	for _, e := range s.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// ItemsOf returns the items of one entry in stored order.
func (s Snapshot) ItemsOf(entryID string) []Item {
	var out []Item
	for _, it := range s.Items {
		if it.EntryID == entryID {
			out = append(out, it)
		}
	}
	return out
}
