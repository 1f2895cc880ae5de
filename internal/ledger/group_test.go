package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omomoney/internal/core"
)

func TestGroupByDay(t *testing.T) {
	entries := []core.Entry{
		{ID: "late", Date: time.Date(2024, 3, 15, 22, 0, 0, 0, time.UTC)},
		{ID: "early", Date: time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)},
		{ID: "prev", Date: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)},
		{ID: "newest", Date: time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)},
	}

	sections := GroupByDay(entries)
	require.Len(t, sections, 3)
	assert.Equal(t, []string{"2024-03-20", "2024-03-15", "2024-03-14"}, SectionKeys(sections))
	assert.Equal(t, []string{"late", "early"}, entryIDs(sections[1].Entries))
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), sections[1].Day)
}

func TestGroupByDay_Idempotent(t *testing.T) {
	entries := []core.Entry{
		{ID: "a", Date: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)},
		{ID: "b", Date: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)},
		{ID: "c", Date: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
	}
	first := GroupByDay(entries)
	second := GroupByDay(entries)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a", "b"}, entryIDs(first[0].Entries))
}

func TestGroupByDay_UsesEntryLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// 02:00 UTC on the 16th is still the 15th five hours west.
	e := core.Entry{ID: "x", Date: time.Date(2024, 3, 16, 2, 0, 0, 0, time.UTC).In(loc)}
	sections := GroupByDay([]core.Entry{e})
	require.Len(t, sections, 1)
	assert.Equal(t, "2024-03-15", sections[0].Key)
}

func TestGroupByDay_Empty(t *testing.T) {
	assert.Empty(t, GroupByDay(nil))
}
