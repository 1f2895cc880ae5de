package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omomoney/internal/core"
	"omomoney/internal/ledger"
	"omomoney/internal/store"
	"omomoney/internal/store/memory"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	repo, err := NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func insert(e core.Entity) store.Change {
	return store.Change{Op: store.OpInsert, Kind: e.EntityKind(), ID: e.EntityID(), Entity: e}
}

func TestMigrationsApplied(t *testing.T) {
	_, path := newTestRepo(t)

	v, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), v)

	require.NoError(t, RunMigrations(path), "re-running is a no-op")
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC) }
	three := 3
	pos := 0
	yes, no := true, false

	changes := []store.Change{
		insert(core.User{ID: "u1", Name: "Local", CreatedAt: day(1)}),
		insert(core.HomeGroup{ID: "g1", Name: "Casa", Currency: "USD", CreatedAt: day(1)}),
		insert(core.Membership{ID: "m1", UserID: "u1", HomeGroupID: "g1", IsAdmin: true, DateJoined: day(1)}),
		insert(core.Entry{ID: "old", Title: "Super", Date: day(15), Category: core.Comida, HomeGroupID: "g1"}),
		insert(core.Entry{ID: "new", Title: "Sueldo", Date: day(20), Category: core.Otros, Type: core.Income, HomeGroupID: "g1"}),
		insert(core.Item{ID: "paid", Money: decimal.RequireFromString("20.50"), Amount: &three, Description: "Pan", EntryID: "old", Position: &pos, Payed: core.PaymentStatusFrom(&yes)}),
		insert(core.Item{ID: "unpaid", Money: decimal.RequireFromString("5"), Description: "Leche", EntryID: "old", Payed: core.PaymentStatusFrom(&no)}),
		insert(core.Item{ID: "legacy", Money: decimal.RequireFromString("1.25"), Description: "Huevos", EntryID: "old"}),
	}
	require.NoError(t, repo.Persist(ctx, changes))

	snap, err := repo.Load(ctx)
	require.NoError(t, err)

	require.Len(t, snap.Users, 1)
	require.Len(t, snap.HomeGroups, 1)
	assert.Equal(t, "USD", snap.HomeGroups[0].Currency)
	require.Len(t, snap.Memberships, 1)
	assert.True(t, snap.Memberships[0].IsAdmin)

	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "new", snap.Entries[0].ID)
	assert.Equal(t, core.Income, snap.Entries[0].Type)
	assert.True(t, snap.Entries[1].Date.Equal(day(15)))
	assert.Equal(t, core.Comida, snap.Entries[1].Category)

	require.Len(t, snap.Items, 3)
	paid, unpaid, legacy := snap.Items[0], snap.Items[1], snap.Items[2]
	assert.Equal(t, core.Paid, paid.Payed)
	assert.Equal(t, core.Unpaid, unpaid.Payed)
	assert.Equal(t, core.Unset, legacy.Payed)
	require.NotNil(t, paid.Amount)
	assert.Equal(t, 3, *paid.Amount)
	assert.Nil(t, unpaid.Amount)
	require.NotNil(t, paid.Position)
	assert.True(t, paid.Money.Equal(decimal.RequireFromString("20.5")))
}

func TestPersistUpdateAndDelete(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	g := core.HomeGroup{ID: "g1", Name: "Casa", Currency: "USD"}
	e := core.Entry{ID: "e1", Title: "Super", Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Category: core.Comida, HomeGroupID: "g1"}
	it := core.Item{ID: "i1", Money: decimal.RequireFromString("2"), Description: "Pan", EntryID: "e1"}
	require.NoError(t, repo.Persist(ctx, []store.Change{insert(g), insert(e), insert(it)}))

	e.Title = "Supermercado"
	it.Payed = core.Paid
	require.NoError(t, repo.Persist(ctx, []store.Change{
		{Op: store.OpUpdate, Kind: core.KindEntry, ID: "e1", Entity: e},
		{Op: store.OpUpdate, Kind: core.KindItem, ID: "i1", Entity: it},
	}))

	snap, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Supermercado", snap.Entries[0].Title)
	assert.Equal(t, core.Paid, snap.Items[0].Payed)

	require.NoError(t, repo.Persist(ctx, []store.Change{
		{Op: store.OpDelete, Kind: core.KindItem, ID: "i1"},
		{Op: store.OpDelete, Kind: core.KindEntry, ID: "e1"},
	}))
	snap, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Entries)
	assert.Empty(t, snap.Items)
	assert.Len(t, snap.HomeGroups, 1)
}

func TestPersistRejectsUnknownKind(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	err := repo.Persist(ctx, []store.Change{
		insert(core.HomeGroup{ID: "g1", Name: "Casa", Currency: "USD"}),
		{Op: store.OpDelete, Kind: core.Kind("bogus"), ID: "x"},
	})
	require.ErrorIs(t, err, store.ErrKindMismatch)

	snap, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.HomeGroups, "failed batch is rolled back")
}

func TestSameDateEntriesKeepOrderAcrossReopen(t *testing.T) {
	repo, path := newTestRepo(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	st, err := memory.Open(ctx, repo, nil)
	require.NoError(t, err)
	require.NoError(t, st.Insert(core.HomeGroup{ID: "g1", Name: "Casa", Currency: "USD", CreatedAt: day}))
	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, st.Insert(core.Entry{ID: id, Title: id, Date: day, Category: core.Comida, HomeGroupID: "g1"}))
	}
	_, err = st.Save(ctx)
	require.NoError(t, err)

	sectionIDs := func(snap core.Snapshot) []string {
		sections := ledger.GroupByDay(snap.Entries)
		require.Len(t, sections, 1)
		var ids []string
		for _, e := range sections[0].Entries {
			ids = append(ids, e.ID)
		}
		return ids
	}
	before := sectionIDs(st.Snapshot())
	assert.Equal(t, []string{"A", "B", "C"}, before)

	reopened, err := NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	st2, err := memory.Open(ctx, reopened, nil)
	require.NoError(t, err)
	assert.Equal(t, before, sectionIDs(st2.Snapshot()))
}
