package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omomoney/internal/core"
	"omomoney/internal/store"
)

type fakePersister struct {
	err     error
	batches [][]store.Change
	snap    core.Snapshot
}

func (f *fakePersister) Persist(_ context.Context, changes []store.Change) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, changes)
	return nil
}

func (f *fakePersister) Load(context.Context) (core.Snapshot, error) {
	return f.snap, f.err
}

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// seedLedger inserts user u1, group g1 (with membership m1), entries e1 and
// e2 and items i1, i2 under e1.
func seedLedger(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.Insert(core.User{ID: "u1", Name: "Local", CreatedAt: at(2024, 1, 1)}))
	require.NoError(t, s.Insert(core.HomeGroup{ID: "g1", Name: "Casa", Currency: "USD", CreatedAt: at(2024, 1, 1)}))
	require.NoError(t, s.Insert(core.Membership{ID: "m1", UserID: "u1", HomeGroupID: "g1", IsAdmin: true, DateJoined: at(2024, 1, 1)}))
	require.NoError(t, s.Insert(core.Entry{ID: "e1", Title: "Super", Date: at(2024, 3, 15), Category: core.Comida, HomeGroupID: "g1"}))
	require.NoError(t, s.Insert(core.Entry{ID: "e2", Title: "Cine", Date: at(2024, 3, 20), Category: core.Ocio, HomeGroupID: "g1"}))
	require.NoError(t, s.Insert(core.Item{ID: "i1", Money: decimal.RequireFromString("20"), Description: "Pan", EntryID: "e1", Payed: core.Paid}))
	require.NoError(t, s.Insert(core.Item{ID: "i2", Money: decimal.RequireFromString("5"), Description: "Leche", EntryID: "e1", Payed: core.Unpaid}))
}

func TestInsertAndSnapshot(t *testing.T) {
	s := New(nil, nil)
	seedLedger(t, s)

	snap := s.Snapshot()
	assert.Equal(t, uint64(7), snap.Revision)
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "e2", snap.Entries[0].ID, "newest entry first")
	assert.Equal(t, []string{"i1", "i2"}, []string{snap.Items[0].ID, snap.Items[1].ID})
	assert.Len(t, snap.Memberships, 1)
	assert.Equal(t, 7, s.Pending())
}

func TestInsertErrors(t *testing.T) {
	s := New(nil, nil)
	seedLedger(t, s)

	err := s.Insert(core.HomeGroup{ID: "g1", Name: "Otra", Currency: "EUR"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	err = s.Insert(core.Item{ID: "i9", Money: decimal.Zero, Description: "x", EntryID: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.Insert(core.Entry{ID: "e9", Title: "  ", Date: at(2024, 3, 1), Category: core.Otros, HomeGroupID: "g1"})
	assert.ErrorIs(t, err, core.ErrEmptyTitle)
}

func TestUpdate(t *testing.T) {
	s := New(nil, nil)
	seedLedger(t, s)

	err := store.Update(s, "i2", func(it *core.Item) error {
		it.Payed = core.Paid
		return nil
	})
	require.NoError(t, err)
	got, ok := s.Get(core.KindItem, "i2")
	require.True(t, ok)
	assert.Equal(t, core.Paid, got.(core.Item).Payed)

	err = s.Update(core.KindItem, "i2", func(core.Entity) (core.Entity, error) {
		return core.Item{ID: "other", Description: "x", EntryID: "e1"}, nil
	})
	assert.ErrorIs(t, err, store.ErrKindMismatch)

	err = store.Update(s, "nope", func(*core.Entry) error { return nil })
	assert.ErrorIs(t, err, store.ErrNotFound)

	boom := errors.New("boom")
	err = store.Update(s, "e1", func(*core.Entry) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestInsertStoresPointersByValue(t *testing.T) {
	s := New(nil, nil)
	require.NoError(t, s.Insert(&core.HomeGroup{ID: "g1", Name: "Casa", Currency: "USD", CreatedAt: at(2024, 1, 1)}))
	require.NoError(t, s.Insert(&core.Entry{ID: "e1", Title: "Super", Date: at(2024, 3, 15), Category: core.Comida, HomeGroupID: "g1"}))

	var snap core.Snapshot
	require.NotPanics(t, func() { snap = s.Snapshot() })
	require.Len(t, snap.HomeGroups, 1)
	assert.Equal(t, "Casa", snap.HomeGroups[0].Name)
	require.Len(t, snap.Entries, 1)

	got, ok := s.Get(core.KindEntry, "e1")
	require.True(t, ok)
	assert.IsType(t, core.Entry{}, got)

	err := s.Update(core.KindEntry, "e1", func(e core.Entity) (core.Entity, error) {
		v := e.(core.Entry)
		v.Title = "Mercado"
		return &v, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Mercado", s.Snapshot().Entries[0].Title)

	var nilGroup *core.HomeGroup
	assert.ErrorIs(t, s.Insert(nilGroup), store.ErrKindMismatch)
	assert.ErrorIs(t, s.Insert(nil), store.ErrKindMismatch)
	err = s.Update(core.KindEntry, "e1", func(core.Entity) (core.Entity, error) { return nil, nil })
	assert.ErrorIs(t, err, store.ErrKindMismatch)
}

func TestUpdateMovesEntryBetweenGroups(t *testing.T) {
	s := New(nil, nil)
	seedLedger(t, s)
	require.NoError(t, s.Insert(core.HomeGroup{ID: "g2", Name: "Viaje", Currency: "EUR"}))

	require.NoError(t, store.Update(s, "e1", func(e *core.Entry) error {
		e.HomeGroupID = "g2"
		return nil
	}))
	require.NoError(t, s.Delete(core.KindHomeGroup, "g1"))

	snap := s.Snapshot()
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "e1", snap.Entries[0].ID)
	assert.Len(t, snap.Items, 2)
}

func TestDeleteCascades(t *testing.T) {
	s := New(nil, nil)
	seedLedger(t, s)
	_, err := s.Save(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Delete(core.KindHomeGroup, "g1"))

	snap := s.Snapshot()
	assert.Empty(t, snap.HomeGroups)
	assert.Empty(t, snap.Entries)
	assert.Empty(t, snap.Items)
	assert.Empty(t, snap.Memberships)
	assert.Len(t, snap.Users, 1)

	changes, err := s.Save(context.Background())
	require.NoError(t, err)
	require.Len(t, changes, 6)
	last := changes[len(changes)-1]
	assert.Equal(t, store.OpDelete, last.Op)
	assert.Equal(t, core.KindHomeGroup, last.Kind)
	for _, c := range changes {
		assert.Nil(t, c.Entity)
	}

	assert.ErrorIs(t, s.Delete(core.KindHomeGroup, "g1"), store.ErrNotFound)
}

func TestDeleteEntryRemovesItems(t *testing.T) {
	s := New(nil, nil)
	seedLedger(t, s)

	require.NoError(t, s.Delete(core.KindEntry, "e1"))
	snap := s.Snapshot()
	assert.Len(t, snap.Entries, 1)
	assert.Empty(t, snap.Items)
}

func TestSaveFailureKeepsState(t *testing.T) {
	p := &fakePersister{err: errors.New("disk full")}
	s := New(p, nil)
	seedLedger(t, s)

	_, err := s.Save(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrSaveFailed)
	assert.ErrorIs(t, err, p.err)

	assert.Len(t, s.Snapshot().Entries, 2, "in-memory state is not rolled back")
	assert.Equal(t, 7, s.Pending())

	p.err = nil
	changes, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Len(t, changes, 7)
	assert.Equal(t, 0, s.Pending())
	require.Len(t, p.batches, 1)

	changes, err = s.Save(context.Background())
	require.NoError(t, err)
	assert.Nil(t, changes)
}

func TestOpenSeedsFromPersister(t *testing.T) {
	p := &fakePersister{snap: core.Snapshot{
		HomeGroups: []core.HomeGroup{{ID: "g1", Name: "Casa", Currency: "USD"}},
		Entries: []core.Entry{
			{ID: "new", Title: "B", Date: at(2024, 3, 2), HomeGroupID: "g1"},
			{ID: "old", Title: "A", Date: at(2024, 3, 1), HomeGroupID: "g1"},
		},
		Items: []core.Item{{ID: "orphan", EntryID: "gone", Description: "x"}},
	}}

	s, err := Open(context.Background(), p, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Pending())

	snap := s.Snapshot()
	assert.Equal(t, []string{"new", "old"}, []string{snap.Entries[0].ID, snap.Entries[1].ID})
	assert.Len(t, snap.Items, 1)

	require.NoError(t, s.Delete(core.KindHomeGroup, "g1"))
	assert.Empty(t, s.Snapshot().Entries)
}

func TestOpenKeepsSameDateEntriesInLoadedOrder(t *testing.T) {
	day := at(2024, 3, 15)
	p := &fakePersister{snap: core.Snapshot{
		HomeGroups: []core.HomeGroup{{ID: "g1", Name: "Casa", Currency: "USD"}},
		Entries: []core.Entry{
			{ID: "later", Title: "D", Date: at(2024, 3, 16), HomeGroupID: "g1"},
			{ID: "a", Title: "A", Date: day, HomeGroupID: "g1"},
			{ID: "b", Title: "B", Date: day, HomeGroupID: "g1"},
			{ID: "c", Title: "C", Date: day, HomeGroupID: "g1"},
		},
	}}

	s, err := Open(context.Background(), p, nil)
	require.NoError(t, err)

	var ids []string
	for _, e := range s.Snapshot().Entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"later", "a", "b", "c"}, ids)
}
