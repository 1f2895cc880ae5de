package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omomoney/internal/core"
	"omomoney/internal/ledger"
	"omomoney/internal/search"
	"omomoney/internal/store"
	"omomoney/internal/store/memory"
)

type fakePersister struct {
	err   error
	saved int
}

func (f *fakePersister) Persist(_ context.Context, changes []store.Change) error {
	if f.err != nil {
		return f.err
	}
	f.saved += len(changes)
	return nil
}

func (f *fakePersister) Load(context.Context) (core.Snapshot, error) {
	return core.Snapshot{}, nil
}

type fakePublisher struct {
	err     error
	changes []store.Change
	closed  bool
}

func (f *fakePublisher) PublishChanges(_ context.Context, changes []store.Change) error {
	f.changes = append(f.changes, changes...)
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

var march = time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*LedgerService, *fakePersister, *fakePublisher) {
	t.Helper()
	p := &fakePersister{}
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(p, nil), pub, "local", nil).
		WithClock(func() time.Time { return march })
	return svc, p, pub
}

func paid(b bool) *bool { return &b }

// seedCasa builds the Casa/Super ledger: one expense on 2024-03-15 with a
// paid 20 and an unpaid 5.
func seedCasa(t *testing.T, svc *LedgerService) (core.HomeGroup, core.Entry) {
	t.Helper()
	ctx := context.Background()
	g, err := svc.CreateHomeGroup(ctx, "Casa", "usd")
	require.NoError(t, err)
	e, err := svc.AddEntry(ctx, EntryInput{
		HomeGroupID: g.ID,
		Title:       "Super",
		Date:        time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
		Category:    "Comida",
	})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, ItemInput{EntryID: e.ID, Money: "20", Description: "Pan", Paid: paid(true)})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, ItemInput{EntryID: e.ID, Money: "5", Description: "Leche", Paid: paid(false)})
	require.NoError(t, err)
	return g, e
}

func TestCreateHomeGroupAddsAdminMembership(t *testing.T) {
	svc, p, pub := newService(t)
	g, err := svc.CreateHomeGroup(context.Background(), "Casa", "usd")
	require.NoError(t, err)

	assert.Equal(t, "USD", g.Currency)
	groups := svc.HomeGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, g.ID, groups[0].ID)
	assert.Equal(t, 3, p.saved, "user, group and membership")
	assert.Len(t, pub.changes, 3)

	_, err = svc.CreateHomeGroup(context.Background(), "Bad", "GBP")
	assert.ErrorIs(t, err, core.ErrInvalidCurrency)
}

func TestViewScenario(t *testing.T) {
	svc, _, _ := newService(t)
	g, e := seedCasa(t, svc)
	ctx := context.Background()

	v, err := svc.View(ctx, ledger.Criteria{
		HomeGroupID: g.ID,
		MonthYear:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Category:    core.AllCategoriesLabel,
	})
	require.NoError(t, err)
	require.Len(t, v.Entries, 1)
	assert.Equal(t, e.ID, v.Entries[0].ID)
	assert.Equal(t, "20", v.TotalSpent.String())
	assert.Equal(t, "5", v.TotalPending.String())

	v, err = svc.View(ctx, ledger.Criteria{
		HomeGroupID: g.ID,
		MonthYear:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Category:    core.AllCategoriesLabel,
	})
	require.NoError(t, err)
	assert.Empty(t, v.Entries)
	assert.True(t, v.TotalSpent.IsZero())
}

func TestSetItemPaidUpdatesTotals(t *testing.T) {
	svc, _, _ := newService(t)
	g, e := seedCasa(t, svc)
	ctx := context.Background()

	snapItems := svc.store.Snapshot().Items
	require.Len(t, snapItems, 2)
	require.NoError(t, svc.SetItemPaid(ctx, snapItems[1].ID, true))

	v, err := svc.View(ctx, ledger.Criteria{HomeGroupID: g.ID, Category: core.AllCategoriesLabel})
	require.NoError(t, err)
	assert.Equal(t, "25", v.TotalSpent.String())

	require.NoError(t, svc.UpdateEntry(ctx, e.ID, func(en *core.Entry) error {
		en.Type = core.Income
		return nil
	}))
	v, err = svc.View(ctx, ledger.Criteria{HomeGroupID: g.ID, Category: core.AllCategoriesLabel})
	require.NoError(t, err)
	assert.True(t, v.TotalSpent.IsZero(), "income never counts as spent")
}

func TestMembershipAllowlist(t *testing.T) {
	svc, _, _ := newService(t)
	_, _ = seedCasa(t, svc)
	ctx := context.Background()

	_, err := svc.View(ctx, ledger.Criteria{HomeGroupID: "someone-elses"})
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = svc.AddEntry(ctx, EntryInput{HomeGroupID: "someone-elses", Title: "x"})
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestMembershipAllowlistGuardsEntriesAndItems(t *testing.T) {
	st := memory.New(nil, nil)
	svc := NewLedgerService(st, nil, "local", nil).WithClock(func() time.Time { return march })
	_, own := seedCasa(t, svc)
	ctx := context.Background()

	require.NoError(t, st.Insert(core.HomeGroup{ID: "g-other", Name: "Ajena", Currency: "EUR", CreatedAt: march}))
	require.NoError(t, st.Insert(core.Entry{ID: "e-other", Title: "Cena", Date: march, Category: core.Ocio, HomeGroupID: "g-other"}))
	require.NoError(t, st.Insert(core.Item{ID: "i-other", Money: decimal.NewFromInt(3), Description: "Vino", EntryID: "e-other"}))

	_, err := svc.AddItem(ctx, ItemInput{EntryID: "e-other", Money: "1", Description: "x"})
	assert.ErrorIs(t, err, ErrNotMember)
	assert.ErrorIs(t, svc.DeleteEntry(ctx, "e-other"), ErrNotMember)
	assert.ErrorIs(t, svc.SetItemPaid(ctx, "i-other", true), ErrNotMember)
	assert.ErrorIs(t, svc.DeleteItem(ctx, "i-other"), ErrNotMember)

	err = svc.UpdateEntry(ctx, own.ID, func(e *core.Entry) error {
		e.HomeGroupID = "g-other"
		return nil
	})
	assert.ErrorIs(t, err, ErrNotMember)
	got, ok := st.Get(core.KindEntry, own.ID)
	require.True(t, ok)
	assert.NotEqual(t, "g-other", got.(core.Entry).HomeGroupID, "rejected move is not applied")

	require.NoError(t, svc.UpdateEntry(ctx, own.ID, func(e *core.Entry) error {
		e.Title = "Mercado"
		return nil
	}))
}

func TestAddItemValidation(t *testing.T) {
	svc, _, _ := newService(t)
	_, e := seedCasa(t, svc)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, ItemInput{EntryID: e.ID, Money: "abc"})
	assert.Error(t, err)

	_, err = svc.AddItem(ctx, ItemInput{EntryID: e.ID, Money: "1", Quantity: "0"})
	assert.Error(t, err)

	_, err = svc.AddItem(ctx, ItemInput{EntryID: "missing", Money: "1"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	it, err := svc.AddItem(ctx, ItemInput{EntryID: e.ID, Money: "2.5", Quantity: "3", Description: "Huevos"})
	require.NoError(t, err)
	assert.Equal(t, 3, it.Quantity())
	assert.Equal(t, core.Unset, it.Payed)
}

func TestSaveFailureIsReportedNotRolledBack(t *testing.T) {
	svc, p, pub := newService(t)
	g, _ := seedCasa(t, svc)
	published := len(pub.changes)

	p.err = errors.New("disk full")
	_, err := svc.AddEntry(context.Background(), EntryInput{HomeGroupID: g.ID, Title: "Cine", Category: "Ocio"})
	require.ErrorIs(t, err, store.ErrSaveFailed)

	assert.Len(t, svc.store.Snapshot().Entries, 2, "mutation stays applied")
	assert.Len(t, pub.changes, published, "nothing announced for a failed save")

	p.err = nil
	require.NoError(t, svc.Save(context.Background()))
	assert.Len(t, pub.changes, published+1)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	svc, _, pub := newService(t)
	pub.err = errors.New("broker down")

	_, err := svc.CreateHomeGroup(context.Background(), "Casa", "EUR")
	assert.NoError(t, err)
}

func TestDeleteHomeGroupCascades(t *testing.T) {
	svc, _, _ := newService(t)
	g, _ := seedCasa(t, svc)

	require.NoError(t, svc.DeleteHomeGroup(context.Background(), g.ID))
	snap := svc.store.Snapshot()
	assert.Empty(t, snap.Entries)
	assert.Empty(t, snap.Items)
	assert.Empty(t, snap.Memberships)
	assert.Empty(t, svc.HomeGroups())
}

func TestSuggestScopedToUserGroups(t *testing.T) {
	svc, _, _ := newService(t)
	_, _ = seedCasa(t, svc)

	// A group the user is not a member of.
	require.NoError(t, svc.store.Insert(core.HomeGroup{ID: "other", Name: "Otro", Currency: "USD"}))
	require.NoError(t, svc.store.Insert(core.Entry{ID: "x", Title: "Supermercado", Date: march, Category: core.Comida, HomeGroupID: "other"}))

	got := svc.Suggest("super", "")
	require.Len(t, got, 1)
	assert.Equal(t, "Super", got[0].Text)
	assert.Equal(t, search.TypeEntry, got[0].Type)

	got = svc.Suggest("leches", "")
	require.Len(t, got, 1)
	assert.Equal(t, search.TypeItem, got[0].Type)
}

func TestNewSuggesterUsesCorpus(t *testing.T) {
	svc, _, _ := newService(t)
	_, _ = seedCasa(t, svc)

	results := make(chan search.Result, 4)
	sg := svc.NewSuggester(search.Options{Debounce: time.Millisecond, OnPublish: func(r search.Result) { results <- r }})
	defer sg.Close()

	sg.Query("pan", "")
	select {
	case r := <-results:
		require.Len(t, r.Suggestions, 1)
		assert.Equal(t, "Pan", r.Suggestions[0].Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no suggestions published")
	}
}

func TestClose(t *testing.T) {
	svc, _, pub := newService(t)
	closed := false
	svc.OnClose(closerFunc(func() error { closed = true; return nil }))

	require.NoError(t, svc.Close())
	assert.True(t, pub.closed)
	assert.True(t, closed)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
