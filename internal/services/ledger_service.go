package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"omomoney/internal/core"
	"omomoney/internal/events"
	"omomoney/internal/ledger"
	applog "omomoney/internal/log"
	"omomoney/internal/search"
	"omomoney/internal/store"
)

// ErrNotMember is returned when the current user has no membership in the
// requested home group.
var ErrNotMember = errors.New("home group is not one of the user's")

// EntryInput is the raw form data for a new entry.
type EntryInput struct {
	HomeGroupID string
	Title       string
	Date        time.Time
	Category    string // display name or key; unknown values become Otros
	Income      bool
}

// ItemInput is the raw form data for a new item.
type ItemInput struct {
	EntryID     string
	Money       string
	Quantity    string
	Description string
	Paid        *bool
}

// LedgerService orchestrates mutations, saves and change notifications for
// one local user. Every mutation is applied in memory and then saved; a
// failed save is returned and logged but the mutation stays applied.
type LedgerService struct {
	store     store.Store
	publisher events.Publisher
	userID    string
	logger    *applog.Logger
	sl        *applog.StructuredLogger
	closers   []io.Closer
	now       func() time.Time
}

// NewLedgerService wires a service. publisher may be nil.
func NewLedgerService(st store.Store, publisher events.Publisher, userID string, logger *applog.Logger) *LedgerService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentLedger)
	return &LedgerService{
		store:     st,
		publisher: publisher,
		userID:    userID,
		logger:    logger,
		sl:        applog.NewStructuredLogger(logger),
		now:       time.Now,
	}
}

// WithClock replaces the time source used for new records and views.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// OnClose registers resources released by Close, such as the database.
func (s *LedgerService) OnClose(c io.Closer) {
	s.closers = append(s.closers, c)
}

// UserID is the current local user.
func (s *LedgerService) UserID() string {
	return s.userID
}

// EnsureUser creates the current user on first use.
func (s *LedgerService) EnsureUser(ctx context.Context, name string) (core.User, error) {
	if e, ok := s.store.Get(core.KindUser, s.userID); ok {
		return e.(core.User), nil
	}
	if strings.TrimSpace(name) == "" {
		name = s.userID
	}
	u := core.User{ID: s.userID, Name: name, CreatedAt: s.now()}
	if err := s.store.Insert(u); err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, s.commit(ctx, applog.OpCreate, core.KindUser, u.ID)
}

// CreateHomeGroup creates a group and makes the current user its admin.
func (s *LedgerService) CreateHomeGroup(ctx context.Context, name, currency string) (core.HomeGroup, error) {
	if _, err := s.EnsureUser(ctx, ""); err != nil {
		return core.HomeGroup{}, err
	}
	now := s.now()
	g := core.HomeGroup{
		ID:        core.NewID(),
		Name:      strings.TrimSpace(name),
		Currency:  strings.ToUpper(strings.TrimSpace(currency)),
		CreatedAt: now,
	}
	if err := s.store.Insert(g); err != nil {
		return core.HomeGroup{}, fmt.Errorf("create home group: %w", err)
	}
	m := core.Membership{
		ID:          core.NewID(),
		UserID:      s.userID,
		HomeGroupID: g.ID,
		IsAdmin:     true,
		DateJoined:  now,
	}
	if err := s.store.Insert(m); err != nil {
		return core.HomeGroup{}, fmt.Errorf("create membership: %w", err)
	}
	return g, s.commit(ctx, applog.OpCreate, core.KindHomeGroup, g.ID)
}

// RenameHomeGroup changes a group's name. The currency is fixed.
func (s *LedgerService) RenameHomeGroup(ctx context.Context, id, name string) error {
	if err := s.requireMember(id); err != nil {
		return err
	}
	err := store.Update(s.store, id, func(g *core.HomeGroup) error {
		g.Name = strings.TrimSpace(name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("rename home group: %w", err)
	}
	return s.commit(ctx, applog.OpUpdate, core.KindHomeGroup, id)
}

// DeleteHomeGroup removes a group with its entries, items and memberships.
func (s *LedgerService) DeleteHomeGroup(ctx context.Context, id string) error {
	if err := s.requireMember(id); err != nil {
		return err
	}
	if err := s.store.Delete(core.KindHomeGroup, id); err != nil {
		return fmt.Errorf("delete home group: %w", err)
	}
	return s.commit(ctx, applog.OpDelete, core.KindHomeGroup, id)
}

// HomeGroups lists the current user's groups.
func (s *LedgerService) HomeGroups() []core.HomeGroup {
	return ledger.UserHomeGroups(s.store.Snapshot(), s.userID)
}

// AddEntry creates an entry in one of the user's groups.
func (s *LedgerService) AddEntry(ctx context.Context, in EntryInput) (core.Entry, error) {
	if err := s.requireMember(in.HomeGroupID); err != nil {
		return core.Entry{}, err
	}
	e := core.Entry{
		ID:          core.NewID(),
		Title:       strings.TrimSpace(in.Title),
		Date:        in.Date,
		Category:    core.CategoryFromDisplayName(in.Category),
		HomeGroupID: in.HomeGroupID,
	}
	if e.Date.IsZero() {
		e.Date = s.now()
	}
	if in.Income {
		e.Type = core.Income
	}
	if err := s.store.Insert(e); err != nil {
		return core.Entry{}, fmt.Errorf("create entry: %w", err)
	}
	return e, s.commit(ctx, applog.OpCreate, core.KindEntry, e.ID)
}

// UpdateEntry edits an entry in place. Moving it to another group requires
// membership in that group too.
func (s *LedgerService) UpdateEntry(ctx context.Context, id string, fn func(*core.Entry) error) error {
	if err := s.requireEntryMember(id); err != nil {
		return err
	}
	acl := s.allowlist()
	err := store.Update(s.store, id, func(e *core.Entry) error {
		if err := fn(e); err != nil {
			return err
		}
		return acl.group(e.HomeGroupID)
	})
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return s.commit(ctx, applog.OpUpdate, core.KindEntry, id)
}

// DeleteEntry removes an entry and its items.
func (s *LedgerService) DeleteEntry(ctx context.Context, id string) error {
	if err := s.requireEntryMember(id); err != nil {
		return err
	}
	if err := s.store.Delete(core.KindEntry, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return s.commit(ctx, applog.OpDelete, core.KindEntry, id)
}

// AddItem parses the form input and adds the item to its entry.
func (s *LedgerService) AddItem(ctx context.Context, in ItemInput) (core.Item, error) {
	if err := s.requireEntryMember(in.EntryID); err != nil {
		return core.Item{}, err
	}
	money, err := core.ParseMoney(in.Money)
	if err != nil {
		return core.Item{}, err
	}
	qty, err := core.ParseQuantity(in.Quantity)
	if err != nil {
		return core.Item{}, err
	}
	it := core.Item{
		ID:          core.NewID(),
		Money:       money,
		Amount:      qty,
		Description: strings.TrimSpace(in.Description),
		EntryID:     in.EntryID,
		Payed:       core.PaymentStatusFrom(in.Paid),
	}
	if err := s.store.Insert(it); err != nil {
		return core.Item{}, fmt.Errorf("create item: %w", err)
	}
	return it, s.commit(ctx, applog.OpCreate, core.KindItem, it.ID)
}

// UpdateItem edits an item in place.
func (s *LedgerService) UpdateItem(ctx context.Context, id string, fn func(*core.Item) error) error {
	if err := s.requireItemMember(id); err != nil {
		return err
	}
	acl := s.allowlist()
	err := store.Update(s.store, id, func(it *core.Item) error {
		if err := fn(it); err != nil {
			return err
		}
		return acl.entry(it.EntryID)
	})
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return s.commit(ctx, applog.OpUpdate, core.KindItem, id)
}

// SetItemPaid marks an item paid or unpaid.
func (s *LedgerService) SetItemPaid(ctx context.Context, id string, paid bool) error {
	return s.UpdateItem(ctx, id, func(it *core.Item) error {
		it.Payed = core.PaymentStatusFrom(&paid)
		return nil
	})
}

// DeleteItem removes one item.
func (s *LedgerService) DeleteItem(ctx context.Context, id string) error {
	if err := s.requireItemMember(id); err != nil {
		return err
	}
	if err := s.store.Delete(core.KindItem, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return s.commit(ctx, applog.OpDelete, core.KindItem, id)
}

// View computes the main list for the criteria. The group must belong to
// the current user; an empty group ID yields an empty view.
func (s *LedgerService) View(ctx context.Context, c ledger.Criteria) (ledger.View, error) {
	if c.HomeGroupID != "" {
		if err := s.requireMember(c.HomeGroupID); err != nil {
			return ledger.View{}, err
		}
	}
	if c.MonthYear.IsZero() {
		c.MonthYear = s.now()
	}
	start := time.Now()
	v := ledger.Compute(s.store.Snapshot(), c, s.now())

	fields := applog.NewFields().
		WithOperation(applog.OpCompute).
		WithHomeGroup(c.HomeGroupID).
		WithPeriod(c.MonthYear.Year(), int(c.MonthYear.Month())).
		WithRevision(v.Revision)
	if c.SearchText != "" {
		fields = fields.WithQuery(c.SearchText, len(v.Entries))
	}
	s.logger.DebugContext(ctx, "View computed",
		append(fields.ToSlice(), applog.FieldDuration, time.Since(start).Milliseconds())...)
	return v, nil
}

// Corpus returns the suggestion corpus limited to the user's groups.
func (s *LedgerService) Corpus() search.Corpus {
	snap := s.store.Snapshot()
	allowed := make(map[string]struct{})
	for _, g := range ledger.UserHomeGroups(snap, s.userID) {
		allowed[g.ID] = struct{}{}
	}

	c := search.Corpus{Revision: snap.Revision}
	kept := make(map[string]struct{})
	for _, e := range snap.Entries {
		if _, ok := allowed[e.HomeGroupID]; ok {
			c.Entries = append(c.Entries, e)
			kept[e.ID] = struct{}{}
		}
	}
	for _, it := range snap.Items {
		if _, ok := kept[it.EntryID]; ok {
			c.Items = append(c.Items, it)
		}
	}
	return c
}

// Suggest runs one synchronous suggestion pass.
func (s *LedgerService) Suggest(query, excludeExact string) []search.Suggestion {
	c := s.Corpus()
	out := search.Generate(query, c.Entries, c.Items, excludeExact)
	s.logger.Debug("Suggestions generated",
		applog.NewFields().WithOperation(applog.OpSuggest).WithQuery(query, len(out)).ToSlice()...)
	return out
}

// NewSuggester returns a debounced suggester over the user's corpus.
func (s *LedgerService) NewSuggester(opts search.Options) *search.Suggester {
	if opts.Logger == nil {
		opts.Logger = s.logger
	}
	return search.NewSuggester(s.Corpus, opts)
}

// Save flushes pending changes and announces them.
func (s *LedgerService) Save(ctx context.Context) error {
	changes, err := s.store.Save(ctx)
	if err != nil {
		s.sl.LogError(ctx, "Ledger save failed", err, applog.OpSave,
			applog.NewFields().WithErrorType(applog.ErrorTypeDatabase))
		return err
	}
	if len(changes) == 0 {
		return nil
	}
	if err := s.publisher.PublishChanges(ctx, changes); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish change notifications",
			applog.FieldError, err.Error(),
			applog.FieldChanges, len(changes))
	}
	return nil
}

func (s *LedgerService) commit(ctx context.Context, op string, kind core.Kind, id string) error {
	if err := s.Save(ctx); err != nil {
		return err
	}
	s.sl.LogMutation(ctx, op, string(kind), id, s.store.Revision())
	return nil
}

// allowlist captures the user's groups and their entries at one revision.
// Mutators run under the store lock, so they check against it instead of
// reading the store.
type allowlist struct {
	groups  map[string]struct{}
	entries map[string]string // entry ID to group ID
}

func (s *LedgerService) allowlist() allowlist {
	snap := s.store.Snapshot()
	acl := allowlist{
		groups:  make(map[string]struct{}),
		entries: make(map[string]string, len(snap.Entries)),
	}
	for _, g := range ledger.UserHomeGroups(snap, s.userID) {
		acl.groups[g.ID] = struct{}{}
	}
	for _, e := range snap.Entries {
		acl.entries[e.ID] = e.HomeGroupID
	}
	return acl
}

func (a allowlist) group(id string) error {
	if _, ok := a.groups[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotMember, id)
	}
	return nil
}

// entry checks the group owning an entry. Unknown entries pass so the store
// reports them as not found.
func (a allowlist) entry(id string) error {
	g, ok := a.entries[id]
	if !ok {
		return nil
	}
	return a.group(g)
}

func (s *LedgerService) requireMember(homeGroupID string) error {
	return s.allowlist().group(homeGroupID)
}

func (s *LedgerService) requireEntryMember(entryID string) error {
	return s.allowlist().entry(entryID)
}

func (s *LedgerService) requireItemMember(itemID string) error {
	it, ok := s.store.Get(core.KindItem, itemID)
	if !ok {
		return nil
	}
	return s.requireEntryMember(it.(core.Item).EntryID)
}

// Close releases the publisher and registered resources.
func (s *LedgerService) Close() error {
	var errs []error
	if err := s.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("publisher: %w", err))
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
