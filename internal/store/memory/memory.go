// Package memory is the in-memory entity store. Records live in per-kind
// tables with a parent-to-children index, so cascade deletes are index
// walks. Mutations apply immediately and queue up until Save.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"omomoney/internal/core"
	applog "omomoney/internal/log"
	"omomoney/internal/store"
)

type ref struct {
	kind core.Kind
	id   string
}

type record struct {
	seq    uint64
	entity core.Entity
}

type validator interface {
	Validate() error
}

type Store struct {
	mu       sync.RWMutex
	saveMu   sync.Mutex
	seq      uint64
	revision uint64
	tables   map[core.Kind]map[string]record
	children map[ref]map[ref]struct{}
	pending  []store.Change

	persister store.Persister
	logger    *applog.Logger
}

var _ store.Store = (*Store)(nil)

// New returns an empty store. persister may be nil, in which case Save only
// drains the pending queue.
func New(persister store.Persister, logger *applog.Logger) *Store {
	if logger == nil {
		logger = applog.Discard()
	}
	s := &Store{
		tables:    make(map[core.Kind]map[string]record),
		children:  make(map[ref]map[ref]struct{}),
		persister: persister,
		logger:    logger.WithComponent(applog.ComponentStore),
	}
	for _, k := range []core.Kind{core.KindHomeGroup, core.KindEntry, core.KindItem, core.KindUser, core.KindMembership} {
		s.tables[k] = make(map[string]record)
	}
	return s
}

// Open loads the persisted state into a new store. Loaded records are not
// validated, so legacy rows and orphans survive and are ignored by joins.
func Open(ctx context.Context, persister store.Persister, logger *applog.Logger) (*Store, error) {
	s := New(persister, logger)
	snap, err := persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	s.seed(snap)
	s.logger.Info("Store loaded",
		applog.FieldOperation, applog.OpLoad,
		"home_groups", len(snap.HomeGroups),
		"entries", len(snap.Entries),
		"items", len(snap.Items))
	return s, nil
}

func (s *Store) seed(snap core.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	put := func(e core.Entity) {
		s.seq++
		s.tables[e.EntityKind()][e.EntityID()] = record{seq: s.seq, entity: e}
		s.link(e)
	}
	for _, v := range snap.Users {
		put(v)
	}
	for _, v := range snap.HomeGroups {
		put(v)
	}
	for _, v := range snap.Memberships {
		put(v)
	}
	// Snapshots list entries newest first with same-date entries in creation
	// order. Seed oldest first without reordering ties.
	entries := append([]core.Entry(nil), snap.Entries...)
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Date.Before(entries[b].Date)
	})
	for _, v := range entries {
		put(v)
	}
	for _, v := range snap.Items {
		put(v)
	}
	s.revision = snap.Revision
}

// Insert adds a new record. Its parents must already exist.
func (s *Store) Insert(e core.Entity) error {
	e, err := deref(e)
	if err != nil {
		return err
	}
	if v, ok := e.(validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.tables[e.EntityKind()]
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", store.ErrKindMismatch, e.EntityKind())
	}
	if _, exists := table[e.EntityID()]; exists {
		return fmt.Errorf("%w: %s %s", store.ErrDuplicate, e.EntityKind(), e.EntityID())
	}
	if err := s.checkParents(e); err != nil {
		return err
	}

	s.seq++
	table[e.EntityID()] = record{seq: s.seq, entity: e}
	s.link(e)
	s.record(store.OpInsert, e.EntityKind(), e.EntityID(), e)
	return nil
}

// Update replaces the record with what fn returns. Kind and ID must not
// change.
func (s *Store) Update(kind core.Kind, id string, fn store.Mutator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tables[kind][id]
	if !ok {
		return fmt.Errorf("%w: %s %s", store.ErrNotFound, kind, id)
	}
	updated, err := fn(rec.entity)
	if err != nil {
		return err
	}
	if updated, err = deref(updated); err != nil {
		return err
	}
	if updated.EntityKind() != kind || updated.EntityKind() != kind || updated.EntityID() != id {
		return fmt.Errorf("%w: update of %s %s", store.ErrKindMismatch, kind, id)
	}
	if v, ok := updated.(validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if err := s.checkParents(updated); err != nil {
		return err
	}

	s.unlink(rec.entity)
	s.tables[kind][id] = record{seq: rec.seq, entity: updated}
	s.link(updated)
	s.record(store.OpUpdate, kind, id, updated)
	return nil
}

// Delete removes a record and, recursively, everything that references it.
func (s *Store) Delete(kind core.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[kind][id]; !ok {
		return fmt.Errorf("%w: %s %s", store.ErrNotFound, kind, id)
	}

	s.revision++
	var removed []ref
	var walk func(r ref)
	walk = func(r ref) {
		kids := make([]ref, 0, len(s.children[r]))
		for c := range s.children[r] {
			kids = append(kids, c)
		}
		sort.Slice(kids, func(a, b int) bool {
			return s.tables[kids[a].kind][kids[a].id].seq < s.tables[kids[b].kind][kids[b].id].seq
		})
		for _, c := range kids {
			if _, live := s.tables[c.kind][c.id]; live {
				walk(c)
			}
		}
		rec, live := s.tables[r.kind][r.id]
		if !live {
			return
		}
		s.unlink(rec.entity)
		delete(s.tables[r.kind], r.id)
		delete(s.children, r)
		removed = append(removed, r)
	}
	walk(ref{kind, id})

	for _, r := range removed {
		s.pending = append(s.pending, store.Change{Op: store.OpDelete, Kind: r.kind, ID: r.id, Revision: s.revision})
	}
	if len(removed) > 1 {
		s.logger.Debug("Cascade delete",
			applog.FieldEntityKind, kind,
			applog.FieldEntityID, id,
			"removed", len(removed))
	}
	return nil
}

// Save flushes pending changes to the persister. On failure nothing is
// rolled back and the changes stay queued for the next Save.
func (s *Store) Save(ctx context.Context) ([]store.Change, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	batch := append([]store.Change(nil), s.pending...)
	s.mu.RUnlock()

	if len(batch) == 0 {
		return nil, nil
	}

	if s.persister != nil {
		if err := s.persister.Persist(ctx, batch); err != nil {
			s.logger.Error("Save failed, changes kept pending",
				applog.FieldOperation, applog.OpSave,
				applog.FieldError, err.Error(),
				applog.FieldChanges, len(batch))
			return nil, fmt.Errorf("%w: %w", store.ErrSaveFailed, err)
		}
	}

	s.mu.Lock()
	s.pending = s.pending[len(batch):]
	rev := s.revision
	s.mu.Unlock()

	s.logger.Debug("Saved changes",
		applog.FieldOperation, applog.OpSave,
		applog.FieldChanges, len(batch),
		applog.FieldRevision, rev)
	return batch, nil
}

// Pending returns the number of changes not yet saved.
func (s *Store) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

func (s *Store) Get(kind core.Kind, id string) (core.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tables[kind][id]
	return rec.entity, ok
}

// Snapshot copies every table. Entries are newest first, everything else is
// in insertion order.
func (s *Store) Snapshot() core.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := core.Snapshot{Revision: s.revision}
	for _, rec := range s.ordered(core.KindHomeGroup) {
		snap.HomeGroups = append(snap.HomeGroups, rec.entity.(core.HomeGroup))
	}
	for _, rec := range s.ordered(core.KindEntry) {
		snap.Entries = append(snap.Entries, rec.entity.(core.Entry))
	}
	sort.SliceStable(snap.Entries, func(a, b int) bool {
		return snap.Entries[a].Date.After(snap.Entries[b].Date)
	})
	for _, rec := range s.ordered(core.KindItem) {
		snap.Items = append(snap.Items, rec.entity.(core.Item))
	}
	for _, rec := range s.ordered(core.KindUser) {
		snap.Users = append(snap.Users, rec.entity.(core.User))
	}
	for _, rec := range s.ordered(core.KindMembership) {
		snap.Memberships = append(snap.Memberships, rec.entity.(core.Membership))
	}
	return snap
}

func (s *Store) ordered(kind core.Kind) []record {
	out := make([]record, 0, len(s.tables[kind]))
	for _, rec := range s.tables[kind] {
		out = append(out, rec)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].seq < out[b].seq })
	return out
}

func (s *Store) record(op store.Op, kind core.Kind, id string, e core.Entity) {
	s.revision++
	s.pending = append(s.pending, store.Change{Op: op, Kind: kind, ID: id, Entity: e, Revision: s.revision})
}

func (s *Store) checkParents(e core.Entity) error {
	for _, p := range parents(e) {
		if _, ok := s.tables[p.kind][p.id]; !ok {
			return fmt.Errorf("%w: %s %s referenced by %s %s", store.ErrNotFound, p.kind, p.id, e.EntityKind(), e.EntityID())
		}
	}
	return nil
}

func (s *Store) link(e core.Entity) {
	self := ref{e.EntityKind(), e.EntityID()}
	for _, p := range parents(e) {
		kids, ok := s.children[p]
		if !ok {
			kids = make(map[ref]struct{})
			s.children[p] = kids
		}
		kids[self] = struct{}{}
	}
}

func (s *Store) unlink(e core.Entity) {
	self := ref{e.EntityKind(), e.EntityID()}
	for _, p := range parents(e) {
		delete(s.children[p], self)
	}
}

// deref stores entities by value. Pointers to the known entity types are
// copied; nil and unknown types are rejected.
func deref(e core.Entity) (core.Entity, error) {
	switch v := e.(type) {
	case core.HomeGroup, core.Entry, core.Item, core.User, core.Membership:
		return v, nil
	case *core.HomeGroup:
		if v != nil {
			return *v, nil
		}
	case *core.Entry:
		if v != nil {
			return *v, nil
		}
	case *core.Item:
		if v != nil {
			return *v, nil
		}
	case *core.User:
		if v != nil {
			return *v, nil
		}
	case *core.Membership:
		if v != nil {
			return *v, nil
		}
	}
	return nil, fmt.Errorf("%w: unsupported entity %T", store.ErrKindMismatch, e)
}

// parents lists the records e references. Deleting any of them deletes e.
func parents(e core.Entity) []ref {
	switch v := e.(type) {
	case core.Entry:
		return []ref{{core.KindHomeGroup, v.HomeGroupID}}
	case core.Item:
		return []ref{{core.KindEntry, v.EntryID}}
	case core.Membership:
		return []ref{{core.KindUser, v.UserID}, {core.KindHomeGroup, v.HomeGroupID}}
	}
	return nil
}
