// Package store defines the entity store the ledger engines read from and
// the persistence port it flushes to.
package store

import (
	"context"
	"errors"
	"fmt"

	"omomoney/internal/core"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("record already exists")
	ErrKindMismatch = errors.New("record kind mismatch")
	ErrSaveFailed   = errors.New("save failed")
)

// Op is the kind of mutation a Change records.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is one applied mutation waiting to be persisted. Entity is nil for
// deletes.
type Change struct {
	Op       Op
	Kind     core.Kind
	ID       string
	Entity   core.Entity
	Revision uint64
}

// Mutator returns the replacement for an existing record.
type Mutator func(core.Entity) (core.Entity, error)

// Ports.
type (
	// Persister writes changes durably and reads the full state back.
	Persister interface {
		Persist(ctx context.Context, changes []Change) error
		Load(ctx context.Context) (core.Snapshot, error)
	}

	Reader interface {
		Snapshot() core.Snapshot
		Get(kind core.Kind, id string) (core.Entity, bool)
		Revision() uint64
	}

	// Writer applies mutations in memory immediately. Save flushes them;
	// a failed Save leaves memory as is and keeps the changes pending.
	Writer interface {
		Insert(e core.Entity) error
		Update(kind core.Kind, id string, fn Mutator) error
		Delete(kind core.Kind, id string) error
		Save(ctx context.Context) ([]Change, error)
	}

	Store interface {
		Reader
		Writer
	}
)

// Update applies fn to a copy of the record of type T with the given ID and
// stores the result.
func Update[T core.Entity](w Writer, id string, fn func(*T) error) error {
	var zero T
	kind := zero.EntityKind()
	return w.Update(kind, id, func(e core.Entity) (core.Entity, error) {
		v, ok := e.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %s %s", ErrKindMismatch, kind, id)
		}
		if err := fn(&v); err != nil {
			return nil, err
		}
		return v, nil
	})
}
