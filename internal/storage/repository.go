// Package storage persists the ledger to SQLite. It implements
// store.Persister: changes are flushed in one transaction and the full state
// is read back at startup.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"omomoney/internal/core"
	applog "omomoney/internal/log"
	"omomoney/internal/store"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db     *sql.DB
	logger *applog.Logger
}

var _ store.Persister = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *applog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger = logger.WithComponent(applog.ComponentStorage)
	if v, dirty, err := SchemaVersion(dbPath); err == nil {
		logger.Debug("Database ready",
			applog.FieldOperation, applog.OpMigrate,
			"schema_version", v,
			"dirty", dirty)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Persist applies changes in order inside one transaction. Inserts and
// updates are upserts, so replaying a batch is harmless.
func (r *SQLiteRepository) Persist(ctx context.Context, changes []store.Change) error {
	if len(changes) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range changes {
		if err := applyChange(ctx, tx, c); err != nil {
			return fmt.Errorf("%s %s %s: %w", c.Op, c.Kind, c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.DebugContext(ctx, "Changes persisted",
		applog.FieldChanges, len(changes),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func applyChange(ctx context.Context, tx *sql.Tx, c store.Change) error {
	if c.Op == store.OpDelete {
		table, err := tableFor(c.Kind)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", c.ID)
		return err
	}

	var err error
	switch e := c.Entity.(type) {
	case core.User:
		_, err = tx.ExecContext(ctx, `INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, created_at = excluded.created_at`,
			e.ID, e.Name, formatTime(e.CreatedAt))
	case core.HomeGroup:
		_, err = tx.ExecContext(ctx, `INSERT INTO home_groups (id, name, currency, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, currency = excluded.currency, created_at = excluded.created_at`,
			e.ID, e.Name, e.Currency, formatTime(e.CreatedAt))
	case core.Membership:
		_, err = tx.ExecContext(ctx, `INSERT INTO memberships (id, user_id, home_group_id, is_admin, date_joined) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, home_group_id = excluded.home_group_id,
				is_admin = excluded.is_admin, date_joined = excluded.date_joined`,
			e.ID, e.UserID, e.HomeGroupID, e.IsAdmin, formatTime(e.DateJoined))
	case core.Entry:
		_, err = tx.ExecContext(ctx, `INSERT INTO entries (id, title, date, category, type, home_group_id) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET title = excluded.title, date = excluded.date, category = excluded.category,
				type = excluded.type, home_group_id = excluded.home_group_id`,
			e.ID, e.Title, formatTime(e.Date), string(e.Category), int(e.Type), e.HomeGroupID)
	case core.Item:
		_, err = tx.ExecContext(ctx, `INSERT INTO items (id, money, amount, description, entry_id, position, payed) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET money = excluded.money, amount = excluded.amount, description = excluded.description,
				entry_id = excluded.entry_id, position = excluded.position, payed = excluded.payed`,
			e.ID, e.Money.String(), nullInt(e.Amount), e.Description, e.EntryID, nullInt(e.Position), nullBool(e.Payed.Bool()))
	default:
		err = fmt.Errorf("%w: unsupported entity %T", store.ErrKindMismatch, c.Entity)
	}
	return err
}

// Load reads every table concurrently. Entries come back newest first;
// same-date entries keep insertion order.
func (r *SQLiteRepository) Load(ctx context.Context) (core.Snapshot, error) {
	var snap core.Snapshot
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.Users, err = r.loadUsers(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.HomeGroups, err = r.loadHomeGroups(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Memberships, err = r.loadMemberships(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Entries, err = r.loadEntries(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Items, err = r.loadItems(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return core.Snapshot{}, err
	}

	sort.SliceStable(snap.Entries, func(a, b int) bool {
		return snap.Entries[a].Date.After(snap.Entries[b].Date)
	})
	return snap, nil
}

func (r *SQLiteRepository) loadUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM users ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		var u core.User
		var created string
		if err := rows.Scan(&u.ID, &u.Name, &created); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.CreatedAt = parseTime(created)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadHomeGroups(ctx context.Context) ([]core.HomeGroup, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, currency, created_at FROM home_groups ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query home groups: %w", err)
	}
	defer rows.Close()

	var out []core.HomeGroup
	for rows.Next() {
		var h core.HomeGroup
		var created string
		if err := rows.Scan(&h.ID, &h.Name, &h.Currency, &created); err != nil {
			return nil, fmt.Errorf("scan home group: %w", err)
		}
		h.CreatedAt = parseTime(created)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadMemberships(ctx context.Context) ([]core.Membership, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, home_group_id, is_admin, date_joined FROM memberships ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	var out []core.Membership
	for rows.Next() {
		var m core.Membership
		var joined string
		if err := rows.Scan(&m.ID, &m.UserID, &m.HomeGroupID, &m.IsAdmin, &joined); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		m.DateJoined = parseTime(joined)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadEntries(ctx context.Context) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, date, category, type, home_group_id FROM entries ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []core.Entry
	for rows.Next() {
		var e core.Entry
		var date, category string
		var typ int
		if err := rows.Scan(&e.ID, &e.Title, &date, &category, &typ, &e.HomeGroupID); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Date = parseTime(date)
		e.Category = core.Category(category)
		if !e.Category.IsValid() {
			e.Category = core.DefaultCategory
		}
		e.Type = core.EntryType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadItems(ctx context.Context) ([]core.Item, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, money, amount, description, entry_id, position, payed FROM items ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []core.Item
	for rows.Next() {
		var it core.Item
		var money string
		var amount, position sql.NullInt64
		var payed sql.NullBool
		if err := rows.Scan(&it.ID, &money, &amount, &it.Description, &it.EntryID, &position, &payed); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		d, err := decimal.NewFromString(money)
		if err != nil {
			r.logger.WarnContext(ctx, "Unreadable money value, treating as zero",
				applog.FieldEntityID, it.ID, "money", money)
			d = decimal.Zero
		}
		it.Money = d
		it.Amount = intPtr(amount)
		it.Position = intPtr(position)
		if payed.Valid {
			it.Payed = core.PaymentStatusFrom(&payed.Bool)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func tableFor(kind core.Kind) (string, error) {
	switch kind {
	case core.KindUser:
		return "users", nil
	case core.KindHomeGroup:
		return "home_groups", nil
	case core.KindMembership:
		return "memberships", nil
	case core.KindEntry:
		return "entries", nil
	case core.KindItem:
		return "items", nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", store.ErrKindMismatch, kind)
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullBool(p *bool) sql.NullBool {
	if p == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
