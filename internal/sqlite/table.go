package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/paizhu/pkg/types"
)

// Compile-time interface check: table must implement Table.
var _ types.Table = (*table)(nil)

// table implements types.Table for one record kind. Statements are built
// once from the kind's codec.
type table struct {
	backend *Backend
	codec   codec
	name    string

	selectSQL string
	insertSQL string
	updateSQL string
}

func newTable(b *Backend, c codec) *table {
	name := string(c.kind)
	cols := c.allColumns()
	sets := make([]string, 0, len(cols)-1)
	for _, col := range cols[1:] {
		sets = append(sets, col+" = ?")
	}
	return &table{
		backend:   b,
		codec:     c,
		name:      name,
		selectSQL: "SELECT " + c.selectList() + " FROM " + name,
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			name, strings.Join(cols, ", "), placeholders(len(cols))),
		updateSQL: fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", name, strings.Join(sets, ", ")),
	}
}

func (t *table) Kind() types.Kind { return t.codec.kind }

// Create normalizes rec, assigns max(id)+1 and inserts the row.
func (t *table) Create(ctx context.Context, rec types.Record) (int64, error) {
	if err := types.CheckKind(rec, t.codec.kind); err != nil {
		return 0, err
	}
	if err := rec.Normalize(); err != nil {
		return 0, err
	}

	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, t.storageErr("create", err)
	}
	defer tx.Rollback()

	var id int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) + 1 FROM "+t.name).Scan(&id); err != nil {
		return 0, t.storageErr("next id", err)
	}
	types.Stamp(rec, id, b.config.EffectiveUserID(), b.now())

	vals, err := t.codec.values(rec)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, t.insertSQL, vals...); err != nil {
		return 0, t.storageErr("insert", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, t.storageErr("commit", err)
	}
	return id, nil
}

// Get returns nil, nil when the id does not exist.
func (t *table) Get(ctx context.Context, id int64) (types.Record, error) {
	if id <= 0 {
		return nil, nil
	}

	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	rec, err := t.codec.scanRecord(db.QueryRowContext(ctx, t.selectSQL+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, t.storageErr(fmt.Sprintf("get %d", id), err)
	}
	return rec, nil
}

// GetByDate matches the normalized date exactly and returns the earliest
// created row.
func (t *table) GetByDate(ctx context.Context, date string) (types.Record, error) {
	key, err := types.NormalizeKeyFor(t.codec.kind, date)
	if err != nil {
		return nil, err
	}

	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	q := t.selectSQL + " WHERE " + t.codec.dateColumn + " = ? ORDER BY createdAt ASC, id ASC LIMIT 1"
	rec, err := t.codec.scanRecord(db.QueryRowContext(ctx, q, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, t.storageErr("get by date "+key, err)
	}
	return rec, nil
}

// List returns a page of records, newest first.
func (t *table) List(ctx context.Context, limit, offset int) ([]types.Record, error) {
	if limit <= 0 {
		limit = types.DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	return t.query(ctx, db, " ORDER BY createdAt DESC, id DESC LIMIT ? OFFSET ?", limit, offset)
}

// Update merges patch into the stored row inside one transaction.
func (t *table) Update(ctx context.Context, id int64, patch types.Patch) error {
	if id <= 0 {
		return fmt.Errorf("%w %d: %w", types.ErrInvalidID, id, types.ErrNotFound)
	}

	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return t.storageErr("update", err)
	}
	defer tx.Rollback()

	cur, err := t.codec.scanRecord(tx.QueryRowContext(ctx, t.selectSQL+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("updating %s %d: %w", t.name, id, types.ErrNotFound)
	}
	if err != nil {
		return t.storageErr(fmt.Sprintf("read %d", id), err)
	}

	merged, err := types.ApplyPatch(cur, patch, b.now())
	if err != nil {
		return err
	}
	vals, err := t.codec.values(merged)
	if err != nil {
		return err
	}
	// Drop the leading id; it goes in the WHERE clause.
	args := append(vals[1:], id)
	if _, err := tx.ExecContext(ctx, t.updateSQL, args...); err != nil {
		return t.storageErr(fmt.Sprintf("update %d", id), err)
	}
	if err := tx.Commit(); err != nil {
		return t.storageErr("commit", err)
	}
	return nil
}

// Delete removes the row only.
func (t *table) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w %d: %w", types.ErrInvalidID, id, types.ErrNotFound)
	}

	b := t.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE id = ?", id)
	if err != nil {
		return t.storageErr(fmt.Sprintf("delete %d", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return t.storageErr(fmt.Sprintf("delete %d", id), err)
	}
	if n == 0 {
		return fmt.Errorf("deleting %s %d: %w", t.name, id, types.ErrNotFound)
	}
	return nil
}

// query runs selectSQL with the given suffix. The caller must hold b.mu.
func (t *table) query(ctx context.Context, db *sql.DB, suffix string, args ...any) ([]types.Record, error) {
	rows, err := db.QueryContext(ctx, t.selectSQL+suffix, args...)
	if err != nil {
		return nil, t.storageErr("query", err)
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		rec, err := t.codec.scanRecord(rows)
		if err != nil {
			return nil, t.storageErr("scan", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, t.storageErr("iterate", err)
	}
	return out, nil
}

func (t *table) storageErr(op string, err error) error {
	return &types.StorageError{Op: t.name + " " + op, Err: err}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
