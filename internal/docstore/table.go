package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mesh-intelligence/paizhu/pkg/types"
)

// Compile-time interface check: table must implement Table.
var _ types.Table = (*table)(nil)

// table holds the rows of one kind in file order.
type table struct {
	store *Store
	kind  types.Kind
	path  string
	rows  []types.Record
}

// headerProbe detects rows written before sync tracking.
type headerProbe struct {
	SyncStatus *string `json:"syncStatus"`
}

// load reads the table file and returns how many rows needed upgrading.
// Lines that do not decode as a record are skipped.
func (t *table) load(logger *slog.Logger) (int, error) {
	raw, err := readJSONL(t.path)
	if err != nil {
		return 0, err
	}
	upgraded := 0
	t.rows = make([]types.Record, 0, len(raw))
	for i, line := range raw {
		rec, err := types.DecodeRecord(t.kind, line)
		if err != nil {
			logger.Warn("skipping unreadable row", "table", t.kind, "line", i+1, "error", err)
			continue
		}
		var probe headerProbe
		if json.Unmarshal(line, &probe) == nil && probe.SyncStatus == nil {
			upgraded++
		}
		t.rows = append(t.rows, rec)
	}
	return upgraded, nil
}

// commit writes rows to disk and then swaps them in. The caller must hold
// the store write lock.
func (t *table) commit(rows []types.Record) error {
	if err := writeJSONL(t.path, rows); err != nil {
		return &types.StorageError{Op: "save " + FileName(t.kind), Err: err}
	}
	t.rows = rows
	return nil
}

func (t *table) Kind() types.Kind { return t.kind }

// Create normalizes rec, assigns max(id)+1 and appends it.
func (t *table) Create(ctx context.Context, rec types.Record) (int64, error) {
	if err := types.CheckKind(rec, t.kind); err != nil {
		return 0, err
	}
	if err := rec.Normalize(); err != nil {
		return 0, err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return 0, types.ErrStoreDetached
	}

	var maxID int64
	for _, r := range t.rows {
		maxID = max(maxID, r.Head().ID)
	}
	types.Stamp(rec, maxID+1, s.config.EffectiveUserID(), s.now())

	stored, err := clone(rec)
	if err != nil {
		return 0, err
	}
	next := append(append(make([]types.Record, 0, len(t.rows)+1), t.rows...), stored)
	if err := t.commit(next); err != nil {
		return 0, err
	}
	return maxID + 1, nil
}

// Get returns nil, nil when the id does not exist.
func (t *table) Get(ctx context.Context, id int64) (types.Record, error) {
	if id <= 0 {
		return nil, nil
	}

	s := t.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}

	i := t.indexOf(id)
	if i < 0 {
		return nil, nil
	}
	return clone(t.rows[i])
}

// GetByDate returns the earliest created row filed under the normalized
// date.
func (t *table) GetByDate(ctx context.Context, date string) (types.Record, error) {
	key, err := types.NormalizeKeyFor(t.kind, date)
	if err != nil {
		return nil, err
	}

	s := t.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}

	var best types.Record
	for _, r := range t.rows {
		if r.DateKey() != key {
			continue
		}
		if best == nil || olderThan(r, best) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	return clone(best)
}

// List returns a page of rows, newest first.
func (t *table) List(ctx context.Context, limit, offset int) ([]types.Record, error) {
	if limit <= 0 {
		limit = types.DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	s := t.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}

	sorted := append([]types.Record(nil), t.rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return olderThan(sorted[j], sorted[i]) })
	if offset >= len(sorted) {
		return nil, nil
	}
	end := min(offset+limit, len(sorted))

	out := make([]types.Record, 0, end-offset)
	for _, r := range sorted[offset:end] {
		cp, err := clone(r)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// Update merges patch into the stored row.
func (t *table) Update(ctx context.Context, id int64, patch types.Patch) error {
	if id <= 0 {
		return fmt.Errorf("%w %d: %w", types.ErrInvalidID, id, types.ErrNotFound)
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return types.ErrStoreDetached
	}

	i := t.indexOf(id)
	if i < 0 {
		return fmt.Errorf("updating %s %d: %w", t.kind, id, types.ErrNotFound)
	}
	merged, err := types.ApplyPatch(t.rows[i], patch, s.now())
	if err != nil {
		return err
	}
	next := append([]types.Record(nil), t.rows...)
	next[i] = merged
	return t.commit(next)
}

// Delete removes the row only.
func (t *table) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w %d: %w", types.ErrInvalidID, id, types.ErrNotFound)
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return types.ErrStoreDetached
	}

	i := t.indexOf(id)
	if i < 0 {
		return fmt.Errorf("deleting %s %d: %w", t.kind, id, types.ErrNotFound)
	}
	next := make([]types.Record, 0, len(t.rows)-1)
	next = append(next, t.rows[:i]...)
	next = append(next, t.rows[i+1:]...)
	return t.commit(next)
}

func (t *table) indexOf(id int64) int {
	for i, r := range t.rows {
		if r.Head().ID == id {
			return i
		}
	}
	return -1
}

// olderThan orders by creation time, then id.
func olderThan(a, b types.Record) bool {
	ha, hb := a.Head(), b.Head()
	if !ha.CreatedAt.Equal(hb.CreatedAt) {
		return ha.CreatedAt.Before(hb.CreatedAt)
	}
	return ha.ID < hb.ID
}
