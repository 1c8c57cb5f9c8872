package sqlite

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/paizhu/pkg/types"
)

// markChunk bounds the number of ids bound into one UPDATE statement.
const markChunk = 500

// PendingSyncData returns the pending rows of every kind in id order.
func (b *Backend) PendingSyncData(ctx context.Context) (*types.PendingData, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	data := &types.PendingData{}
	for _, kind := range types.Kinds {
		t := b.tables[kind]
		recs, err := t.query(ctx, db, " WHERE syncStatus = ? ORDER BY id ASC", string(types.SyncPending))
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			data.Add(rec)
		}
	}
	data.Normalize()
	return data, nil
}

// PendingSyncCount counts pending rows per kind.
func (b *Backend) PendingSyncCount(ctx context.Context) (types.SyncCount, error) {
	var count types.SyncCount

	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return count, err
	}

	for _, kind := range types.Kinds {
		var n int
		q := "SELECT COUNT(*) FROM " + string(kind) + " WHERE syncStatus = ?"
		if err := db.QueryRowContext(ctx, q, string(types.SyncPending)).Scan(&n); err != nil {
			return count, &types.StorageError{Op: "count pending " + string(kind), Err: err}
		}
		count.Set(kind, n)
	}
	return count, nil
}

// MarkAsExported flips the given rows to exported. Missing ids are ignored.
func (b *Backend) MarkAsExported(ctx context.Context, kind types.Kind, ids []int64) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", types.ErrTableNotFound, kind)
	}
	if len(ids) == 0 {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &types.StorageError{Op: "mark exported", Err: err}
	}
	defer tx.Rollback()

	for start := 0; start < len(ids); start += markChunk {
		end := min(start+markChunk, len(ids))
		chunk := ids[start:end]
		args := make([]any, 0, len(chunk)+1)
		args = append(args, string(types.SyncExported))
		for _, id := range chunk {
			args = append(args, id)
		}
		q := fmt.Sprintf("UPDATE %s SET syncStatus = ? WHERE id IN (%s)", kind, placeholders(len(chunk)))
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return &types.StorageError{Op: "mark exported " + string(kind), Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &types.StorageError{Op: "mark exported commit", Err: err}
	}
	return nil
}

// AttachmentsForLog returns attachment rows pointing at the given log.
func (b *Backend) AttachmentsForLog(ctx context.Context, logType types.LogType, logID int64) ([]*types.Attachment, error) {
	if !logType.Valid() {
		return nil, fmt.Errorf("%w: unknown log type %q", types.ErrInvalidData, logType)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	t := b.tables[types.KindAttachment]
	recs, err := t.query(ctx, db,
		" WHERE related_log_type = ? AND related_log_id = ? ORDER BY id ASC",
		string(logType), logID)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Attachment, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.(*types.Attachment))
	}
	return out, nil
}
