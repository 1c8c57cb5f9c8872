package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mesh-intelligence/paizhu/pkg/types"
)

// GetSetting reads one key from the settings table.
func (b *Backend) GetSetting(ctx context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return "", false, err
	}

	var value string
	err = db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &types.StorageError{Op: "get setting " + key, Err: err}
	}
	return value, true, nil
}

// SaveSetting upserts one key.
func (b *Backend) SaveSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return types.ErrInvalidData
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `INSERT INTO settings (key, value, updatedAt) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = excluded.updatedAt`,
		key, value, types.FormatTimestamp(b.now()))
	if err != nil {
		return &types.StorageError{Op: "save setting " + key, Err: err}
	}
	return nil
}
