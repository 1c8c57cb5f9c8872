// Package sqlite implements the embedded-database backend of the local
// record store on top of modernc.org/sqlite. The schema is applied by goose
// migrations embedded in the binary.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/paizhu/pkg/types"
)

// DBFileName is the database file created in the data directory.
const DBFileName = "paizhu.db"

// Compile-time interface check: Backend must implement Store.
var _ types.Store = (*Backend)(nil)

// Backend implements the Store interface using a single SQLite file.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	tables   map[types.Kind]*table
	logger   *slog.Logger
	now      func() time.Time
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		tables: make(map[types.Kind]*table),
		logger: logger.With("backend", types.BackendSQLite),
		now:    time.Now,
	}
}

// Backend returns the backend name.
func (b *Backend) Backend() string { return types.BackendSQLite }

// GetTable returns the Table for the given kind.
// Returns ErrTableNotFound if the kind is not recognized.
// Returns ErrStoreDetached if the backend is not attached.
func (b *Backend) GetTable(kind types.Kind) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	t, ok := b.tables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrTableNotFound, kind)
	}
	return t, nil
}

// Attach opens the database file in DataDir, creating the directory if
// needed, and migrates the schema to the latest version.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return &types.StorageError{Op: "create data dir", Err: err}
	}

	dbPath := filepath.Join(dataDir, DBFileName)
	db, err := openDB(dbPath)
	if err != nil {
		return &types.StorageError{Op: "open " + dbPath, Err: err}
	}

	if err := runMigrations(context.Background(), db, b.logger); err != nil {
		db.Close()
		return &types.StorageError{Op: "migrate", Err: err}
	}

	b.db = db
	b.config = config
	b.attached = true

	for _, c := range codecs {
		b.tables[c.kind] = newTable(b, c)
	}

	b.logger.Debug("attached", "path", dbPath)
	return nil
}

// openDB opens the database and applies the connection pragmas. The pool is
// limited to one connection: the store has a single writer.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return db, nil
}

// Detach checkpoints the WAL and closes the database. After Detach, all
// operations return ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if b.db != nil {
		if _, err := b.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			b.logger.Warn("wal checkpoint failed", "error", err)
		}
		if err := b.db.Close(); err != nil {
			return &types.StorageError{Op: "close", Err: err}
		}
		b.db = nil
	}

	b.attached = false
	b.tables = make(map[types.Kind]*table)
	return nil
}

// conn returns the open database or ErrStoreDetached. The caller must hold
// b.mu.
func (b *Backend) conn() (*sql.DB, error) {
	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return b.db, nil
}
