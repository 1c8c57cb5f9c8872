// Package store is the public entry point for opening the local record
// store. It picks the backend once at start-up and returns an attached
// types.Store; callers never branch on the backend afterwards.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/paizhu/internal/docstore"
	"github.com/mesh-intelligence/paizhu/internal/sqlite"
	"github.com/mesh-intelligence/paizhu/pkg/types"
)

// New returns an unattached store for a concrete backend name.
func New(backend string, logger *slog.Logger) (types.Store, error) {
	switch backend {
	case types.BackendSQLite:
		return sqlite.NewBackend(logger), nil
	case types.BackendJSONL:
		return docstore.New(logger), nil
	case "":
		return nil, types.ErrBackendEmpty
	}
	return nil, fmt.Errorf("%w: %q", types.ErrBackendUnknown, backend)
}

// attachSQLite attaches the embedded database. Replaced in tests.
var attachSQLite = func(cfg types.Config, logger *slog.Logger) (types.Store, error) {
	db := sqlite.NewBackend(logger)
	if err := db.Attach(cfg); err != nil {
		return nil, err
	}
	return db, nil
}

// Open creates and attaches the configured backend. With BackendAuto the
// embedded database is tried first. The document store is used only when
// no database file exists yet and the database cannot be created; an
// existing database that fails to open is an error, so its records never
// silently drop out of view.
//
// Example:
//
//	s, err := store.Open(types.Config{Backend: types.BackendAuto, DataDir: ".paizhu-db"}, logger)
//	if err != nil {
//	    return err
//	}
//	defer s.Detach()
func Open(cfg types.Config, logger *slog.Logger) (types.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Backend != types.BackendAuto {
		s, err := New(cfg.Backend, logger)
		if err != nil {
			return nil, err
		}
		if err := s.Attach(cfg); err != nil {
			return nil, fmt.Errorf("attaching %s store: %w", cfg.Backend, err)
		}
		return s, nil
	}

	dbPath := filepath.Join(cfg.DataDir, sqlite.DBFileName)
	_, statErr := os.Stat(dbPath)
	existed := !os.IsNotExist(statErr)

	primary := cfg
	primary.Backend = types.BackendSQLite
	db, err := attachSQLite(primary, logger)
	if err == nil {
		return db, nil
	}
	if existed {
		return nil, fmt.Errorf("attaching %s store at %s: %w", types.BackendSQLite, dbPath, err)
	}
	logger.Warn("embedded database unavailable, using document store", "error", err)
	// Drop what the failed attempt left behind so the next start falls
	// back again instead of finding a half-created database.
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(dbPath + suffix)
	}

	fallback := cfg
	fallback.Backend = types.BackendJSONL
	docs := docstore.New(logger)
	if err := docs.Attach(fallback); err != nil {
		return nil, fmt.Errorf("attaching %s store: %w", types.BackendJSONL, err)
	}
	return docs, nil
}
