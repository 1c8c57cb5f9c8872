package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// goose keeps its dialect, filesystem and logger in package state.
var gooseMu sync.Mutex

// runMigrations brings the schema up to the latest embedded version.
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{logger})

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return err
	}
	return nil
}

// MigrationVersion reports the applied schema migration version.
func (b *Backend) MigrationVersion() (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return 0, err
	}
	return dbVersion(db)
}

func dbVersion(db *sql.DB) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(db)
}

// gooseLogger routes goose output through slog at debug level.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}
