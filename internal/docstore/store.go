// Package docstore implements the file-document backend of the local record
// store for hosts where the embedded database is unavailable. Each table is
// a JSONL file in the data directory, held in memory while attached and
// rewritten atomically on every mutation.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mesh-intelligence/paizhu/pkg/types"
)

// SettingsFile holds the key/value settings.
const SettingsFile = "settings.jsonl"

// Compile-time interface check: Store must implement types.Store.
var _ types.Store = (*Store)(nil)

// Store implements types.Store over JSONL files.
type Store struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	dataDir  string
	tables   map[types.Kind]*table
	settings map[string]string
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an unattached document store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		tables: make(map[types.Kind]*table),
		logger: logger.With("backend", types.BackendJSONL),
		now:    time.Now,
	}
}

// Backend returns the backend name.
func (s *Store) Backend() string { return types.BackendJSONL }

// FileName returns the JSONL file backing a kind.
func FileName(kind types.Kind) string {
	return string(kind) + ".jsonl"
}

// Attach loads every table file from DataDir, creating the directory if
// needed. Rows written before sync tracking are upgraded and saved back.
func (s *Store) Attach(config types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
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

	tables := make(map[types.Kind]*table, len(types.Kinds))
	for _, kind := range types.Kinds {
		t := &table{store: s, kind: kind, path: filepath.Join(dataDir, FileName(kind))}
		upgraded, err := t.load(s.logger)
		if err != nil {
			return &types.StorageError{Op: "load " + FileName(kind), Err: err}
		}
		if upgraded > 0 {
			s.logger.Info("upgraded legacy rows", "table", kind, "rows", upgraded)
			if err := writeJSONL(t.path, t.rows); err != nil {
				return &types.StorageError{Op: "save " + FileName(kind), Err: err}
			}
		}
		tables[kind] = t
	}

	settings, err := loadSettings(filepath.Join(dataDir, SettingsFile))
	if err != nil {
		return &types.StorageError{Op: "load " + SettingsFile, Err: err}
	}

	s.config = config
	s.dataDir = dataDir
	s.tables = tables
	s.settings = settings
	s.attached = true
	s.logger.Debug("attached", "dir", dataDir)
	return nil
}

// Detach drops the in-memory tables. Every mutation is already on disk.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}
	s.attached = false
	s.tables = make(map[types.Kind]*table)
	s.settings = nil
	return nil
}

// GetTable returns the Table for the given kind.
func (s *Store) GetTable(kind types.Kind) (types.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	t, ok := s.tables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrTableNotFound, kind)
	}
	return t, nil
}

// PendingSyncData returns copies of the pending rows of every kind in id
// order.
func (s *Store) PendingSyncData(ctx context.Context) (*types.PendingData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}

	data := &types.PendingData{}
	for _, kind := range types.Kinds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var pending []types.Record
		for _, rec := range s.tables[kind].rows {
			if rec.Head().SyncStatus == types.SyncPending {
				pending = append(pending, rec)
			}
		}
		sort.Slice(pending, func(i, j int) bool { return pending[i].Head().ID < pending[j].Head().ID })
		for _, rec := range pending {
			cp, err := clone(rec)
			if err != nil {
				return nil, err
			}
			data.Add(cp)
		}
	}
	data.Normalize()
	return data, nil
}

// PendingSyncCount counts pending rows per kind.
func (s *Store) PendingSyncCount(ctx context.Context) (types.SyncCount, error) {
	var count types.SyncCount

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return count, types.ErrStoreDetached
	}

	for _, kind := range types.Kinds {
		n := 0
		for _, rec := range s.tables[kind].rows {
			if rec.Head().SyncStatus == types.SyncPending {
				n++
			}
		}
		count.Set(kind, n)
	}
	return count, nil
}

// MarkAsExported flips the given rows to exported and rewrites the table
// file once.
func (s *Store) MarkAsExported(ctx context.Context, kind types.Kind, ids []int64) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", types.ErrTableNotFound, kind)
	}
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return types.ErrStoreDetached
	}

	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	t := s.tables[kind]
	next := make([]types.Record, len(t.rows))
	changed := false
	for i, rec := range t.rows {
		next[i] = rec
		if !want[rec.Head().ID] || rec.Head().SyncStatus == types.SyncExported {
			continue
		}
		cp, err := clone(rec)
		if err != nil {
			return err
		}
		cp.Head().SyncStatus = types.SyncExported
		next[i] = cp
		changed = true
	}
	if !changed {
		return nil
	}
	return t.commit(next)
}

// AttachmentsForLog returns copies of the attachment rows pointing at the
// given log.
func (s *Store) AttachmentsForLog(ctx context.Context, logType types.LogType, logID int64) ([]*types.Attachment, error) {
	if !logType.Valid() {
		return nil, fmt.Errorf("%w: unknown log type %q", types.ErrInvalidData, logType)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}

	var out []*types.Attachment
	for _, rec := range s.tables[types.KindAttachment].rows {
		a := rec.(*types.Attachment)
		if a.RelatedLogType != logType || a.RelatedLogID == nil || *a.RelatedLogID != logID {
			continue
		}
		cp, err := clone(a)
		if err != nil {
			return nil, err
		}
		out = append(out, cp.(*types.Attachment))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetSetting reads one key.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return "", false, types.ErrStoreDetached
	}
	v, ok := s.settings[key]
	return v, ok, nil
}

// SaveSetting upserts one key and rewrites the settings file.
func (s *Store) SaveSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return types.ErrInvalidData
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return types.ErrStoreDetached
	}

	next := make(map[string]string, len(s.settings)+1)
	for k, v := range s.settings {
		next[k] = v
	}
	next[key] = value
	if err := saveSettings(filepath.Join(s.dataDir, SettingsFile), next); err != nil {
		return &types.StorageError{Op: "save setting " + key, Err: err}
	}
	s.settings = next
	return nil
}

func loadSettings(path string) (map[string]string, error) {
	raw, err := readJSONL(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for _, line := range raw {
		var st types.Setting
		if err := json.Unmarshal(line, &st); err != nil || st.Key == "" {
			continue
		}
		out[st.Key] = st.Value
	}
	return out, nil
}

func saveSettings(path string, settings map[string]string) error {
	rows := make([]types.Setting, 0, len(settings))
	for k, v := range settings {
		rows = append(rows, types.Setting{Key: k, Value: v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return writeJSONL(path, rows)
}

// clone deep-copies a record so callers never alias the in-memory rows.
func clone(rec types.Record) (types.Record, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("copying %s record: %w", rec.Kind(), err)
	}
	return types.DecodeRecord(rec.Kind(), data)
}
