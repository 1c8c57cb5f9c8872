package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/paizhu/pkg/types"
)

// headerColumns lead every record table, in this order.
var headerColumns = []string{"id", "user_id", "schema_version", "syncStatus", "createdAt", "updatedAt"}

// codec maps one record kind to its table columns. Nested sections are
// stored as JSON text.
type codec struct {
	kind       types.Kind
	dateColumn string
	columns    []string
	encode     func(rec types.Record, w *colWriter)
	decode     func(r *colReader) types.Record
}

// codecs lists every record table.
var codecs = []codec{dailyCodec, weeklyCodec, monthlyCodec, immediateCodec, attachmentCodec}

func (c codec) allColumns() []string {
	return append(append([]string{}, headerColumns...), c.columns...)
}

func (c codec) selectList() string {
	return strings.Join(c.allColumns(), ", ")
}

// colWriter collects column values for an insert or update.
type colWriter struct {
	vals []any
	err  error
}

func (w *colWriter) plain(v any) {
	w.vals = append(w.vals, v)
}

func (w *colWriter) json(v any) {
	if w.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		w.err = fmt.Errorf("encoding column %d: %w", len(w.vals), err)
		return
	}
	w.vals = append(w.vals, string(data))
}

// colReader collects scan targets and decodes JSON columns after the scan.
type colReader struct {
	dests []any
	after []func() error
}

func (r *colReader) plain(p any) {
	r.dests = append(r.dests, p)
}

func (r *colReader) json(target any) {
	var s sql.NullString
	r.dests = append(r.dests, &s)
	r.after = append(r.after, func() error {
		if !s.Valid || s.String == "" {
			return nil
		}
		return json.Unmarshal([]byte(s.String), target)
	})
}

func (r *colReader) finish() error {
	for _, f := range r.after {
		if err := f(); err != nil {
			return fmt.Errorf("decoding JSON column: %w", err)
		}
	}
	return nil
}

// rowHeader holds the header columns that need conversion after a scan.
type rowHeader struct {
	syncStatus sql.NullString
	createdAt  string
	updatedAt  string
}

func (rh *rowHeader) targets(h *types.Header) []any {
	return []any{&h.ID, &h.UserID, &h.SchemaVersion, &rh.syncStatus, &rh.createdAt, &rh.updatedAt}
}

func (rh *rowHeader) apply(h *types.Header) error {
	h.SyncStatus = types.SyncStatus(rh.syncStatus.String)
	var err error
	if h.CreatedAt, err = types.ParseTimestamp(rh.createdAt); err != nil {
		return fmt.Errorf("parsing createdAt: %w", err)
	}
	if h.UpdatedAt, err = types.ParseTimestamp(rh.updatedAt); err != nil {
		return fmt.Errorf("parsing updatedAt: %w", err)
	}
	h.Upgrade()
	return nil
}

func headerValues(h *types.Header) []any {
	return []any{
		h.ID,
		h.UserID,
		h.SchemaVersion,
		string(h.SyncStatus),
		types.FormatTimestamp(h.CreatedAt),
		types.FormatTimestamp(h.UpdatedAt),
	}
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row produced by c.selectList().
func (c codec) scanRecord(sc scanner) (types.Record, error) {
	var r colReader
	var rh rowHeader
	rec := c.decode(&r)
	dests := append(rh.targets(rec.Head()), r.dests...)
	if err := sc.Scan(dests...); err != nil {
		return nil, err
	}
	if err := rh.apply(rec.Head()); err != nil {
		return nil, err
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return rec, nil
}

// values returns header and column values of rec in allColumns order.
func (c codec) values(rec types.Record) ([]any, error) {
	var w colWriter
	c.encode(rec, &w)
	if w.err != nil {
		return nil, w.err
	}
	return append(headerValues(rec.Head()), w.vals...), nil
}
