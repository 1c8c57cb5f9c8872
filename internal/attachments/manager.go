// Package attachments manages the directory of attachment files kept on the
// device. Files are copied in under deterministic names so the log date and
// category can be recovered from the name alone.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mesh-intelligence/paizhu/internal/fsutil"
	"github.com/mesh-intelligence/paizhu/pkg/types"
)

// SourceFile describes a file picked by the user.
type SourceFile struct {
	Path     string
	Name     string // display name; defaults to the stored name
	MIMEType string // detected from the extension when empty
}

// Meta describes a file in the managed directory.
type Meta struct {
	TempID       int64     `json:"tempId"`
	OriginalName string    `json:"originalName"`
	StoredName   string    `json:"storedName"`
	StoredPath   string    `json:"storedPath"`
	Size         int64     `json:"size"`
	MIMEType     string    `json:"mimeType"`
	Category     string    `json:"category"`
	LogDate      string    `json:"logDate"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Ref converts the metadata to the copy embedded in a record section.
func (m *Meta) Ref() types.AttachmentRef {
	return types.AttachmentRef{
		ID:           m.TempID,
		OriginalName: m.OriginalName,
		FileName:     m.StoredName,
		FilePath:     m.StoredPath,
		FileSize:     m.Size,
		MIMEType:     m.MIMEType,
		Category:     m.Category,
	}
}

// Attachment converts the metadata to a new attachment row.
func (m *Meta) Attachment() *types.Attachment {
	return &types.Attachment{
		Category:     m.Category,
		OriginalName: m.OriginalName,
		FileName:     m.StoredName,
		FilePath:     m.StoredPath,
		FileSize:     m.Size,
		MIMEType:     m.MIMEType,
		LogDate:      m.LogDate,
	}
}

// Manager owns one attachment directory.
type Manager struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewManager returns a manager for dir. The directory is created on first
// use.
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dir:    dir,
		logger: logger.With("component", "attachments"),
		now:    time.Now,
	}
}

// Dir returns the managed directory.
func (m *Manager) Dir() string { return m.dir }

func (m *Manager) ensureDir() error {
	return os.MkdirAll(m.dir, 0o755)
}

// SaveOne copies a source file into the managed directory.
func (m *Manager) SaveOne(ctx context.Context, file SourceFile, category, logDate string) (*Meta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.ensureDir(); err != nil {
		return nil, &types.CopyError{Source: file.Path, Dest: m.dir, Err: err}
	}

	now := m.now()
	name := StoredName(file.Path, category, logDate, now)
	if types.IsNormalizedCategory(category) {
		// Two sources with the same base name in one millisecond.
		for m.exists(name) {
			now = now.Add(time.Millisecond)
			name = StoredName(file.Path, category, logDate, now)
		}
	} else {
		// Kept source names never replace a file another row points to.
		kept := name
		for n := 1; m.exists(name); n++ {
			name = numberedName(kept, n)
		}
	}
	dest := filepath.Join(m.dir, name)

	if _, err := fsutil.CopyFile(file.Path, dest); err != nil {
		return nil, &types.CopyError{Source: file.Path, Dest: dest, Err: err}
	}
	info, err := os.Stat(dest)
	if err != nil {
		return nil, &types.CopyError{Source: file.Path, Dest: dest, Err: err}
	}

	date, err := types.NormalizeDate(logDate)
	if err != nil {
		date = types.LocalDate(now)
	}

	meta := &Meta{
		TempID:       now.UnixMilli(),
		OriginalName: file.Name,
		StoredName:   name,
		StoredPath:   dest,
		Size:         info.Size(),
		MIMEType:     file.MIMEType,
		Category:     category,
		LogDate:      date,
		CreatedAt:    now,
	}
	if meta.OriginalName == "" {
		meta.OriginalName = name
	}
	if meta.MIMEType == "" {
		meta.MIMEType = DetectMIMEType(name)
	}
	m.logger.Debug("saved attachment", "name", name, "size", meta.Size, "category", category)
	return meta, nil
}

// SaveMany saves each file in order. Failures are logged and skipped.
func (m *Manager) SaveMany(ctx context.Context, files []SourceFile, category, logDate string) []*Meta {
	out := make([]*Meta, 0, len(files))
	for _, f := range files {
		meta, err := m.SaveOne(ctx, f, category, logDate)
		if err != nil {
			m.logger.Warn("skipping attachment", "source", f.Path, "error", err)
			continue
		}
		out = append(out, meta)
	}
	return out
}

// DeleteOne removes a stored file. A missing file is not an error.
func (m *Manager) DeleteOne(path string) error {
	if path == "" {
		return nil
	}
	if err := fsutil.RemoveIfExists(path); err != nil {
		return fmt.Errorf("deleting attachment %s: %w", path, err)
	}
	return nil
}

// ListByDate returns the files whose name carries the date tag of date.
func (m *Manager) ListByDate(date string) ([]*Meta, error) {
	d, err := types.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	tag := types.DateTag(d) + "_"

	all, err := m.scan()
	if err != nil {
		return nil, err
	}
	var out []*Meta
	for _, meta := range all {
		if strings.HasPrefix(meta.StoredName, tag) {
			meta.LogDate = d
			out = append(out, meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoredName < out[j].StoredName })
	return out, nil
}

// ListAll returns every managed file, newest modification first.
func (m *Manager) ListAll() ([]*Meta, error) {
	all, err := m.scan()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

// TotalSize sums the sizes of every managed file.
func (m *Manager) TotalSize() (int64, error) {
	all, err := m.scan()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, meta := range all {
		total += meta.Size
	}
	return total, nil
}

// CleanupBefore deletes generated files whose date tag sorts before date
// and returns how many were removed. Files without a date tag are kept.
func (m *Manager) CleanupBefore(date string) (int, error) {
	d, err := types.NormalizeDate(date)
	if err != nil {
		return 0, err
	}
	cutoff := types.DateTag(d)

	all, err := m.scan()
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, meta := range all {
		if len(meta.StoredName) < 9 || meta.StoredName[8] != '_' || !allDigits(meta.StoredName[:8]) {
			continue
		}
		if meta.StoredName[:8] >= cutoff {
			continue
		}
		if err := m.DeleteOne(meta.StoredPath); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("removed old attachments", "before", d, "count", removed)
	}
	return removed, errors.Join(errs...)
}

// scan reads the managed directory. A missing directory is empty.
func (m *Manager) scan() ([]*Meta, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", m.dir, err)
	}

	out := make([]*Meta, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		name := e.Name()
		out = append(out, &Meta{
			OriginalName: ExtractOriginalName(name),
			StoredName:   name,
			StoredPath:   filepath.Join(m.dir, name),
			Size:         info.Size(),
			MIMEType:     DetectMIMEType(name),
			Category:     ExtractCategory(name),
			CreatedAt:    info.ModTime(),
		})
	}
	return out, nil
}

func (m *Manager) exists(name string) bool {
	_, err := os.Stat(filepath.Join(m.dir, name))
	return err == nil
}

// DetectMIMEType maps a file extension to a MIME type.
func DetectMIMEType(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return types.DefaultMIMEType
}

// FormatSize renders a byte count for display.
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}
