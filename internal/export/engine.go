// Package export packages every pending record and its attachment files
// into a sync archive for the server importer, then marks the exported rows.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/paizhu/internal/fsutil"
	"github.com/mesh-intelligence/paizhu/pkg/types"
)

// FormatVersion is written into data.json and manifest.json.
const FormatVersion = "1.0"

// Unset is reported for settings the device was never given.
const Unset = "未设置"

// ExportTimeLayout is ISO-8601 UTC with millisecond precision.
const ExportTimeLayout = "2006-01-02T15:04:05.000Z"

// ErrNothingToExport is returned when no record is pending.
var ErrNothingToExport = errors.New("nothing to export")

// ProgressFunc receives the completed fraction, 0 to 1.
type ProgressFunc func(fraction float64)

// Stats counts the rows per table in an archive.
type Stats struct {
	Daily       int `json:"daily"`
	Weekly      int `json:"weekly"`
	Monthly     int `json:"monthly"`
	Immediate   int `json:"immediate"`
	Attachments int `json:"attachments"`
}

// Total sums every table.
func (s Stats) Total() int {
	return s.Daily + s.Weekly + s.Monthly + s.Immediate + s.Attachments
}

func statsOf(c types.SyncCount) Stats {
	return Stats{
		Daily:       c.Daily,
		Weekly:      c.Weekly,
		Monthly:     c.Monthly,
		Immediate:   c.Immediate,
		Attachments: c.Attachments,
	}
}

// Payload is the content of data.json.
type Payload struct {
	ExportID      string             `json:"exportId"`
	ExportTime    string             `json:"exportTime"`
	PrisonName    string             `json:"prisonName"`
	InspectorName string             `json:"inspectorName"`
	Version       string             `json:"version"`
	Tables        *types.PendingData `json:"tables"`
	Stats         Stats              `json:"stats"`
}

// Manifest is the content of manifest.json.
type Manifest struct {
	Version       string `json:"version"`
	ExportID      string `json:"exportId"`
	ExportTime    string `json:"exportTime"`
	PrisonName    string `json:"prisonName"`
	InspectorName string `json:"inspectorName"`
	Stats         Stats  `json:"stats"`
	Platform      string `json:"platform"`
}

// Result describes one finished export.
type Result struct {
	FileName          string `json:"fileName"`
	ArchivePath       string `json:"archivePath"`
	DeliveredPath     string `json:"deliveredPath"`
	ExportID          string `json:"exportId"`
	ExportTime        string `json:"exportTime"`
	Stats             Stats  `json:"stats"`
	AttachmentsCopied int    `json:"attachmentsCopied"`
}

// Engine produces sync archives from a store.
type Engine struct {
	Store    types.Store
	Logger   *slog.Logger
	CacheDir string
	// Handoff delivers the archive. When nil the archive stays in CacheDir.
	Handoff  Handoff
	Now      func() time.Time
	Progress ProgressFunc
}

// NewEngine returns an engine writing archives into cacheDir.
func NewEngine(store types.Store, cacheDir string, handoff Handoff, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Store:    store,
		Logger:   logger.With("component", "export"),
		CacheDir: cacheDir,
		Handoff:  handoff,
		Now:      time.Now,
	}
}

// ArchiveName returns the archive file name for an export time.
func ArchiveName(exportTime string) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(exportTime)
	if len(ts) > 19 {
		ts = ts[:19]
	}
	return "sync_" + ts + ".zip"
}

func (e *Engine) progress(f float64) {
	if e.Progress != nil {
		e.Progress(f)
	}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Export writes every pending row into a new archive, hands it off and
// marks the rows exported. Nothing is marked unless the archive was
// delivered. A marking failure is returned together with the result since
// the archive is already out; the unmarked rows go out again next time.
func (e *Engine) Export(ctx context.Context) (*Result, error) {
	log := e.logger()
	e.progress(0)

	data, err := e.Store.PendingSyncData(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading pending data: %w", err)
	}
	data.Normalize()
	counts := data.Count()
	if counts.Total == 0 {
		return nil, ErrNothingToExport
	}
	prison, err := e.setting(ctx, types.SettingPrisonName)
	if err != nil {
		return nil, err
	}
	inspector, err := e.setting(ctx, types.SettingInspectorName)
	if err != nil {
		return nil, err
	}
	e.progress(0.1)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, &types.ArchiveError{Op: "generate export id", Err: err}
	}
	exportTime := e.now().UTC().Format(ExportTimeLayout)
	stats := statsOf(counts)
	payload := &Payload{
		ExportID:      id.String(),
		ExportTime:    exportTime,
		PrisonName:    prison,
		InspectorName: inspector,
		Version:       FormatVersion,
		Tables:        data,
		Stats:         stats,
	}
	manifest := &Manifest{
		Version:       FormatVersion,
		ExportID:      payload.ExportID,
		ExportTime:    exportTime,
		PrisonName:    prison,
		InspectorName: inspector,
		Stats:         stats,
		Platform:      runtime.GOOS,
	}
	e.progress(0.2)

	if err := os.MkdirAll(e.CacheDir, 0o755); err != nil {
		return nil, &types.ArchiveError{Op: "create cache dir", Err: err}
	}
	res := &Result{
		FileName:   ArchiveName(exportTime),
		ExportID:   payload.ExportID,
		ExportTime: exportTime,
		Stats:      stats,
	}
	res.ArchivePath = filepath.Join(e.CacheDir, res.FileName)

	err = fsutil.WriteAtomic(res.ArchivePath, 0o644, func(w io.Writer) error {
		aw := newArchiveWriter(w)
		if err := aw.writeJSON(DataEntry, payload); err != nil {
			return fmt.Errorf("writing %s: %w", DataEntry, err)
		}
		if err := aw.writeJSON(ManifestEntry, manifest); err != nil {
			return fmt.Errorf("writing %s: %w", ManifestEntry, err)
		}
		e.progress(0.3)

		copied, err := e.addAttachments(ctx, aw, data.Attachments)
		if err != nil {
			return err
		}
		res.AttachmentsCopied = copied

		e.progress(0.95)
		return aw.Close()
	})
	if err != nil {
		return nil, &types.ArchiveError{Op: "write " + res.FileName, Err: err}
	}

	res.DeliveredPath = res.ArchivePath
	if e.Handoff != nil {
		delivered, err := e.Handoff.Deliver(ctx, res.ArchivePath)
		if err != nil {
			return nil, &types.ArchiveError{Op: "hand off " + res.FileName, Err: err}
		}
		res.DeliveredPath = delivered
	}
	log.Info("archive written",
		"file", res.FileName,
		"delivered", res.DeliveredPath,
		"rows", counts.Total,
		"files", res.AttachmentsCopied)

	if err := e.markExported(ctx, data); err != nil {
		return res, err
	}
	e.progress(1)
	return res, nil
}

// addAttachments copies the file of every pending attachment row into the
// archive. Rows whose file is gone are skipped and not counted.
func (e *Engine) addAttachments(ctx context.Context, aw *archiveWriter, rows []*types.Attachment) (int, error) {
	e.progress(0.5)
	if len(rows) == 0 {
		e.progress(0.8)
		return 0, nil
	}
	if err := aw.dir(AttachmentsEntry); err != nil {
		return 0, fmt.Errorf("writing %s: %w", AttachmentsEntry, err)
	}

	log := e.logger()
	copied := 0
	for i, a := range rows {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		if ok, err := e.addAttachment(aw, a); err != nil {
			return copied, err
		} else if ok {
			copied++
		} else {
			log.Warn("attachment file not exported", "id", a.ID, "file", a.FileName)
		}
		e.progress(0.5 + 0.3*float64(i+1)/float64(len(rows)))
	}
	return copied, nil
}

func (e *Engine) addAttachment(aw *archiveWriter, a *types.Attachment) (bool, error) {
	if a.FilePath == "" || a.FileName == "" {
		return false, nil
	}
	entry := AttachmentsEntry + a.FileName
	if aw.has(entry) {
		return false, nil
	}
	f, err := os.Open(a.FilePath)
	if err != nil {
		return false, nil
	}
	defer f.Close()
	if info, err := f.Stat(); err != nil || info.IsDir() {
		return false, nil
	}
	if err := aw.addFile(a.FileName, f); err != nil {
		return false, fmt.Errorf("adding %s: %w", a.FileName, err)
	}
	return true, nil
}

func (e *Engine) markExported(ctx context.Context, data *types.PendingData) error {
	for _, kind := range types.Kinds {
		ids := data.IDs(kind)
		if len(ids) == 0 {
			continue
		}
		if err := e.Store.MarkAsExported(ctx, kind, ids); err != nil {
			return fmt.Errorf("marking %s exported: %w", kind, err)
		}
	}
	return nil
}

func (e *Engine) setting(ctx context.Context, key string) (string, error) {
	v, ok, err := e.Store.GetSetting(ctx, key)
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	if !ok || strings.TrimSpace(v) == "" {
		return Unset, nil
	}
	return v, nil
}
