package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/paizhu/pkg/store"
	"github.com/mesh-intelligence/paizhu/pkg/types"
)

var exportClock = time.Date(2026, 2, 5, 8, 30, 0, 123_000_000, time.UTC)

type fixture struct {
	store    types.Store
	engine   *Engine
	dataDir  string
	cacheDir string
	outDir   string
}

func newFixture(t *testing.T, backend string) *fixture {
	t.Helper()
	root := t.TempDir()
	s, err := store.New(backend, nil)
	require.NoError(t, err)
	require.NoError(t, s.Attach(types.Config{Backend: backend, DataDir: filepath.Join(root, "data")}))
	t.Cleanup(func() { _ = s.Detach() })

	f := &fixture{
		store:    s,
		dataDir:  filepath.Join(root, "data"),
		cacheDir: filepath.Join(root, "cache"),
		outDir:   filepath.Join(root, "exports"),
	}
	f.engine = NewEngine(s, f.cacheDir, DirHandoff{Dir: f.outDir}, nil)
	f.engine.Now = func() time.Time { return exportClock }
	return f
}

func (f *fixture) create(t *testing.T, rec types.Record) int64 {
	t.Helper()
	tbl, err := f.store.GetTable(rec.Kind())
	require.NoError(t, err)
	id, err := tbl.Create(context.Background(), rec)
	require.NoError(t, err)
	return id
}

// attachment creates an attachment row, and its file when content is not
// nil.
func (f *fixture) attachment(t *testing.T, name string, content []byte) int64 {
	t.Helper()
	p := filepath.Join(f.dataDir, "attachments", name)
	if content != nil {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, content, 0o644))
	}
	return f.create(t, &types.Attachment{
		Category: types.CategoryDailyLog,
		FileName: name,
		FilePath: p,
		FileSize: int64(len(content)),
		LogDate:  "2026-02-05",
	})
}

type archive struct {
	names    []string
	payload  map[string]any
	manifest map[string]any
	files    map[string][]byte
	methods  map[string]uint16
}

func readArchive(t *testing.T, path string) *archive {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	a := &archive{files: map[string][]byte{}, methods: map[string]uint16{}}
	for _, f := range zr.File {
		a.names = append(a.names, f.Name)
		a.methods[f.Name] = f.Method
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		a.files[f.Name] = data
	}
	sort.Strings(a.names)
	require.NoError(t, json.Unmarshal(a.files[DataEntry], &a.payload))
	require.NoError(t, json.Unmarshal(a.files[ManifestEntry], &a.manifest))
	return a
}

func backends() []string {
	return []string{types.BackendSQLite, types.BackendJSONL}
}

func TestArchiveName(t *testing.T) {
	assert.Equal(t, "sync_2026-02-05T08-30-00.zip", ArchiveName("2026-02-05T08:30:00.123Z"))
	assert.Equal(t, "sync_short.zip", ArchiveName("short"))
}

func TestExportNothingPending(t *testing.T) {
	for _, backend := range backends() {
		t.Run(backend, func(t *testing.T) {
			f := newFixture(t, backend)

			_, err := f.engine.Export(context.Background())
			assert.ErrorIs(t, err, ErrNothingToExport)

			_, err = os.Stat(f.cacheDir)
			assert.True(t, os.IsNotExist(err))
		})
	}
}

// Two daily logs and one attachment with its file go out together and
// nothing is pending afterwards.
func TestExportDailyLogsWithAttachment(t *testing.T) {
	for _, backend := range backends() {
		t.Run(backend, func(t *testing.T) {
			f := newFixture(t, backend)
			ctx := context.Background()
			f.create(t, &types.DailyLog{LogDate: "2026-02-04", PrisonName: "一监"})
			f.create(t, &types.DailyLog{LogDate: "2026-02-05", PrisonName: "一监"})
			f.attachment(t, "20260205_daily_log_scan_1770249600000.jpg", []byte("jpeg"))
			require.NoError(t, f.store.SaveSetting(ctx, types.SettingPrisonName, "第一监狱"))

			var progress []float64
			f.engine.Progress = func(v float64) { progress = append(progress, v) }

			res, err := f.engine.Export(ctx)
			require.NoError(t, err)

			assert.Equal(t, Stats{Daily: 2, Attachments: 1}, res.Stats)
			assert.Equal(t, 1, res.AttachmentsCopied)
			assert.Equal(t, "sync_2026-02-05T08-30-00.zip", res.FileName)
			assert.Equal(t, "2026-02-05T08:30:00.123Z", res.ExportTime)
			assert.Equal(t, filepath.Join(f.cacheDir, res.FileName), res.ArchivePath)
			assert.Equal(t, filepath.Join(f.outDir, res.FileName), res.DeliveredPath)

			a := readArchive(t, res.DeliveredPath)
			assert.Equal(t, []string{
				"attachments/",
				"attachments/20260205_daily_log_scan_1770249600000.jpg",
				DataEntry,
				ManifestEntry,
			}, a.names)
			assert.Equal(t, "jpeg", string(a.files["attachments/20260205_daily_log_scan_1770249600000.jpg"]))
			assert.Equal(t, zip.Deflate, a.methods[DataEntry])

			assert.Equal(t, res.ExportID, a.payload["exportId"])
			assert.Equal(t, "第一监狱", a.payload["prisonName"])
			assert.Equal(t, Unset, a.payload["inspectorName"])
			assert.Equal(t, FormatVersion, a.payload["version"])
			tables := a.payload["tables"].(map[string]any)
			assert.Len(t, tables["daily_logs"], 2)
			assert.Len(t, tables["weekly_records"], 0)
			assert.Len(t, tables["attachments"], 1)
			stats := a.payload["stats"].(map[string]any)
			assert.EqualValues(t, 2, stats["daily"])
			assert.EqualValues(t, 1, stats["attachments"])

			assert.Equal(t, res.ExportID, a.manifest["exportId"])
			assert.NotEmpty(t, a.manifest["platform"])
			assert.Contains(t, string(a.files[ManifestEntry]), "\n  \"version\": \"1.0\"")

			count, err := f.store.PendingSyncCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, count.Total)

			require.NotEmpty(t, progress)
			assert.Equal(t, 0.0, progress[0])
			assert.Equal(t, 1.0, progress[len(progress)-1])
			assert.True(t, sort.Float64sAreSorted(progress))
			assert.Contains(t, progress, 0.95)

			_, err = f.engine.Export(ctx)
			assert.ErrorIs(t, err, ErrNothingToExport)
		})
	}
}

// A row whose file was deleted is still exported; only the file is left
// out.
func TestExportMissingAttachmentFile(t *testing.T) {
	for _, backend := range backends() {
		t.Run(backend, func(t *testing.T) {
			f := newFixture(t, backend)
			ctx := context.Background()
			f.create(t, &types.DailyLog{LogDate: "2026-02-05"})
			f.attachment(t, "present.jpg", []byte("ok"))
			f.attachment(t, "gone.jpg", nil)

			res, err := f.engine.Export(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, res.Stats.Attachments)
			assert.Equal(t, res.Stats.Attachments-1, res.AttachmentsCopied)

			a := readArchive(t, res.ArchivePath)
			assert.Contains(t, a.files, "attachments/present.jpg")
			assert.NotContains(t, a.names, "attachments/gone.jpg")

			rows := a.payload["tables"].(map[string]any)["attachments"].([]any)
			require.Len(t, rows, 2)
			assert.Equal(t, "gone.jpg", rows[1].(map[string]any)["file_name"])

			count, err := f.store.PendingSyncCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, count.Total)
		})
	}
}

type failingHandoff struct{}

func (failingHandoff) Deliver(context.Context, string) (string, error) {
	return "", errors.New("share sheet dismissed")
}

func TestExportHandoffFailureMarksNothing(t *testing.T) {
	f := newFixture(t, types.BackendJSONL)
	ctx := context.Background()
	f.create(t, &types.MonthlyRecord{RecordMonth: "2026-02"})
	f.engine.Handoff = failingHandoff{}

	res, err := f.engine.Export(ctx)
	assert.Nil(t, res)
	var aerr *types.ArchiveError
	require.True(t, errors.As(err, &aerr))

	count, err := f.store.PendingSyncCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count.Monthly)
}

func TestExportWithoutHandoffKeepsArchiveInCache(t *testing.T) {
	f := newFixture(t, types.BackendJSONL)
	f.create(t, &types.ImmediateEvent{EventDate: "2026-02-05", EventType: types.EventEscape, Title: "脱逃"})
	f.engine.Handoff = nil

	res, err := f.engine.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.ArchivePath, res.DeliveredPath)
	assert.Equal(t, Stats{Immediate: 1}, res.Stats)

	a := readArchive(t, res.ArchivePath)
	assert.Equal(t, []string{DataEntry, ManifestEntry}, a.names)
}

func TestExportCanceled(t *testing.T) {
	f := newFixture(t, types.BackendJSONL)
	f.create(t, &types.DailyLog{LogDate: "2026-02-05"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine.Export(ctx)
	require.Error(t, err)

	count, err := f.store.PendingSyncCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count.Daily)
}

func TestDirHandoff(t *testing.T) {
	src := filepath.Join(t.TempDir(), "sync_x.zip")
	require.NoError(t, os.WriteFile(src, []byte("zip"), 0o644))

	out := filepath.Join(t.TempDir(), "nested", "exports")
	got, err := DirHandoff{Dir: out}.Deliver(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "sync_x.zip"), got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "zip", string(data))

	_, err = DirHandoff{}.Deliver(context.Background(), src)
	assert.Error(t, err)
}
