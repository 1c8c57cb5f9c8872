package attachments

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/paizhu/pkg/types"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	m := NewManager(filepath.Join(root, "attachments"), nil)
	clock := time.UnixMilli(1770249600000)
	m.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}
	return m, root
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestSaveOne(t *testing.T) {
	m, root := newTestManager(t)
	src := writeSource(t, root, "ward round.png", "png-bytes")

	meta, err := m.SaveOne(context.Background(), SourceFile{Path: src, Name: "ward round.png"}, types.CategoryDailyLog, "2026-02-05")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(meta.StoredName, "20260205_daily_log_ward_round_"))
	assert.Equal(t, filepath.Join(m.Dir(), meta.StoredName), meta.StoredPath)
	assert.Equal(t, int64(len("png-bytes")), meta.Size)
	assert.Equal(t, "image/png", meta.MIMEType)
	assert.Equal(t, "ward round.png", meta.OriginalName)
	assert.Equal(t, "2026-02-05", meta.LogDate)
	assert.Equal(t, meta.CreatedAt.UnixMilli(), meta.TempID)

	data, err := os.ReadFile(meta.StoredPath)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	ref := meta.Ref()
	assert.Equal(t, meta.StoredName, ref.FileName)
	assert.Equal(t, types.CategoryDailyLog, ref.Category)
}

func TestSaveOneDefaults(t *testing.T) {
	m, root := newTestManager(t)
	src := writeSource(t, root, "blob.zzunknown", "x")

	meta, err := m.SaveOne(context.Background(), SourceFile{Path: src}, types.CategoryGeneral, "")
	require.NoError(t, err)
	assert.Equal(t, "blob.zzunknown", meta.StoredName)
	assert.Equal(t, meta.StoredName, meta.OriginalName)
	assert.Equal(t, types.DefaultMIMEType, meta.MIMEType)
	assert.Equal(t, types.LocalDate(meta.CreatedAt), meta.LogDate)
}

func TestSaveOneMissingSource(t *testing.T) {
	m, root := newTestManager(t)

	_, err := m.SaveOne(context.Background(), SourceFile{Path: filepath.Join(root, "gone.jpg")}, types.CategoryDailyLog, "2026-02-05")
	var cerr *types.CopyError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, filepath.Join(root, "gone.jpg"), cerr.Source)
	assert.True(t, os.IsNotExist(errors.Unwrap(cerr)))
}

func TestSaveOneSameBaseName(t *testing.T) {
	m, root := newTestManager(t)
	fixed := time.UnixMilli(1770249600000)
	m.now = func() time.Time { return fixed }

	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	require.NoError(t, os.MkdirAll(a, 0o755))
	require.NoError(t, os.MkdirAll(b, 0o755))
	srcA := writeSource(t, a, "photo.jpg", "first")
	srcB := writeSource(t, b, "photo.jpg", "second")

	got := m.SaveMany(context.Background(), []SourceFile{{Path: srcA}, {Path: srcB}}, types.CategoryWeeklyTalk, "2026-02-05")
	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].StoredName, got[1].StoredName)

	data, err := os.ReadFile(got[0].StoredPath)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestSaveManySkipsFailures(t *testing.T) {
	m, root := newTestManager(t)
	ok1 := writeSource(t, root, "one.jpg", "1")
	ok2 := writeSource(t, root, "two.jpg", "2")

	files := []SourceFile{{Path: ok1}, {Path: filepath.Join(root, "missing.jpg")}, {Path: ok2}}
	got := m.SaveMany(context.Background(), files, types.CategoryDailyLog, "2026-02-05")
	require.Len(t, got, 2)
	assert.Equal(t, "one.jpg", ExtractOriginalName(got[0].StoredName))
	assert.Equal(t, "two.jpg", ExtractOriginalName(got[1].StoredName))
}

// Three injury photos for one day land under one date tag and are found
// again by date.
func TestListByDateWeeklyInjury(t *testing.T) {
	m, root := newTestManager(t)
	var files []SourceFile
	for _, n := range []string{"left arm.jpg", "right arm.jpg", "face.jpg"} {
		files = append(files, SourceFile{Path: writeSource(t, root, n, n)})
	}

	saved := m.SaveMany(context.Background(), files, types.CategoryWeeklyInjury, "2026-02-05")
	require.Len(t, saved, 3)
	for _, meta := range saved {
		assert.True(t, strings.HasPrefix(meta.StoredName, "20260205_weekly_injury_"), meta.StoredName)
	}

	other := writeSource(t, root, "other.jpg", "x")
	_, err := m.SaveOne(context.Background(), SourceFile{Path: other}, types.CategoryWeeklyInjury, "2026-02-06")
	require.NoError(t, err)

	listed, err := m.ListByDate("2026-02-05")
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for _, meta := range listed {
		assert.Equal(t, types.CategoryWeeklyInjury, meta.Category)
		assert.Equal(t, "2026-02-05", meta.LogDate)
	}
	names := []string{listed[0].OriginalName, listed[1].OriginalName, listed[2].OriginalName}
	assert.ElementsMatch(t, []string{"left_arm.jpg", "right_arm.jpg", "face.jpg"}, names)
}

func TestListAllAndTotalSize(t *testing.T) {
	m, root := newTestManager(t)

	all, err := m.ListAll()
	require.NoError(t, err)
	assert.Empty(t, all)

	older, err := m.SaveOne(context.Background(), SourceFile{Path: writeSource(t, root, "a.jpg", "aaaa")}, types.CategoryDailyLog, "2026-02-05")
	require.NoError(t, err)
	newer, err := m.SaveOne(context.Background(), SourceFile{Path: writeSource(t, root, "b.jpg", "bb")}, types.CategoryDailyLog, "2026-02-05")
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older.StoredPath, past, past))

	all, err = m.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.StoredName, all[0].StoredName)
	assert.Equal(t, older.StoredName, all[1].StoredName)

	total, err := m.TotalSize()
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
}

func TestDeleteOne(t *testing.T) {
	m, root := newTestManager(t)
	meta, err := m.SaveOne(context.Background(), SourceFile{Path: writeSource(t, root, "a.jpg", "a")}, types.CategoryDailyLog, "2026-02-05")
	require.NoError(t, err)

	require.NoError(t, m.DeleteOne(meta.StoredPath))
	_, err = os.Stat(meta.StoredPath)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, m.DeleteOne(meta.StoredPath))
	assert.NoError(t, m.DeleteOne(""))
}

func TestCleanupBefore(t *testing.T) {
	m, root := newTestManager(t)
	ctx := context.Background()
	for _, date := range []string{"2026-01-30", "2026-02-04", "2026-02-05", "2026-02-06"} {
		_, err := m.SaveOne(ctx, SourceFile{Path: writeSource(t, root, "p.jpg", date)}, types.CategoryDailyLog, date)
		require.NoError(t, err)
	}
	_, err := m.SaveOne(ctx, SourceFile{Path: writeSource(t, root, "notes.txt", "n")}, types.CategoryGeneral, "2026-01-01")
	require.NoError(t, err)

	removed, err := m.CleanupBefore("2026-02-05")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	all, err := m.ListAll()
	require.NoError(t, err)
	var names []string
	for _, meta := range all {
		names = append(names, meta.StoredName[:8])
	}
	assert.ElementsMatch(t, []string{"20260205", "20260206", "notes.tx"}, names)

	_, err = m.CleanupBefore("soon")
	assert.ErrorIs(t, err, types.ErrInvalidData)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KiB", FormatSize(1536))
	assert.Equal(t, "2.0 MiB", FormatSize(2*1024*1024))
}

func TestSaveOneKeptNameNeverOverwrites(t *testing.T) {
	m, root := newTestManager(t)
	ctx := context.Background()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	require.NoError(t, os.MkdirAll(a, 0o755))
	require.NoError(t, os.MkdirAll(b, 0o755))

	first, err := m.SaveOne(ctx, SourceFile{Path: writeSource(t, a, "scan.pdf", "one")}, types.CategoryWeeklyMailbox, "2026-02-05")
	require.NoError(t, err)
	second, err := m.SaveOne(ctx, SourceFile{Path: writeSource(t, b, "scan.pdf", "two")}, types.CategoryWeeklyMailbox, "2026-02-05")
	require.NoError(t, err)
	third, err := m.SaveOne(ctx, SourceFile{Path: writeSource(t, b, "README", "three")}, types.CategoryGeneral, "")
	require.NoError(t, err)
	fourth, err := m.SaveOne(ctx, SourceFile{Path: filepath.Join(b, "README")}, types.CategoryGeneral, "")
	require.NoError(t, err)

	assert.Equal(t, "scan.pdf", first.StoredName)
	assert.Equal(t, "scan_1.pdf", second.StoredName)
	assert.Equal(t, "README", third.StoredName)
	assert.Equal(t, "README_1", fourth.StoredName)

	data, err := os.ReadFile(first.StoredPath)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}
