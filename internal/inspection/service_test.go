package inspection

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/paizhu/internal/attachments"
	"github.com/mesh-intelligence/paizhu/pkg/store"
	"github.com/mesh-intelligence/paizhu/pkg/types"
)

type fixture struct {
	svc     *Service
	store   types.Store
	files   *attachments.Manager
	srcDir  string
	backend string
}

func newFixture(t *testing.T, backend string) *fixture {
	t.Helper()
	root := t.TempDir()
	s, err := store.New(backend, nil)
	require.NoError(t, err)
	require.NoError(t, s.Attach(types.Config{Backend: backend, DataDir: filepath.Join(root, "data")}))
	t.Cleanup(func() { _ = s.Detach() })

	files := attachments.NewManager(filepath.Join(root, "data", "attachments"), nil)
	src := filepath.Join(root, "picked")
	require.NoError(t, os.MkdirAll(src, 0o755))
	return &fixture{svc: NewService(s, files, nil), store: s, files: files, srcDir: src, backend: backend}
}

func (f *fixture) source(t *testing.T, name string) attachments.SourceFile {
	t.Helper()
	p := filepath.Join(f.srcDir, name)
	require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
	return attachments.SourceFile{Path: p, Name: name}
}

func (f *fixture) get(t *testing.T, kind types.Kind, id int64) types.Record {
	t.Helper()
	tbl, err := f.store.GetTable(kind)
	require.NoError(t, err)
	rec, err := tbl.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func eachBackend(t *testing.T, fn func(t *testing.T, f *fixture)) {
	for _, backend := range []string{types.BackendSQLite, types.BackendJSONL} {
		t.Run(backend, func(t *testing.T) { fn(t, newFixture(t, backend)) })
	}
}

func TestExistingForDate(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		got, err := f.svc.ExistingForDate(ctx, types.KindDaily, "2026-02-05")
		require.NoError(t, err)
		assert.Nil(t, got)

		id, err := f.svc.Submit(ctx, &types.DailyLog{LogDate: "2026-02-05"}, nil)
		require.NoError(t, err)

		got, err = f.svc.ExistingForDate(ctx, types.KindDaily, "2026/02/05")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, id, got.Head().ID)

		// A second log for the same day is still accepted.
		id2, err := f.svc.Submit(ctx, &types.DailyLog{LogDate: "2026-02-05"}, nil)
		require.NoError(t, err)
		assert.NotEqual(t, id, id2)
	})
}

func TestSubmitDailyWithFiles(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		rec := &types.DailyLog{
			LogDate: "2026-02-05",
			MonitorCheck: types.MonitorCheck{
				Checked:   true,
				Anomalies: []types.MonitorAnomaly{{Location: "三监区", Description: "聚集"}},
			},
		}
		uploads := map[string][]attachments.SourceFile{
			"attachments": {f.source(t, "a.jpg"), f.source(t, "b.jpg")},
			"anomaly:0":   {f.source(t, "c.jpg")},
		}

		id, err := f.svc.Submit(ctx, rec, uploads)
		require.NoError(t, err)

		stored := f.get(t, types.KindDaily, id).(*types.DailyLog)
		require.Len(t, stored.Attachments, 2)
		require.Len(t, stored.MonitorCheck.Anomalies[0].Attachments, 1)
		assert.Equal(t, "三监区", stored.MonitorCheck.Anomalies[0].Location)

		for _, ref := range append(stored.Attachments, stored.MonitorCheck.Anomalies[0].Attachments...) {
			assert.Equal(t, types.CategoryDailyLog, ref.Category)
			_, err := os.Stat(ref.FilePath)
			assert.NoError(t, err)

			row := f.get(t, types.KindAttachment, ref.ID)
			require.NotNil(t, row, "ref id %d is not an attachment row", ref.ID)
			a := row.(*types.Attachment)
			assert.Equal(t, ref.FileName, a.FileName)
			assert.Equal(t, "2026-02-05", a.LogDate)
			assert.Equal(t, types.LogDaily, a.RelatedLogType)
			require.NotNil(t, a.RelatedLogID)
			assert.Equal(t, id, *a.RelatedLogID)
		}

		rows, err := f.store.AttachmentsForLog(ctx, types.LogDaily, id)
		require.NoError(t, err)
		assert.Len(t, rows, 3)

		listed, err := f.files.ListByDate("2026-02-05")
		require.NoError(t, err)
		assert.Len(t, listed, 3)
	})
}

func TestSubmitImmediateStoresIDs(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		rec := &types.ImmediateEvent{EventDate: "2026-02-05", EventType: types.EventSelfHarm, Title: "自伤"}

		id, err := f.svc.Submit(ctx, rec, map[string][]attachments.SourceFile{
			"attachments": {f.source(t, "scene.jpg"), f.source(t, "report.pdf")},
		})
		require.NoError(t, err)

		stored := f.get(t, types.KindImmediate, id).(*types.ImmediateEvent)
		require.Len(t, stored.AttachmentIDs, 2)
		for _, attID := range stored.AttachmentIDs {
			a := f.get(t, types.KindAttachment, attID).(*types.Attachment)
			assert.Equal(t, types.CategoryImmediateEvent, a.Category)
			assert.Equal(t, types.LogImmediate, a.RelatedLogType)
		}
	})
}

func TestSubmitRejectsUnknownSlot(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		_, err := f.svc.Submit(ctx, &types.MonthlyRecord{RecordMonth: "2026-02"}, map[string][]attachments.SourceFile{
			"meeting": {f.source(t, "minutes.jpg")},
		})
		assert.ErrorIs(t, err, types.ErrInvalidData)

		count, err := f.store.PendingSyncCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count.Total)

		all, err := f.files.ListAll()
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestSubmitInvalidRecordRemovesNothing(t *testing.T) {
	f := newFixture(t, types.BackendJSONL)
	_, err := f.svc.Submit(context.Background(), &types.WeeklyRecord{}, map[string][]attachments.SourceFile{
		"injury_check": {f.source(t, "arm.jpg")},
	})
	assert.ErrorIs(t, err, types.ErrInvalidData)

	all, err := f.files.ListAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUpdate(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		id, err := f.svc.Submit(ctx, &types.WeeklyRecord{RecordDate: "2026-02-05", Notes: "first"}, nil)
		require.NoError(t, err)

		require.NoError(t, f.svc.Update(ctx, types.KindWeekly, id, types.Patch{"notes": "second"}))
		assert.Equal(t, "second", f.get(t, types.KindWeekly, id).(*types.WeeklyRecord).Notes)

		err = f.svc.Update(ctx, types.KindWeekly, id+10, types.Patch{"notes": "x"})
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

// Deleting a daily log removes both of its files, its attachment rows and
// the log itself.
func TestDeleteDailyLogWithFiles(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		id, err := f.svc.Submit(ctx, &types.DailyLog{LogDate: "2026-02-05"}, map[string][]attachments.SourceFile{
			"attachments": {f.source(t, "one.jpg"), f.source(t, "two.jpg")},
		})
		require.NoError(t, err)

		stored := f.get(t, types.KindDaily, id).(*types.DailyLog)
		require.Len(t, stored.Attachments, 2)

		require.NoError(t, f.svc.Delete(ctx, types.KindDaily, id))

		for _, ref := range stored.Attachments {
			_, err := os.Stat(ref.FilePath)
			assert.True(t, os.IsNotExist(err), ref.FilePath)
			assert.Nil(t, f.get(t, types.KindAttachment, ref.ID))
		}
		assert.Nil(t, f.get(t, types.KindDaily, id))

		count, err := f.store.PendingSyncCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count.Total)

		err = f.svc.Delete(ctx, types.KindDaily, id)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestDeleteToleratesMissingFiles(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		id, err := f.svc.Submit(ctx, &types.MonthlyRecord{RecordMonth: "2026-02"}, map[string][]attachments.SourceFile{
			"punishment": {f.source(t, "decision.pdf")},
		})
		require.NoError(t, err)

		stored := f.get(t, types.KindMonthly, id).(*types.MonthlyRecord)
		require.Len(t, stored.Punishment.EvidenceFiles, 1)
		require.NoError(t, os.Remove(stored.Punishment.EvidenceFiles[0].FilePath))

		require.NoError(t, f.svc.Delete(ctx, types.KindMonthly, id))
		assert.Nil(t, f.get(t, types.KindMonthly, id))
	})
}

func TestDeleteAttachmentRow(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		meta, err := f.files.SaveOne(ctx, f.source(t, "loose.jpg"), types.CategoryGeneral, "2026-02-05")
		require.NoError(t, err)

		tbl, err := f.store.GetTable(types.KindAttachment)
		require.NoError(t, err)
		attID, err := tbl.Create(ctx, meta.Attachment())
		require.NoError(t, err)

		require.NoError(t, f.svc.Delete(ctx, types.KindAttachment, attID))
		_, err = os.Stat(meta.StoredPath)
		assert.True(t, os.IsNotExist(err))
		assert.Nil(t, f.get(t, types.KindAttachment, attID))
	})
}

// Two records uploading a file with the same kept name each get their own
// copy, and deleting one leaves the other intact.
func TestSameSourceNameInKeptCategory(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		first := filepath.Join(f.srcDir, "week1")
		second := filepath.Join(f.srcDir, "week2")
		require.NoError(t, os.MkdirAll(first, 0o755))
		require.NoError(t, os.MkdirAll(second, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(first, "scan.pdf"), []byte("WEEK-ONE"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(second, "scan.pdf"), []byte("WEEK-TWO"), 0o644))

		idA, err := f.svc.Submit(ctx, &types.WeeklyRecord{RecordDate: "2026-02-05"}, map[string][]attachments.SourceFile{
			"mailbox": {{Path: filepath.Join(first, "scan.pdf"), Name: "scan.pdf"}},
		})
		require.NoError(t, err)
		idB, err := f.svc.Submit(ctx, &types.WeeklyRecord{RecordDate: "2026-02-12"}, map[string][]attachments.SourceFile{
			"mailbox": {{Path: filepath.Join(second, "scan.pdf"), Name: "scan.pdf"}},
		})
		require.NoError(t, err)

		refA := f.get(t, types.KindWeekly, idA).(*types.WeeklyRecord).Mailbox.Attachments
		refB := f.get(t, types.KindWeekly, idB).(*types.WeeklyRecord).Mailbox.Attachments
		require.Len(t, refA, 1)
		require.Len(t, refB, 1)
		assert.NotEqual(t, refA[0].FilePath, refB[0].FilePath)

		require.NoError(t, f.svc.Delete(ctx, types.KindWeekly, idB))

		data, err := os.ReadFile(refA[0].FilePath)
		require.NoError(t, err)
		assert.Equal(t, "WEEK-ONE", string(data))
	})
}

func TestDeleteKeepsFileHeldByAnotherRow(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		id, err := f.svc.Submit(ctx, &types.ImmediateEvent{EventDate: "2026-02-05", EventType: types.EventEscape, Title: "脱逃"},
			map[string][]attachments.SourceFile{"attachments": {f.source(t, "scene.jpg")}})
		require.NoError(t, err)
		ev := f.get(t, types.KindImmediate, id).(*types.ImmediateEvent)
		require.Len(t, ev.AttachmentIDs, 1)
		row := f.get(t, types.KindAttachment, ev.AttachmentIDs[0]).(*types.Attachment)

		tbl, err := f.store.GetTable(types.KindAttachment)
		require.NoError(t, err)
		otherID, err := tbl.Create(ctx, &types.Attachment{
			Category: types.CategoryGeneral,
			FileName: row.FileName,
			FilePath: row.FilePath,
			LogDate:  "2026-02-05",
		})
		require.NoError(t, err)

		require.NoError(t, f.svc.Delete(ctx, types.KindImmediate, id))
		_, err = os.Stat(row.FilePath)
		assert.NoError(t, err, "file is still referenced by attachment %d", otherID)
		assert.Nil(t, f.get(t, types.KindAttachment, row.ID))

		require.NoError(t, f.svc.Delete(ctx, types.KindAttachment, otherID))
		_, err = os.Stat(row.FilePath)
		assert.True(t, os.IsNotExist(err))
	})
}
