// Package storetest holds the behavioral suite every types.Store backend
// must pass. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/paizhu/pkg/types"
)

// Factory returns a fresh, unattached store. Run attaches it to a temp dir.
type Factory func() types.Store

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, backend string, newStore Factory) {
	open := func(t *testing.T) (types.Store, string) {
		t.Helper()
		dir := t.TempDir()
		s := newStore()
		require.NoError(t, s.Attach(types.Config{Backend: backend, DataDir: dir}))
		t.Cleanup(func() { _ = s.Detach() })
		return s, dir
	}
	ctx := context.Background()

	t.Run("lifecycle", func(t *testing.T) {
		s := newStore()
		_, err := s.GetTable(types.KindDaily)
		assert.ErrorIs(t, err, types.ErrStoreDetached)

		dir := t.TempDir()
		cfg := types.Config{Backend: backend, DataDir: dir}
		require.NoError(t, s.Attach(cfg))
		assert.ErrorIs(t, s.Attach(cfg), types.ErrAlreadyAttached)
		assert.Equal(t, backend, s.Backend())

		_, err = s.GetTable(types.Kind("settings"))
		assert.ErrorIs(t, err, types.ErrTableNotFound)

		require.NoError(t, s.Detach())
		require.NoError(t, s.Detach())
		_, err = s.PendingSyncCount(ctx)
		assert.ErrorIs(t, err, types.ErrStoreDetached)
	})

	t.Run("create then get is pending with equal timestamps", func(t *testing.T) {
		s, _ := open(t)
		tbl := table(t, s, types.KindDaily)

		id, err := tbl.Create(ctx, daily("2026-02-05"))
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)

		got, err := tbl.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		h := got.Head()
		assert.Equal(t, types.SyncPending, h.SyncStatus)
		assert.True(t, h.CreatedAt.Equal(h.UpdatedAt))
		assert.Equal(t, types.CurrentSchemaVersion, h.SchemaVersion)
		assert.Equal(t, types.DefaultUserID, h.UserID)
		assert.Equal(t, "Prison A", got.(*types.DailyLog).PrisonName)
	})

	t.Run("ids are max plus one", func(t *testing.T) {
		s, _ := open(t)
		tbl := table(t, s, types.KindWeekly)

		for i := 1; i <= 3; i++ {
			id, err := tbl.Create(ctx, &types.WeeklyRecord{RecordDate: "2026-02-05"})
			require.NoError(t, err)
			assert.Equal(t, int64(i), id)
		}
		require.NoError(t, tbl.Delete(ctx, 2))
		id, err := tbl.Create(ctx, &types.WeeklyRecord{RecordDate: "2026-02-06"})
		require.NoError(t, err)
		assert.Equal(t, int64(4), id)

		require.NoError(t, tbl.Delete(ctx, 4))
		id, err = tbl.Create(ctx, &types.WeeklyRecord{RecordDate: "2026-02-07"})
		require.NoError(t, err)
		assert.Equal(t, int64(4), id, "deleting the max id frees it")
	})

	t.Run("absent ids", func(t *testing.T) {
		s, _ := open(t)
		tbl := table(t, s, types.KindMonthly)

		_, err := tbl.Create(ctx, &types.MonthlyRecord{RecordMonth: "2026-02"})
		require.NoError(t, err)

		for _, id := range []int64{42, 0, -1} {
			got, err := tbl.Get(ctx, id)
			require.NoError(t, err, "id %d", id)
			assert.Nil(t, got, "id %d", id)

			assert.ErrorIs(t, tbl.Update(ctx, id, types.Patch{"notes": "x"}), types.ErrNotFound, "id %d", id)
			assert.ErrorIs(t, tbl.Delete(ctx, id), types.ErrNotFound, "id %d", id)
		}
	})

	t.Run("create rejects wrong kind and invalid data", func(t *testing.T) {
		s, _ := open(t)
		tbl := table(t, s, types.KindDaily)

		_, err := tbl.Create(ctx, &types.MonthlyRecord{RecordMonth: "2026-02"})
		assert.ErrorIs(t, err, types.ErrInvalidData)

		_, err = tbl.Create(ctx, &types.DailyLog{})
		assert.ErrorIs(t, err, types.ErrInvalidData)

		page, err := tbl.List(ctx, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, page)
	})

	t.Run("same date records coexist and get by date finds the first", func(t *testing.T) {
		s, _ := open(t)
		tbl := table(t, s, types.KindDaily)

		first, err := tbl.Create(ctx, daily("2026-02-05"))
		require.NoError(t, err)
		second, err := tbl.Create(ctx, daily("2026/02/05"))
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		got, err := tbl.GetByDate(ctx, "20260205")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first, got.Head().ID)

		none, err := tbl.GetByDate(ctx, "2026-02-06")
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("monthly get by date matches the month", func(t *testing.T) {
		s, _ := open(t)
		tbl := table(t, s, types.KindMonthly)

		id, err := tbl.Create(ctx, &types.MonthlyRecord{RecordMonth: "2026-02"})
		require.NoError(t, err)

		got, err := tbl.GetByDate(ctx, "2026-02-17")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, id, got.Head().ID)
	})

	t.Run("list is newest first with paging", func(t *testing.T) {
		s, _ := open(t)
		tbl := table(t, s, types.KindImmediate)

		for _, d := range []string{"2026-02-01", "2026-01-15", "2026-02-10"} {
			_, err := tbl.Create(ctx, &types.ImmediateEvent{EventDate: d, EventType: types.EventEscape})
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
		}

		page, err := tbl.List(ctx, 2, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, int64(3), page[0].Head().ID)
		assert.Equal(t, int64(2), page[1].Head().ID)

		rest, err := tbl.List(ctx, 2, 2)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, int64(1), rest[0].Head().ID)
	})

	t.Run("update merges and refreshes updatedAt", func(t *testing.T) {
		s, _ := open(t)
		tbl := table(t, s, types.KindDaily)

		id, err := tbl.Create(ctx, daily("2026-02-05"))
		require.NoError(t, err)
		before, err := tbl.Get(ctx, id)
		require.NoError(t, err)

		time.Sleep(2 * time.Millisecond)
		require.NoError(t, tbl.Update(ctx, id, types.Patch{
			"strict_control": map[string]any{"newCount": 5},
			"notes":          "follow up",
		}))

		after, err := tbl.Get(ctx, id)
		require.NoError(t, err)
		d := after.(*types.DailyLog)
		assert.Equal(t, 5, d.StrictControl.NewCount)
		assert.Equal(t, 12, d.StrictControl.TotalCount)
		assert.Equal(t, "follow up", d.Notes)
		assert.True(t, d.CreatedAt.Equal(before.Head().CreatedAt))
		assert.True(t, d.UpdatedAt.After(before.Head().UpdatedAt))
		assert.Equal(t, types.SyncPending, d.SyncStatus)

		assert.ErrorIs(t, tbl.Update(ctx, id, types.Patch{"bogus": true}), types.ErrInvalidData)
	})

	t.Run("nested sections round trip", func(t *testing.T) {
		s, _ := open(t)
		tbl := table(t, s, types.KindWeekly)

		in := &types.WeeklyRecord{
			RecordDate: "2026-02-05",
			HospitalCheck: types.HospitalCheck{
				Checked:     true,
				FocusAreas:  types.FocusAreas{Confinement: true},
				Attachments: []types.AttachmentRef{{ID: 9, FileName: "h.jpg", FileSize: 12}},
			},
			TalkRecords: []types.TalkRecord{{Type: types.TalkRelease, PrisonerName: "Zhang"}},
		}
		id, err := tbl.Create(ctx, in)
		require.NoError(t, err)

		got, err := tbl.Get(ctx, id)
		require.NoError(t, err)
		w := got.(*types.WeeklyRecord)
		assert.Equal(t, 1, w.WeekNumber)
		assert.True(t, w.HospitalCheck.FocusAreas.Confinement)
		require.Len(t, w.HospitalCheck.Attachments, 1)
		assert.Equal(t, int64(9), w.HospitalCheck.Attachments[0].ID)
		require.Len(t, w.TalkRecords, 1)
		assert.Equal(t, "Zhang", w.TalkRecords[0].PrisonerName)

		ev := table(t, s, types.KindImmediate)
		eid, err := ev.Create(ctx, &types.ImmediateEvent{
			EventDate:  "2026-02-05",
			EventType:  types.EventParoleRequest,
			ParoleData: &types.ParoleData{Batch: "2026-1", Count: 3, Stage: types.ParoleReview},
		})
		require.NoError(t, err)
		gotEv, err := ev.Get(ctx, eid)
		require.NoError(t, err)
		e := gotEv.(*types.ImmediateEvent)
		require.NotNil(t, e.ParoleData)
		assert.Equal(t, 3, e.ParoleData.Count)
		assert.Equal(t, types.EventPending, e.Status)
	})

	t.Run("pending count equals the sum and mark is idempotent", func(t *testing.T) {
		s, _ := open(t)
		dailies := table(t, s, types.KindDaily)
		atts := table(t, s, types.KindAttachment)

		d1, err := dailies.Create(ctx, daily("2026-02-05"))
		require.NoError(t, err)
		d2, err := dailies.Create(ctx, daily("2026-02-06"))
		require.NoError(t, err)
		att := &types.Attachment{Category: types.CategoryDailyLog, FileName: "a.jpg", LogDate: "2026-02-05"}
		att.SetRelated(types.LogDaily, d1)
		a1, err := atts.Create(ctx, att)
		require.NoError(t, err)

		count, err := s.PendingSyncCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count.Daily)
		assert.Equal(t, 1, count.Attachments)
		assert.Equal(t, count.Daily+count.Weekly+count.Monthly+count.Immediate+count.Attachments, count.Total)

		data, err := s.PendingSyncData(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{d1, d2}, data.IDs(types.KindDaily))
		assert.Equal(t, []int64{a1}, data.IDs(types.KindAttachment))
		assert.NotNil(t, data.WeeklyRecords)

		require.NoError(t, s.MarkAsExported(ctx, types.KindDaily, []int64{d1, d2, 999}))
		require.NoError(t, s.MarkAsExported(ctx, types.KindDaily, []int64{d1, d2}))
		require.NoError(t, s.MarkAsExported(ctx, types.KindAttachment, []int64{a1}))
		require.NoError(t, s.MarkAsExported(ctx, types.KindWeekly, nil))

		got, err := dailies.Get(ctx, d1)
		require.NoError(t, err)
		assert.Equal(t, types.SyncExported, got.Head().SyncStatus)

		count, err = s.PendingSyncCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count.Total)

		// A later edit keeps the exported state unless the patch says otherwise.
		require.NoError(t, dailies.Update(ctx, d1, types.Patch{"notes": "edited"}))
		got, err = dailies.Get(ctx, d1)
		require.NoError(t, err)
		assert.Equal(t, types.SyncExported, got.Head().SyncStatus)
	})

	t.Run("attachments for log", func(t *testing.T) {
		s, _ := open(t)
		atts := table(t, s, types.KindAttachment)

		for i, logID := range []int64{1, 1, 2} {
			a := &types.Attachment{Category: types.CategoryWeeklyInjury, FileName: "f.jpg"}
			a.SetRelated(types.LogWeekly, logID)
			_, err := atts.Create(ctx, a)
			require.NoError(t, err, i)
		}
		orphan := &types.Attachment{Category: types.CategoryGeneral, FileName: "o.pdf"}
		_, err := atts.Create(ctx, orphan)
		require.NoError(t, err)

		got, err := s.AttachmentsForLog(ctx, types.LogWeekly, 1)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, types.LogWeekly, got[0].RelatedLogType)
		require.NotNil(t, got[0].RelatedLogID)
		assert.Equal(t, int64(1), *got[0].RelatedLogID)

		none, err := s.AttachmentsForLog(ctx, types.LogDaily, 1)
		require.NoError(t, err)
		assert.Empty(t, none)

		o, err := atts.Get(ctx, 4)
		require.NoError(t, err)
		assert.Nil(t, o.(*types.Attachment).RelatedLogID)
	})

	t.Run("settings upsert", func(t *testing.T) {
		s, _ := open(t)

		_, ok, err := s.GetSetting(ctx, types.SettingPrisonName)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.SaveSetting(ctx, types.SettingPrisonName, "Prison A"))
		require.NoError(t, s.SaveSetting(ctx, types.SettingPrisonName, "Prison B"))

		v, ok, err := s.GetSetting(ctx, types.SettingPrisonName)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Prison B", v)
	})

	t.Run("data survives reattach", func(t *testing.T) {
		dir := t.TempDir()
		cfg := types.Config{Backend: backend, DataDir: dir, UserID: 3}

		s := newStore()
		require.NoError(t, s.Attach(cfg))
		id, err := table(t, s, types.KindDaily).Create(ctx, daily("2026-02-05"))
		require.NoError(t, err)
		require.NoError(t, s.SaveSetting(ctx, types.SettingInspectorName, "Li"))
		require.NoError(t, s.Detach())

		s2 := newStore()
		require.NoError(t, s2.Attach(cfg))
		defer s2.Detach()

		got, err := table(t, s2, types.KindDaily).Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(3), got.Head().UserID)

		v, ok, err := s2.GetSetting(ctx, types.SettingInspectorName)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Li", v)
	})
}

func table(t *testing.T, s types.Store, kind types.Kind) types.Table {
	t.Helper()
	tbl, err := s.GetTable(kind)
	require.NoError(t, err)
	return tbl
}

func daily(date string) *types.DailyLog {
	return &types.DailyLog{
		LogDate:       date,
		PrisonName:    "Prison A",
		InspectorName: "Inspector Li",
		StrictControl: types.HeadCount{NewCount: 1, TotalCount: 12},
	}
}
