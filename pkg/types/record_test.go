package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"daily_logs", KindDaily},
		{"daily", KindDaily},
		{"Weekly", KindWeekly},
		{"monthly_records", KindMonthly},
		{"immediate", KindImmediate},
		{"events", KindImmediate},
		{"attachment", KindAttachment},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseKind("settings")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestKindLogTypeRoundTrip(t *testing.T) {
	for _, k := range LogKinds {
		lt := k.LogType()
		assert.True(t, lt.Valid(), k)
		assert.Equal(t, k, lt.Kind())
	}
	assert.Equal(t, LogType(""), KindAttachment.LogType())
	assert.False(t, LogType("yearly").Valid())
}

func TestStamp(t *testing.T) {
	now := time.Date(2026, 2, 5, 8, 0, 0, 0, time.UTC)

	d := &DailyLog{LogDate: "2026-02-05"}
	d.SyncStatus = SyncExported
	Stamp(d, 3, 9, now)

	assert.Equal(t, int64(3), d.ID)
	assert.Equal(t, int64(9), d.UserID)
	assert.Equal(t, SyncPending, d.SyncStatus)
	assert.Equal(t, CurrentSchemaVersion, d.SchemaVersion)
	assert.Equal(t, now, d.CreatedAt)
	assert.Equal(t, d.CreatedAt, d.UpdatedAt)

	keep := &DailyLog{LogDate: "2026-02-05"}
	keep.UserID = 4
	Stamp(keep, 1, 9, now)
	assert.Equal(t, int64(4), keep.UserID)
}

func TestDecodeRecordUpgradesLegacyRows(t *testing.T) {
	rec, err := DecodeRecord(KindDaily, []byte(`{"id":2,"log_date":"2026-02-05","legacy_field":true}`))
	require.NoError(t, err)

	d := rec.(*DailyLog)
	assert.Equal(t, int64(2), d.ID)
	assert.Equal(t, SyncPending, d.SyncStatus)
	assert.Equal(t, CurrentSchemaVersion, d.SchemaVersion)
}

func TestDecodeInputRejectsUnknownFields(t *testing.T) {
	_, err := DecodeInput(KindWeekly, []byte(`{"record_date":"2026-02-05","bogus":1}`))
	assert.ErrorIs(t, err, ErrInvalidData)

	rec, err := DecodeInput(KindWeekly, []byte(`{"record_date":"2026-02-05"}`))
	require.NoError(t, err)
	assert.Equal(t, KindWeekly, rec.Kind())
}

func TestCheckKind(t *testing.T) {
	assert.NoError(t, CheckKind(&MonthlyRecord{}, KindMonthly))
	assert.ErrorIs(t, CheckKind(&MonthlyRecord{}, KindDaily), ErrInvalidData)
	assert.ErrorIs(t, CheckKind(nil, KindDaily), ErrInvalidData)
}

func TestNormalizeRecords(t *testing.T) {
	t.Run("daily requires a date and fills empty lists", func(t *testing.T) {
		assert.ErrorIs(t, (&DailyLog{}).Normalize(), ErrInvalidData)

		d := &DailyLog{LogDate: "2026/02/05"}
		d.MonitorCheck.Anomalies = []MonitorAnomaly{{Location: "A"}}
		require.NoError(t, d.Normalize())
		assert.Equal(t, "2026-02-05", d.LogDate)
		assert.NotNil(t, d.Attachments)
		assert.NotNil(t, d.ThreeScenes.Labor.Locations)
		assert.NotNil(t, d.MonitorCheck.Anomalies[0].Attachments)
	})

	t.Run("weekly derives week number", func(t *testing.T) {
		w := &WeeklyRecord{RecordDate: "2026-02-15"}
		require.NoError(t, w.Normalize())
		assert.Equal(t, 3, w.WeekNumber)

		bad := &WeeklyRecord{RecordDate: "2026-02-15", WeekNumber: 9}
		assert.ErrorIs(t, bad.Normalize(), ErrInvalidData)

		talk := &WeeklyRecord{RecordDate: "2026-02-15", TalkRecords: []TalkRecord{{Type: "gossip"}}}
		assert.ErrorIs(t, talk.Normalize(), ErrInvalidData)
	})

	t.Run("monthly keeps the month only", func(t *testing.T) {
		m := &MonthlyRecord{RecordMonth: "2026-02-17"}
		require.NoError(t, m.Normalize())
		assert.Equal(t, "2026-02", m.RecordMonth)
		assert.Equal(t, "2026-02", m.DateKey())
	})

	t.Run("immediate validates enumerations", func(t *testing.T) {
		e := &ImmediateEvent{EventDate: "2026-02-05", EventType: EventEscape}
		require.NoError(t, e.Normalize())
		assert.Equal(t, EventPending, e.Status)

		assert.ErrorIs(t, (&ImmediateEvent{EventDate: "2026-02-05", EventType: "flood"}).Normalize(), ErrInvalidData)
		assert.ErrorIs(t, (&ImmediateEvent{EventDate: "2026-02-05", EventType: EventDeath, Status: "open"}).Normalize(), ErrInvalidData)
		parole := &ImmediateEvent{
			EventDate:  "2026-02-05",
			EventType:  EventParoleRequest,
			ParoleData: &ParoleData{Batch: "2026-1", Count: 12, Stage: "granted"},
		}
		assert.ErrorIs(t, parole.Normalize(), ErrInvalidData)
	})

	t.Run("attachment back reference is both or neither", func(t *testing.T) {
		a := &Attachment{Category: CategoryDailyLog, FileName: "x.jpg", LogDate: "20260205"}
		require.NoError(t, a.Normalize())
		assert.Equal(t, "2026-02-05", a.LogDate)
		assert.Equal(t, "2026-02", a.UploadMonth)
		assert.Equal(t, DefaultMIMEType, a.MIMEType)

		half := &Attachment{Category: CategoryDailyLog, FileName: "x.jpg", RelatedLogType: LogDaily}
		assert.ErrorIs(t, half.Normalize(), ErrInvalidData)

		full := &Attachment{Category: CategoryDailyLog, FileName: "x.jpg"}
		full.SetRelated(LogWeekly, 5)
		require.NoError(t, full.Normalize())

		wrong := &Attachment{Category: CategoryDailyLog, FileName: "x.jpg"}
		wrong.SetRelated(LogType("yearly"), 5)
		assert.ErrorIs(t, wrong.Normalize(), ErrInvalidData)
	})
}

func TestAttachmentSlots(t *testing.T) {
	w := &WeeklyRecord{TalkRecords: []TalkRecord{{Type: TalkRelease}, {Type: TalkInjury}}}
	slot, ok := FindSlot(w, "talk:1")
	require.True(t, ok)
	assert.Equal(t, CategoryWeeklyTalk, slot.Category)

	*slot.Refs = append(*slot.Refs, AttachmentRef{FileName: "a.jpg"})
	assert.Len(t, w.TalkRecords[1].Attachments, 1)
	assert.Len(t, AllRefs(w), 1)

	_, ok = FindSlot(w, "talk:2")
	assert.False(t, ok)

	e := &ImmediateEvent{}
	slot, ok = FindSlot(e, "attachments")
	require.True(t, ok)
	assert.Nil(t, slot.Refs)
	require.NotNil(t, slot.IDs)
}
