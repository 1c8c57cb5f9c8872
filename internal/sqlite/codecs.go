package sqlite

import (
	"database/sql"

	"github.com/mesh-intelligence/paizhu/pkg/types"
)

var dailyCodec = codec{
	kind:       types.KindDaily,
	dateColumn: "log_date",
	columns: []string{
		"log_date", "prison_name", "inspector_name", "three_scenes", "strict_control",
		"police_equipment", "gang_prisoners", "admission", "monitor_check",
		"supervision_situation", "feedback_situation", "other_work", "notes", "attachments",
	},
	encode: func(rec types.Record, w *colWriter) {
		d := rec.(*types.DailyLog)
		w.plain(d.LogDate)
		w.plain(d.PrisonName)
		w.plain(d.InspectorName)
		w.json(d.ThreeScenes)
		w.json(d.StrictControl)
		w.json(d.PoliceEquipment)
		w.json(d.GangPrisoners)
		w.json(d.Admission)
		w.json(d.MonitorCheck)
		w.plain(d.SupervisionSituation)
		w.plain(d.FeedbackSituation)
		w.plain(d.OtherWork)
		w.plain(d.Notes)
		w.json(d.Attachments)
	},
	decode: func(r *colReader) types.Record {
		d := &types.DailyLog{}
		r.plain(&d.LogDate)
		r.plain(&d.PrisonName)
		r.plain(&d.InspectorName)
		r.json(&d.ThreeScenes)
		r.json(&d.StrictControl)
		r.json(&d.PoliceEquipment)
		r.json(&d.GangPrisoners)
		r.json(&d.Admission)
		r.json(&d.MonitorCheck)
		r.plain(&d.SupervisionSituation)
		r.plain(&d.FeedbackSituation)
		r.plain(&d.OtherWork)
		r.plain(&d.Notes)
		r.json(&d.Attachments)
		return d
	},
}

var weeklyCodec = codec{
	kind:       types.KindWeekly,
	dateColumn: "record_date",
	columns: []string{
		"record_date", "week_number", "hospital_check", "injury_check",
		"talk_records", "mailbox", "contraband", "notes",
	},
	encode: func(rec types.Record, w *colWriter) {
		wr := rec.(*types.WeeklyRecord)
		w.plain(wr.RecordDate)
		w.plain(wr.WeekNumber)
		w.json(wr.HospitalCheck)
		w.json(wr.InjuryCheck)
		w.json(wr.TalkRecords)
		w.json(wr.Mailbox)
		w.json(wr.Contraband)
		w.plain(wr.Notes)
	},
	decode: func(r *colReader) types.Record {
		wr := &types.WeeklyRecord{}
		r.plain(&wr.RecordDate)
		r.plain(&wr.WeekNumber)
		r.json(&wr.HospitalCheck)
		r.json(&wr.InjuryCheck)
		r.json(&wr.TalkRecords)
		r.json(&wr.Mailbox)
		r.json(&wr.Contraband)
		r.plain(&wr.Notes)
		return wr
	},
}

var monthlyCodec = codec{
	kind:       types.KindMonthly,
	dateColumn: "record_month",
	columns: []string{
		"record_month", "visit_check", "meeting", "punishment", "position_stats", "notes",
	},
	encode: func(rec types.Record, w *colWriter) {
		m := rec.(*types.MonthlyRecord)
		w.plain(m.RecordMonth)
		w.json(m.VisitCheck)
		w.json(m.Meeting)
		w.json(m.Punishment)
		w.json(m.PositionStats)
		w.plain(m.Notes)
	},
	decode: func(r *colReader) types.Record {
		m := &types.MonthlyRecord{}
		r.plain(&m.RecordMonth)
		r.json(&m.VisitCheck)
		r.json(&m.Meeting)
		r.json(&m.Punishment)
		r.json(&m.PositionStats)
		r.plain(&m.Notes)
		return m
	},
}

var immediateCodec = codec{
	kind:       types.KindImmediate,
	dateColumn: "event_date",
	columns: []string{
		"event_date", "event_type", "title", "description", "parole_data", "attachment_ids", "status",
	},
	encode: func(rec types.Record, w *colWriter) {
		e := rec.(*types.ImmediateEvent)
		w.plain(e.EventDate)
		w.plain(e.EventType)
		w.plain(e.Title)
		w.plain(e.Description)
		if e.ParoleData == nil {
			w.plain(nil)
		} else {
			w.json(e.ParoleData)
		}
		w.json(e.AttachmentIDs)
		w.plain(e.Status)
	},
	decode: func(r *colReader) types.Record {
		e := &types.ImmediateEvent{}
		r.plain(&e.EventDate)
		r.plain(&e.EventType)
		r.plain(&e.Title)
		r.plain(&e.Description)
		r.json(&e.ParoleData)
		r.json(&e.AttachmentIDs)
		r.plain(&e.Status)
		return e
	},
}

var attachmentCodec = codec{
	kind:       types.KindAttachment,
	dateColumn: "log_date",
	columns: []string{
		"category", "original_name", "file_name", "file_path", "file_size", "mime_type",
		"parsed_data", "upload_month", "log_date", "related_log_id", "related_log_type",
	},
	encode: func(rec types.Record, w *colWriter) {
		a := rec.(*types.Attachment)
		w.plain(a.Category)
		w.plain(a.OriginalName)
		w.plain(a.FileName)
		w.plain(a.FilePath)
		w.plain(a.FileSize)
		w.plain(a.MIMEType)
		if len(a.ParsedData) == 0 {
			w.plain(nil)
		} else {
			w.plain(string(a.ParsedData))
		}
		w.plain(a.UploadMonth)
		w.plain(a.LogDate)
		if a.RelatedLogID == nil {
			w.plain(nil)
			w.plain(nil)
		} else {
			w.plain(*a.RelatedLogID)
			w.plain(string(a.RelatedLogType))
		}
	},
	decode: func(r *colReader) types.Record {
		a := &types.Attachment{}
		r.plain(&a.Category)
		r.plain(&a.OriginalName)
		r.plain(&a.FileName)
		r.plain(&a.FilePath)
		r.plain(&a.FileSize)
		r.plain(&a.MIMEType)
		r.json(&a.ParsedData)
		r.plain(&a.UploadMonth)
		r.plain(&a.LogDate)
		related := &relatedLog{a: a}
		r.plain(&related.id)
		r.plain(&related.typ)
		r.after = append(r.after, related.apply)
		return a
	},
}

// relatedLog converts the nullable back-reference columns.
type relatedLog struct {
	a   *types.Attachment
	id  sql.NullInt64
	typ sql.NullString
}

func (rl *relatedLog) apply() error {
	if rl.id.Valid && rl.typ.Valid && rl.typ.String != "" {
		rl.a.SetRelated(types.LogType(rl.typ.String), rl.id.Int64)
	}
	return nil
}
