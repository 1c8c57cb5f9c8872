package types

import (
	"encoding/json"
	"time"
)

// Attachment categories. The normalized ones get a deterministic stored
// file name; the rest keep the name they arrived with.
const (
	CategoryDailyLog          = "daily_log"
	CategoryWeeklyHospital    = "weekly_hospital"
	CategoryWeeklyInjury      = "weekly_injury"
	CategoryWeeklyTalk        = "weekly_talk"
	CategoryWeeklyContraband  = "weekly_contraband"
	CategoryMonthlyPunishment = "monthly_punishment"
	CategoryWeeklyMailbox     = "weekly_mailbox"
	CategoryImmediateEvent    = "immediate_event"
	CategoryGeneral           = "general"
)

// NormalizedCategories lists the categories that use generated names.
var NormalizedCategories = []string{
	CategoryDailyLog,
	CategoryWeeklyHospital,
	CategoryWeeklyInjury,
	CategoryWeeklyTalk,
	CategoryWeeklyContraband,
	CategoryMonthlyPunishment,
}

// IsNormalizedCategory reports whether category uses generated names.
func IsNormalizedCategory(category string) bool {
	for _, c := range NormalizedCategories {
		if c == category {
			return true
		}
	}
	return false
}

// DefaultMIMEType is recorded when a file's type cannot be determined.
const DefaultMIMEType = "application/octet-stream"

// AttachmentRef is the copy of attachment metadata embedded in a record
// section. ID is the Attachment row id once that row exists.
type AttachmentRef struct {
	ID           int64  `json:"id"`
	OriginalName string `json:"original_name"`
	FileName     string `json:"file_name"`
	FilePath     string `json:"file_path"`
	FileSize     int64  `json:"file_size"`
	MIMEType     string `json:"mime_type"`
	Category     string `json:"category"`
}

// Attachment is the durable metadata row for a stored file. The back
// reference to a log is non-owning: deleting the log leaves this row in
// place until the caller removes it.
type Attachment struct {
	Header
	Category       string          `json:"category"`
	OriginalName   string          `json:"original_name"`
	FileName       string          `json:"file_name"`
	FilePath       string          `json:"file_path"`
	FileSize       int64           `json:"file_size"`
	MIMEType       string          `json:"mime_type"`
	ParsedData     json.RawMessage `json:"parsed_data,omitempty"`
	UploadMonth    string          `json:"upload_month"`
	LogDate        string          `json:"log_date"`
	RelatedLogID   *int64          `json:"related_log_id"`
	RelatedLogType LogType         `json:"related_log_type"`
}

func (a *Attachment) Kind() Kind { return KindAttachment }

func (a *Attachment) DateKey() string { return a.LogDate }

// Normalize checks the back reference and fills upload_month.
func (a *Attachment) Normalize() error {
	if a.Category == "" {
		return invalidf("attachment category is required")
	}
	if a.FileName == "" {
		return invalidf("attachment file_name is required")
	}
	if a.MIMEType == "" {
		a.MIMEType = DefaultMIMEType
	}
	if a.LogDate != "" {
		d, err := NormalizeDate(a.LogDate)
		if err != nil {
			return err
		}
		a.LogDate = d
	}
	if a.UploadMonth == "" {
		if a.LogDate != "" {
			a.UploadMonth = a.LogDate[:len(MonthLayout)]
		} else {
			a.UploadMonth = time.Now().Format(MonthLayout)
		}
	} else {
		m, err := NormalizeMonth(a.UploadMonth)
		if err != nil {
			return err
		}
		a.UploadMonth = m
	}
	if (a.RelatedLogID == nil) != (a.RelatedLogType == "") {
		return invalidf("related_log_id and related_log_type must be set together")
	}
	if a.RelatedLogType != "" && !a.RelatedLogType.Valid() {
		return invalidf("unknown related_log_type %q", a.RelatedLogType)
	}
	if len(a.ParsedData) > 0 && !json.Valid(a.ParsedData) {
		return invalidf("parsed_data is not valid JSON")
	}
	return nil
}

// SetRelated points the attachment at a log.
func (a *Attachment) SetRelated(t LogType, id int64) {
	a.RelatedLogType = t
	a.RelatedLogID = &id
}

// Ref returns the embedded copy of this attachment's metadata.
func (a *Attachment) Ref() AttachmentRef {
	return AttachmentRef{
		ID:           a.ID,
		OriginalName: a.OriginalName,
		FileName:     a.FileName,
		FilePath:     a.FilePath,
		FileSize:     a.FileSize,
		MIMEType:     a.MIMEType,
		Category:     a.Category,
	}
}

// AttachmentSlot is a place in a record where uploaded files are listed.
// Exactly one of Refs and IDs is set.
type AttachmentSlot struct {
	Name     string
	Category string
	Refs     *[]AttachmentRef
	IDs      *[]int64
}

// AttachmentHolder is implemented by records that carry attachment slots.
type AttachmentHolder interface {
	AttachmentSlots() []AttachmentSlot
}

// FindSlot returns the named slot of a holder.
func FindSlot(h AttachmentHolder, name string) (AttachmentSlot, bool) {
	for _, s := range h.AttachmentSlots() {
		if s.Name == name {
			return s, true
		}
	}
	return AttachmentSlot{}, false
}

// AllRefs collects every embedded attachment ref of a holder.
func AllRefs(h AttachmentHolder) []AttachmentRef {
	var refs []AttachmentRef
	for _, s := range h.AttachmentSlots() {
		if s.Refs != nil {
			refs = append(refs, (*s.Refs)...)
		}
	}
	return refs
}

// Setting is one key/value pair of device configuration.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Well-known setting keys.
const (
	SettingPrisonName    = "prisonName"
	SettingInspectorName = "inspectorName"
)
