package types

import (
	"context"
	"errors"
)

// Store is the local record store. A process constructs one Store at
// start-up, attaches it to a backend and passes it to every component that
// reads or writes records.
type Store interface {
	// Attach connects the Store to the backend described by config.
	// Creates the DataDir if it does not exist. Returns ErrAlreadyAttached
	// if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	Detach() error

	// Backend names the storage backend in use.
	Backend() string

	// GetTable returns the Table for the given kind.
	GetTable(kind Kind) (Table, error)

	// PendingSyncData returns every record not yet exported, per kind, in
	// ascending id order.
	PendingSyncData(ctx context.Context) (*PendingData, error)

	// PendingSyncCount returns the number of pending records per kind.
	PendingSyncCount(ctx context.Context) (SyncCount, error)

	// MarkAsExported sets syncStatus=exported on the given rows. Ids that
	// do not exist or are already exported are ignored.
	MarkAsExported(ctx context.Context, kind Kind, ids []int64) error

	// AttachmentsForLog returns the attachment rows whose back reference
	// names the given log.
	AttachmentsForLog(ctx context.Context, logType LogType, logID int64) ([]*Attachment, error)

	// GetSetting returns the value stored under key and whether it exists.
	GetSetting(ctx context.Context, key string) (string, bool, error)

	// SaveSetting creates or replaces a setting.
	SaveSetting(ctx context.Context, key, value string) error
}

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrTableNotFound   = errors.New("table not found")
)

// PendingData holds the pending rows of every kind.
type PendingData struct {
	DailyLogs       []*DailyLog       `json:"daily_logs"`
	WeeklyRecords   []*WeeklyRecord   `json:"weekly_records"`
	MonthlyRecords  []*MonthlyRecord  `json:"monthly_records"`
	ImmediateEvents []*ImmediateEvent `json:"immediate_events"`
	Attachments     []*Attachment     `json:"attachments"`
}

// Add appends a record to the list of its kind.
func (p *PendingData) Add(rec Record) {
	switch r := rec.(type) {
	case *DailyLog:
		p.DailyLogs = append(p.DailyLogs, r)
	case *WeeklyRecord:
		p.WeeklyRecords = append(p.WeeklyRecords, r)
	case *MonthlyRecord:
		p.MonthlyRecords = append(p.MonthlyRecords, r)
	case *ImmediateEvent:
		p.ImmediateEvents = append(p.ImmediateEvents, r)
	case *Attachment:
		p.Attachments = append(p.Attachments, r)
	}
}

// Records returns the pending records of one kind.
func (p *PendingData) Records(kind Kind) []Record {
	var out []Record
	switch kind {
	case KindDaily:
		for _, r := range p.DailyLogs {
			out = append(out, r)
		}
	case KindWeekly:
		for _, r := range p.WeeklyRecords {
			out = append(out, r)
		}
	case KindMonthly:
		for _, r := range p.MonthlyRecords {
			out = append(out, r)
		}
	case KindImmediate:
		for _, r := range p.ImmediateEvents {
			out = append(out, r)
		}
	case KindAttachment:
		for _, r := range p.Attachments {
			out = append(out, r)
		}
	}
	return out
}

// IDs returns the ids of the pending records of one kind.
func (p *PendingData) IDs(kind Kind) []int64 {
	recs := p.Records(kind)
	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.Head().ID)
	}
	return ids
}

// Count tallies the pending records per kind.
func (p *PendingData) Count() SyncCount {
	c := SyncCount{
		Daily:       len(p.DailyLogs),
		Weekly:      len(p.WeeklyRecords),
		Monthly:     len(p.MonthlyRecords),
		Immediate:   len(p.ImmediateEvents),
		Attachments: len(p.Attachments),
	}
	c.Total = c.Daily + c.Weekly + c.Monthly + c.Immediate + c.Attachments
	return c
}

// Normalize replaces nil lists with empty ones so they encode as [].
func (p *PendingData) Normalize() {
	p.DailyLogs = emptyIfNil(p.DailyLogs)
	p.WeeklyRecords = emptyIfNil(p.WeeklyRecords)
	p.MonthlyRecords = emptyIfNil(p.MonthlyRecords)
	p.ImmediateEvents = emptyIfNil(p.ImmediateEvents)
	p.Attachments = emptyIfNil(p.Attachments)
}

// SyncCount is the number of pending records per kind. Total is always the
// sum of the other fields.
type SyncCount struct {
	Daily       int `json:"daily"`
	Weekly      int `json:"weekly"`
	Monthly     int `json:"monthly"`
	Immediate   int `json:"immediate"`
	Attachments int `json:"attachments"`
	Total       int `json:"total"`
}

// Set stores the count of one kind and recomputes Total.
func (c *SyncCount) Set(kind Kind, n int) {
	switch kind {
	case KindDaily:
		c.Daily = n
	case KindWeekly:
		c.Weekly = n
	case KindMonthly:
		c.Monthly = n
	case KindImmediate:
		c.Immediate = n
	case KindAttachment:
		c.Attachments = n
	}
	c.Total = c.Daily + c.Weekly + c.Monthly + c.Immediate + c.Attachments
}

// Of returns the count of one kind.
func (c SyncCount) Of(kind Kind) int {
	switch kind {
	case KindDaily:
		return c.Daily
	case KindWeekly:
		return c.Weekly
	case KindMonthly:
		return c.Monthly
	case KindImmediate:
		return c.Immediate
	case KindAttachment:
		return c.Attachments
	}
	return 0
}
