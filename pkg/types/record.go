package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind names a record table in the local store.
type Kind string

// Record kinds. The values are the table names in both backends and the
// table keys in an export payload.
const (
	KindDaily      Kind = "daily_logs"
	KindWeekly     Kind = "weekly_records"
	KindMonthly    Kind = "monthly_records"
	KindImmediate  Kind = "immediate_events"
	KindAttachment Kind = "attachments"
)

// Kinds lists every record kind in export order.
var Kinds = []Kind{KindDaily, KindWeekly, KindMonthly, KindImmediate, KindAttachment}

// LogKinds lists the kinds an attachment may point back at.
var LogKinds = []Kind{KindDaily, KindWeekly, KindMonthly, KindImmediate}

var kindAliases = map[string]Kind{
	"daily":       KindDaily,
	"weekly":      KindWeekly,
	"monthly":     KindMonthly,
	"immediate":   KindImmediate,
	"event":       KindImmediate,
	"events":      KindImmediate,
	"attachment":  KindAttachment,
	"attachments": KindAttachment,
}

// ParseKind accepts a table name or its short alias.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrTableNotFound, s)
}

// Valid reports whether k is one of the five kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// LogType returns the back-reference type of a log kind, or "" for
// attachments.
func (k Kind) LogType() LogType {
	switch k {
	case KindDaily:
		return LogDaily
	case KindWeekly:
		return LogWeekly
	case KindMonthly:
		return LogMonthly
	case KindImmediate:
		return LogImmediate
	}
	return ""
}

// LogType is the related_log_type of an attachment.
type LogType string

// Log types.
const (
	LogDaily     LogType = "daily"
	LogWeekly    LogType = "weekly"
	LogMonthly   LogType = "monthly"
	LogImmediate LogType = "immediate"
)

// Valid reports whether t names one of the four log kinds.
func (t LogType) Valid() bool {
	return t.Kind() != ""
}

// Kind returns the table holding logs of this type.
func (t LogType) Kind() Kind {
	switch t {
	case LogDaily:
		return KindDaily
	case LogWeekly:
		return KindWeekly
	case LogMonthly:
		return KindMonthly
	case LogImmediate:
		return KindImmediate
	}
	return ""
}

// SyncStatus tracks whether a record has been packaged into an archive.
type SyncStatus string

// Sync states. There is no transition back to pending.
const (
	SyncPending  SyncStatus = "pending"
	SyncExported SyncStatus = "exported"
)

// Valid reports whether s is a known sync state.
func (s SyncStatus) Valid() bool {
	return s == SyncPending || s == SyncExported
}

// CurrentSchemaVersion is written to every new record. Rows read with
// version 0 predate versioning and are upgraded by Header.Upgrade.
const CurrentSchemaVersion = 1

// Header carries the fields every record shares.
type Header struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	SchemaVersion int        `json:"schemaVersion"`
	SyncStatus    SyncStatus `json:"syncStatus"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Head returns the header itself so embedding types satisfy Record.
func (h *Header) Head() *Header { return h }

// Upgrade brings a header read from an older row up to the current schema.
// A missing sync state means the row was never exported.
func (h *Header) Upgrade() {
	if h.SyncStatus == "" {
		h.SyncStatus = SyncPending
	}
	if h.SchemaVersion == 0 {
		h.SchemaVersion = CurrentSchemaVersion
	}
}

// Record is implemented by every entity stored in a Table.
type Record interface {
	Kind() Kind
	Head() *Header
	// DateKey returns the normalized date the record is filed under.
	DateKey() string
	// Normalize canonicalizes dates and enumerations and rejects values
	// outside their domain with ErrInvalidData.
	Normalize() error
}

// NewRecord returns an empty record of the given kind.
func NewRecord(kind Kind) (Record, error) {
	switch kind {
	case KindDaily:
		return &DailyLog{}, nil
	case KindWeekly:
		return &WeeklyRecord{}, nil
	case KindMonthly:
		return &MonthlyRecord{}, nil
	case KindImmediate:
		return &ImmediateEvent{}, nil
	case KindAttachment:
		return &Attachment{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrTableNotFound, kind)
}

// DecodeRecord parses a stored JSON document into a record of the given
// kind. Unknown fields are ignored so older binaries can read newer rows.
func DecodeRecord(kind Kind, data []byte) (Record, error) {
	rec, err := NewRecord(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decoding %s record: %w", kind, err)
	}
	rec.Head().Upgrade()
	return rec, nil
}

// DecodeInput parses caller-supplied JSON into a record of the given kind.
// Unknown fields are rejected.
func DecodeInput(kind Kind, data []byte) (Record, error) {
	rec, err := NewRecord(kind)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return rec, nil
}

// CheckKind returns ErrInvalidData when rec is not of the expected kind.
func CheckKind(rec Record, want Kind) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidData)
	}
	if rec.Kind() != want {
		return fmt.Errorf("%w: %s record given to %s table", ErrInvalidData, rec.Kind(), want)
	}
	return nil
}

// Stamp fills the header of a record about to be inserted: the assigned id,
// a pending sync state and identical creation and update times. A record
// that already names a user keeps it.
func Stamp(rec Record, id, userID int64, now time.Time) {
	h := rec.Head()
	h.ID = id
	if h.UserID <= 0 {
		h.UserID = userID
	}
	h.SchemaVersion = CurrentSchemaVersion
	h.SyncStatus = SyncPending
	h.CreatedAt = now.UTC()
	h.UpdatedAt = h.CreatedAt
}

// emptyIfNil keeps list fields serialized as [] rather than null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
