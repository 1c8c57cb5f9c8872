package types

// Immediate event types.
const (
	EventEscape           = "escape"
	EventSelfHarm         = "selfHarm"
	EventMajorAccident    = "majorAccident"
	EventDeath            = "death"
	EventMajorActivity    = "majorActivity"
	EventPoliceDiscipline = "policeDiscipline"
	EventParoleRequest    = "paroleRequest"
)

// EventTypes lists the accepted event_type values.
var EventTypes = []string{
	EventEscape,
	EventSelfHarm,
	EventMajorAccident,
	EventDeath,
	EventMajorActivity,
	EventPoliceDiscipline,
	EventParoleRequest,
}

// Parole stages.
const (
	ParoleReview    = "review"
	ParolePublicize = "publicize"
	ParoleSubmitted = "submitted"
	ParoleApproved  = "approved"
)

// Event handling states.
const (
	EventPending   = "pending"
	EventProcessed = "processed"
	EventClosed    = "closed"
)

// ParoleData describes a batch of parole or commutation requests.
type ParoleData struct {
	Batch string `json:"batch"`
	Count int    `json:"count"`
	Stage string `json:"stage"`
}

// ImmediateEvent is an incident reported outside the regular schedule.
type ImmediateEvent struct {
	Header
	EventDate     string      `json:"event_date"`
	EventType     string      `json:"event_type"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	ParoleData    *ParoleData `json:"parole_data"`
	AttachmentIDs []int64     `json:"attachment_ids"`
	Status        string      `json:"status"`
}

func (e *ImmediateEvent) Kind() Kind { return KindImmediate }

func (e *ImmediateEvent) DateKey() string { return e.EventDate }

func (e *ImmediateEvent) Normalize() error {
	if e.EventDate == "" {
		return invalidf("event_date is required")
	}
	date, err := NormalizeDate(e.EventDate)
	if err != nil {
		return err
	}
	e.EventDate = date
	if !oneOf(e.EventType, EventTypes...) {
		return invalidf("unknown event_type %q", e.EventType)
	}
	if e.Status == "" {
		e.Status = EventPending
	}
	if !oneOf(e.Status, EventPending, EventProcessed, EventClosed) {
		return invalidf("unknown event status %q", e.Status)
	}
	if e.ParoleData != nil && e.ParoleData.Stage != "" &&
		!oneOf(e.ParoleData.Stage, ParoleReview, ParolePublicize, ParoleSubmitted, ParoleApproved) {
		return invalidf("unknown parole stage %q", e.ParoleData.Stage)
	}
	e.AttachmentIDs = emptyIfNil(e.AttachmentIDs)
	return nil
}

// AttachmentSlots exposes the id list; events keep no embedded refs.
func (e *ImmediateEvent) AttachmentSlots() []AttachmentSlot {
	return []AttachmentSlot{
		{Name: "attachments", Category: CategoryImmediateEvent, IDs: &e.AttachmentIDs},
	}
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
