package types

import "fmt"

// Talk record types.
const (
	TalkNewPrisoner = "newPrisoner"
	TalkRelease     = "release"
	TalkInjury      = "injury"
	TalkConfinement = "confinement"
)

var talkTypes = map[string]bool{
	TalkNewPrisoner: true,
	TalkRelease:     true,
	TalkInjury:      true,
	TalkConfinement: true,
}

// FocusAreas are the areas covered by a hospital check.
type FocusAreas struct {
	PoliceEquipment bool `json:"policeEquipment"`
	StrictControl   bool `json:"strictControl"`
	Confinement     bool `json:"confinement"`
}

// HospitalCheck is the weekly prison hospital inspection.
type HospitalCheck struct {
	Checked            bool            `json:"checked"`
	CheckDate          string          `json:"checkDate"`
	FocusAreas         FocusAreas      `json:"focusAreas"`
	HasAnomalies       bool            `json:"hasAnomalies"`
	AnomalyDescription string          `json:"anomalyDescription"`
	Attachments        []AttachmentRef `json:"attachments"`
}

// InjuryCheck is the weekly injury verification.
type InjuryCheck struct {
	Found              bool            `json:"found"`
	Count              int             `json:"count"`
	Verified           bool            `json:"verified"`
	AnomalyDescription string          `json:"anomalyDescription"`
	TranscriptUploaded bool            `json:"transcriptUploaded"`
	Attachments        []AttachmentRef `json:"attachments"`
}

// TalkRecord is one conversation held with a prisoner.
type TalkRecord struct {
	Type               string          `json:"type"`
	PrisonerName       string          `json:"prisonerName"`
	PrisonerID         string          `json:"prisonerId"`
	Date               string          `json:"date"`
	Content            string          `json:"content"`
	TranscriptUploaded bool            `json:"transcriptUploaded"`
	Attachments        []AttachmentRef `json:"attachments"`
}

// Mailbox is the weekly prosecutor mailbox check.
type Mailbox struct {
	Opened            bool            `json:"opened"`
	OpenCount         int             `json:"openCount"`
	ReceivedCount     int             `json:"receivedCount"`
	ValuableClues     int             `json:"valuableClues"`
	ClueDescription   string          `json:"clueDescription"`
	MaterialsUploaded bool            `json:"materialsUploaded"`
	Attachments       []AttachmentRef `json:"attachments"`
}

// Contraband is the weekly contraband search.
type Contraband struct {
	Checked       bool            `json:"checked"`
	Found         bool            `json:"found"`
	FoundCount    int             `json:"foundCount"`
	InvolvedCount int             `json:"involvedCount"`
	Description   string          `json:"description"`
	Attachments   []AttachmentRef `json:"attachments"`
}

// WeeklyRecord is the weekly inspection record.
type WeeklyRecord struct {
	Header
	RecordDate    string        `json:"record_date"`
	WeekNumber    int           `json:"week_number"`
	HospitalCheck HospitalCheck `json:"hospital_check"`
	InjuryCheck   InjuryCheck   `json:"injury_check"`
	TalkRecords   []TalkRecord  `json:"talk_records"`
	Mailbox       Mailbox       `json:"mailbox"`
	Contraband    Contraband    `json:"contraband"`
	Notes         string        `json:"notes"`
}

func (w *WeeklyRecord) Kind() Kind { return KindWeekly }

func (w *WeeklyRecord) DateKey() string { return w.RecordDate }

// Normalize canonicalizes the record date and derives the week number when
// it is missing.
func (w *WeeklyRecord) Normalize() error {
	if w.RecordDate == "" {
		return invalidf("record_date is required")
	}
	date, err := NormalizeDate(w.RecordDate)
	if err != nil {
		return err
	}
	w.RecordDate = date
	if w.WeekNumber == 0 {
		w.WeekNumber = WeekOfMonth(date)
	}
	if w.WeekNumber < 1 || w.WeekNumber > 6 {
		return invalidf("week_number %d out of range", w.WeekNumber)
	}
	w.HospitalCheck.Attachments = emptyIfNil(w.HospitalCheck.Attachments)
	w.InjuryCheck.Attachments = emptyIfNil(w.InjuryCheck.Attachments)
	w.Mailbox.Attachments = emptyIfNil(w.Mailbox.Attachments)
	w.Contraband.Attachments = emptyIfNil(w.Contraband.Attachments)
	w.TalkRecords = emptyIfNil(w.TalkRecords)
	for i := range w.TalkRecords {
		tr := &w.TalkRecords[i]
		if tr.Type != "" && !talkTypes[tr.Type] {
			return invalidf("unknown talk type %q", tr.Type)
		}
		tr.Attachments = emptyIfNil(tr.Attachments)
	}
	return nil
}

// AttachmentSlots lists one slot per section that accepts files.
func (w *WeeklyRecord) AttachmentSlots() []AttachmentSlot {
	slots := []AttachmentSlot{
		{Name: "hospital_check", Category: CategoryWeeklyHospital, Refs: &w.HospitalCheck.Attachments},
		{Name: "injury_check", Category: CategoryWeeklyInjury, Refs: &w.InjuryCheck.Attachments},
		{Name: "mailbox", Category: CategoryWeeklyMailbox, Refs: &w.Mailbox.Attachments},
		{Name: "contraband", Category: CategoryWeeklyContraband, Refs: &w.Contraband.Attachments},
	}
	for i := range w.TalkRecords {
		slots = append(slots, AttachmentSlot{
			Name:     fmt.Sprintf("talk:%d", i),
			Category: CategoryWeeklyTalk,
			Refs:     &w.TalkRecords[i].Attachments,
		})
	}
	return slots
}
