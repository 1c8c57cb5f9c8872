package types

// VisitCheck is the monthly family visit inspection.
type VisitCheck struct {
	Checked     bool   `json:"checked"`
	VisitCount  int    `json:"visitCount"`
	IssuesFound bool   `json:"issuesFound"`
	Description string `json:"description"`
}

// Meeting records attendance at a prison affairs meeting.
type Meeting struct {
	Participated bool   `json:"participated"`
	MeetingType  string `json:"meetingType"`
	Count        int    `json:"count"`
	Role         string `json:"role"`
	MeetingDate  string `json:"meetingDate"`
	Notes        string `json:"notes"`
}

// Punishment is the monthly review of disciplinary measures.
type Punishment struct {
	Exists           bool            `json:"exists"`
	RecordCount      int             `json:"recordCount"`
	ConfinementCount int             `json:"confinementCount"`
	Supervised       bool            `json:"supervised"`
	EvidenceUploaded bool            `json:"evidenceUploaded"`
	Reason           string          `json:"reason"`
	EvidenceFiles    []AttachmentRef `json:"evidenceFiles"`
}

// PositionStats tracks changes to work position head counts.
type PositionStats struct {
	StartCount            int    `json:"startCount"`
	EndCount              int    `json:"endCount"`
	MiscellaneousIncrease int    `json:"miscellaneousIncrease"`
	MiscellaneousDecrease int    `json:"miscellaneousDecrease"`
	ProductionIncrease    int    `json:"productionIncrease"`
	ProductionDecrease    int    `json:"productionDecrease"`
	Reason                string `json:"reason"`
}

// MonthlyRecord is the monthly inspection record, filed under YYYY-MM.
type MonthlyRecord struct {
	Header
	RecordMonth   string        `json:"record_month"`
	VisitCheck    VisitCheck    `json:"visit_check"`
	Meeting       Meeting       `json:"meeting"`
	Punishment    Punishment    `json:"punishment"`
	PositionStats PositionStats `json:"position_stats"`
	Notes         string        `json:"notes"`
}

func (m *MonthlyRecord) Kind() Kind { return KindMonthly }

func (m *MonthlyRecord) DateKey() string { return m.RecordMonth }

func (m *MonthlyRecord) Normalize() error {
	if m.RecordMonth == "" {
		return invalidf("record_month is required")
	}
	month, err := NormalizeMonth(m.RecordMonth)
	if err != nil {
		return err
	}
	m.RecordMonth = month
	m.Punishment.EvidenceFiles = emptyIfNil(m.Punishment.EvidenceFiles)
	return nil
}

func (m *MonthlyRecord) AttachmentSlots() []AttachmentSlot {
	return []AttachmentSlot{
		{Name: "punishment", Category: CategoryMonthlyPunishment, Refs: &m.Punishment.EvidenceFiles},
	}
}
