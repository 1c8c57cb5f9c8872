package types

import "fmt"

// SceneCheck is one of the three inspection scenes (labor, living, study).
type SceneCheck struct {
	Checked     bool     `json:"checked"`
	Locations   []string `json:"locations"`
	FocusPoints []string `json:"focusPoints"`
	Issues      string   `json:"issues"`
	Notes       string   `json:"notes"`
}

func (s *SceneCheck) normalize() {
	s.Locations = emptyIfNil(s.Locations)
	s.FocusPoints = emptyIfNil(s.FocusPoints)
}

// ThreeScenes groups the labor, living and study scene checks.
type ThreeScenes struct {
	Labor  SceneCheck `json:"labor"`
	Living SceneCheck `json:"living"`
	Study  SceneCheck `json:"study"`
}

// HeadCount records new and total counts with a free-text note.
type HeadCount struct {
	NewCount   int    `json:"newCount"`
	TotalCount int    `json:"totalCount"`
	Notes      string `json:"notes,omitempty"`
}

// PoliceEquipment is the daily police equipment check.
type PoliceEquipment struct {
	Checked bool   `json:"checked"`
	Count   int    `json:"count"`
	Issues  string `json:"issues"`
}

// Admission counts prisoners moved in and out during the day.
type Admission struct {
	InCount  int `json:"inCount"`
	OutCount int `json:"outCount"`
}

// MonitorAnomaly is one anomaly found while reviewing monitoring footage.
type MonitorAnomaly struct {
	Location    string          `json:"location"`
	Time        string          `json:"time"`
	Description string          `json:"description"`
	Attachments []AttachmentRef `json:"attachments"`
}

// MonitorCheck is the daily monitoring review.
type MonitorCheck struct {
	Checked   bool             `json:"checked"`
	Count     int              `json:"count"`
	Anomalies []MonitorAnomaly `json:"anomalies"`
}

// DailyLog is the daily inspection log.
type DailyLog struct {
	Header
	LogDate              string          `json:"log_date"`
	PrisonName           string          `json:"prison_name"`
	InspectorName        string          `json:"inspector_name"`
	ThreeScenes          ThreeScenes     `json:"three_scenes"`
	StrictControl        HeadCount       `json:"strict_control"`
	PoliceEquipment      PoliceEquipment `json:"police_equipment"`
	GangPrisoners        HeadCount       `json:"gang_prisoners"`
	Admission            Admission       `json:"admission"`
	MonitorCheck         MonitorCheck    `json:"monitor_check"`
	SupervisionSituation string          `json:"supervision_situation"`
	FeedbackSituation    string          `json:"feedback_situation"`
	OtherWork            string          `json:"other_work"`
	Notes                string          `json:"notes"`
	Attachments          []AttachmentRef `json:"attachments"`
}

func (d *DailyLog) Kind() Kind { return KindDaily }

func (d *DailyLog) DateKey() string { return d.LogDate }

// Normalize requires a log date and canonicalizes it.
func (d *DailyLog) Normalize() error {
	if d.LogDate == "" {
		return invalidf("log_date is required")
	}
	date, err := NormalizeDate(d.LogDate)
	if err != nil {
		return err
	}
	d.LogDate = date
	d.ThreeScenes.Labor.normalize()
	d.ThreeScenes.Living.normalize()
	d.ThreeScenes.Study.normalize()
	d.MonitorCheck.Anomalies = emptyIfNil(d.MonitorCheck.Anomalies)
	for i := range d.MonitorCheck.Anomalies {
		d.MonitorCheck.Anomalies[i].Attachments = emptyIfNil(d.MonitorCheck.Anomalies[i].Attachments)
	}
	d.Attachments = emptyIfNil(d.Attachments)
	return nil
}

// AttachmentSlots lists the general attachments and one slot per anomaly.
func (d *DailyLog) AttachmentSlots() []AttachmentSlot {
	slots := []AttachmentSlot{{Name: "attachments", Category: CategoryDailyLog, Refs: &d.Attachments}}
	for i := range d.MonitorCheck.Anomalies {
		slots = append(slots, AttachmentSlot{
			Name:     fmt.Sprintf("anomaly:%d", i),
			Category: CategoryDailyLog,
			Refs:     &d.MonitorCheck.Anomalies[i].Attachments,
		})
	}
	return slots
}
