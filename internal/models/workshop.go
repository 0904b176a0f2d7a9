package models

import (
	"time"

	"github.com/gdg-garage/garage-workshops/internal/forms"
	"github.com/spf13/cast"
)

type WorkshopStatus string

const (
	WorkshopDraft     WorkshopStatus = "draft"
	WorkshopPublished WorkshopStatus = "published"
	WorkshopCancelled WorkshopStatus = "cancelled"
)

func (s WorkshopStatus) Valid() bool {
	return s == WorkshopDraft || s == WorkshopPublished || s == WorkshopCancelled
}

type ScheduleType string

const (
	ScheduleFixed    ScheduleType = "fixed"
	ScheduleFlexible ScheduleType = "flexible"
)

func (s ScheduleType) Valid() bool {
	return s == ScheduleFixed || s == ScheduleFlexible
}

// Column names used in store queries.
const (
	ColumnID         = "id"
	ColumnStatus     = "status"
	ColumnMasterID   = "master_id"
	ColumnCategory   = "category"
	ColumnTitle      = "title"
	ColumnCreatedAt  = "created_at"
	ColumnWorkshopID = "workshop_id"
	ColumnStudentID  = "student_id"
	ColumnEmail      = "email"
)

type Workshop struct {
	ID              string         `json:"id"`
	MasterID        string         `json:"masterId"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Category        string         `json:"category"`
	Location        string         `json:"location"`
	Price           *float64       `json:"price,omitempty" doc:"Absent means free"`
	Capacity        *int           `json:"capacity,omitempty" doc:"Absent means unlimited"`
	ScheduleType    ScheduleType   `json:"scheduleType,omitempty"`
	StartDate       *time.Time     `json:"startDate,omitempty"`
	EndDate         *time.Time     `json:"endDate,omitempty"`
	ApplicationForm forms.Form     `json:"applicationForm"`
	ImageURL        string         `json:"imageUrl,omitempty"`
	FormColor       string         `json:"formColor,omitempty"`
	AutoApprove     bool           `json:"autoApprove"`
	Status          WorkshopStatus `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
	Master          *User          `json:"master,omitempty"`
}

// Color is the accent used when rendering the workshop's form.
func (w Workshop) Color() string {
	return forms.Color(w.FormColor)
}

func (w Workshop) Published() bool {
	return w.Status == WorkshopPublished
}

// WorkshopRecord is the stored form of a Workshop. The application form
// and the dates are kept as text.
type WorkshopRecord struct {
	ID              string `gorm:"primaryKey"`
	MasterID        string `gorm:"index"`
	Title           string
	Description     string `gorm:"type:text"`
	Category        string `gorm:"index"`
	Location        string
	Price           *float64
	Capacity        *int
	ScheduleType    string
	StartDate       string
	EndDate         string
	ApplicationForm string `gorm:"type:text"`
	ImageURL        string
	FormColor       string
	AutoApprove     *bool
	Status          string    `gorm:"index"`
	CreatedAt       time.Time `gorm:"index"`
}

func (WorkshopRecord) TableName() string { return "workshops" }

// WorkshopFromRecord tolerates malformed stored data: a corrupt form reads
// as empty, bad dates as absent and an unknown status as draft.
func WorkshopFromRecord(r WorkshopRecord) Workshop {
	status := WorkshopStatus(r.Status)
	if !status.Valid() {
		status = WorkshopDraft
	}
	schedule := ScheduleType(r.ScheduleType)
	if !schedule.Valid() {
		schedule = ""
	}
	return Workshop{
		ID:              r.ID,
		MasterID:        r.MasterID,
		Title:           r.Title,
		Description:     r.Description,
		Category:        r.Category,
		Location:        r.Location,
		Price:           r.Price,
		Capacity:        r.Capacity,
		ScheduleType:    schedule,
		StartDate:       parseDate(r.StartDate),
		EndDate:         parseDate(r.EndDate),
		ApplicationForm: forms.Decode(r.ApplicationForm),
		ImageURL:        r.ImageURL,
		FormColor:       r.FormColor,
		AutoApprove:     r.AutoApprove != nil && *r.AutoApprove,
		Status:          status,
		CreatedAt:       r.CreatedAt,
	}
}

func (w Workshop) Record() (WorkshopRecord, error) {
	form, err := forms.Encode(w.ApplicationForm)
	if err != nil {
		return WorkshopRecord{}, err
	}
	autoApprove := w.AutoApprove
	return WorkshopRecord{
		ID:              w.ID,
		MasterID:        w.MasterID,
		Title:           w.Title,
		Description:     w.Description,
		Category:        w.Category,
		Location:        w.Location,
		Price:           w.Price,
		Capacity:        w.Capacity,
		ScheduleType:    string(w.ScheduleType),
		StartDate:       FormatDate(w.StartDate),
		EndDate:         FormatDate(w.EndDate),
		ApplicationForm: form,
		ImageURL:        w.ImageURL,
		FormColor:       w.FormColor,
		AutoApprove:     &autoApprove,
		Status:          string(w.Status),
		CreatedAt:       w.CreatedAt,
	}, nil
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := cast.ToTimeE(s)
	if err != nil {
		return nil
	}
	return &t
}

func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
