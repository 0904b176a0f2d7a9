package models

import (
	"time"

	"github.com/gdg-garage/garage-workshops/internal/forms"
	"github.com/gdg-garage/garage-workshops/internal/workflow"
)

type Application struct {
	ID         string          `json:"id"`
	WorkshopID string          `json:"workshopId"`
	StudentID  string          `json:"studentId"`
	Responses  forms.Responses `json:"responses"`
	Status     workflow.Status `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	Workshop   *Workshop       `json:"workshop,omitempty"`
	Student    *User           `json:"student,omitempty"`
}

// ApplicationRecord is the stored form of an Application; responses are
// kept as JSON text.
type ApplicationRecord struct {
	ID         string `gorm:"primaryKey"`
	WorkshopID string `gorm:"index"`
	StudentID  string `gorm:"index"`
	Responses  string `gorm:"type:text"`
	Status     string
	CreatedAt  time.Time `gorm:"index"`
}

func (ApplicationRecord) TableName() string { return "applications" }

// ApplicationFromRecord never fails; corrupt responses read as an empty map.
func ApplicationFromRecord(r ApplicationRecord) Application {
	return Application{
		ID:         r.ID,
		WorkshopID: r.WorkshopID,
		StudentID:  r.StudentID,
		Responses:  forms.DecodeResponses(r.Responses),
		Status:     workflow.Parse(r.Status),
		CreatedAt:  r.CreatedAt,
	}
}

func (a Application) Record() (ApplicationRecord, error) {
	responses, err := forms.EncodeResponses(a.Responses)
	if err != nil {
		return ApplicationRecord{}, err
	}
	return ApplicationRecord{
		ID:         a.ID,
		WorkshopID: a.WorkshopID,
		StudentID:  a.StudentID,
		Responses:  responses,
		Status:     string(a.Status),
		CreatedAt:  a.CreatedAt,
	}, nil
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is modelled for future use; nothing creates payments yet.
type Payment struct {
	ID              string        `gorm:"primaryKey" json:"id"`
	ApplicationID   string        `gorm:"index" json:"applicationId"`
	Amount          float64       `json:"amount"`
	Status          PaymentStatus `json:"status"`
	StripePaymentID string        `json:"stripePaymentId,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
}
