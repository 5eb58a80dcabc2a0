package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type RegistrationStatus string

const (
	RegistrationStatusRegistered RegistrationStatus = "registered"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type Exam struct {
	ID                snowflake.ID                `gorm:"primaryKey" json:"id"`
	Code              string                      `gorm:"type:text;not null;uniqueIndex:ux_exams_code" json:"code"`
	Name              string                      `gorm:"type:text;not null" json:"name"`
	EligibleBranches  datatypes.JSONSlice[string] `gorm:"not null" json:"eligible_branches"`
	Subjects          datatypes.JSONSlice[string] `gorm:"not null" json:"subjects"`
	FeePerSubject     int64                       `gorm:"not null" json:"fee_per_subject"`
	RegistrationStart time.Time                   `gorm:"not null" json:"registration_start"`
	RegistrationEnd   time.Time                   `gorm:"not null" json:"registration_end"`
	CreatedAt         time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Exam) TableName() string { return "exams" }

// HasSubject reports whether code is one of the exam's defined subjects.
func (e Exam) HasSubject(code string) bool {
	for _, subject := range e.Subjects {
		if subject == code {
			return true
		}
	}
	return false
}

// EligibleFor reports whether branch may register for the exam.
func (e Exam) EligibleFor(branch string) bool {
	for _, eligible := range e.EligibleBranches {
		if eligible == branch {
			return true
		}
	}
	return false
}

// Registration holds a student's subject selection for one exam. At most one
// row per (exam, student) may be in state registered; cancelled rows do not
// block a later registration.
type Registration struct {
	ID                 snowflake.ID                `gorm:"primaryKey" json:"id"`
	ExamID             snowflake.ID                `gorm:"not null;index" json:"exam_id"`
	StudentID          snowflake.ID                `gorm:"not null;index" json:"student_id"`
	RegisteredSubjects datatypes.JSONSlice[string] `gorm:"not null" json:"registered_subjects"`
	TotalFee           int64                       `gorm:"not null" json:"total_fee"`
	Status             RegistrationStatus          `gorm:"type:text;not null" json:"status"`
	PaymentStatus      PaymentStatus               `gorm:"type:text;not null" json:"payment_status"`
	CreatedAt          time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Registration) TableName() string { return "exam_registrations" }
