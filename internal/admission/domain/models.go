package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ApplicationStatus string

const (
	ApplicationStatusSubmitted ApplicationStatus = "submitted"
	ApplicationStatusReviewed  ApplicationStatus = "reviewed"
	ApplicationStatusAccepted  ApplicationStatus = "accepted"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
)

// Scope partitions application numbering. Numbers are gap-free and unique
// within one scope.
type Scope struct {
	Prefix string
	Year   int
}

func (s Scope) String() string {
	return fmt.Sprintf("%s%d", s.Prefix, s.Year)
}

// ApplicationSequence is the per-scope counter row backing number issuance.
// last_value is only ever moved by a guarded increment.
type ApplicationSequence struct {
	Prefix    string `gorm:"primaryKey;type:text"`
	Year      int    `gorm:"primaryKey"`
	LastValue int64  `gorm:"not null"`
}

// TableName sets the database table name.
func (ApplicationSequence) TableName() string { return "application_sequences" }

type Application struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	ApplicationNumber string            `gorm:"type:text;not null;uniqueIndex:ux_applications_number" json:"application_number"`
	ApplicantName     string            `gorm:"type:text;not null" json:"applicant_name"`
	Email             string            `gorm:"type:text;not null" json:"email"`
	Program           string            `gorm:"type:text;not null" json:"program"`
	Year              int               `gorm:"not null;index" json:"year"`
	Status            ApplicationStatus `gorm:"type:text;not null" json:"status"`
	Payload           datatypes.JSONMap `gorm:"type:jsonb" json:"payload,omitempty"`
	CreatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Application) TableName() string { return "admission_applications" }
