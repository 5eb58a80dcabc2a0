package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Student struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Email     string       `gorm:"type:text;not null;uniqueIndex:ux_students_email" json:"email"`
	Branch    string       `gorm:"type:text;not null;index" json:"branch"`
	Program   string       `gorm:"type:text;not null" json:"program"`
	Year      int          `gorm:"not null" json:"year"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Student) TableName() string { return "students" }
