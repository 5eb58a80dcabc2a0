package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type AllocationStatus string

const (
	AllocationStatusActive  AllocationStatus = "active"
	AllocationStatusVacated AllocationStatus = "vacated"
)

// Room tracks a physical room and its live headcount. CurrentOccupancy is
// only ever moved by guarded single-statement updates, never read-modify-write
// from application code.
type Room struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	Hostel           string       `gorm:"type:text;not null;uniqueIndex:ux_rooms_hostel_number,priority:1" json:"hostel"`
	Number           string       `gorm:"type:text;not null;uniqueIndex:ux_rooms_hostel_number,priority:2" json:"number"`
	Capacity         int64        `gorm:"not null" json:"capacity"`
	CurrentOccupancy int64        `gorm:"not null;default:0" json:"current_occupancy"`
	IsActive         bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Room) TableName() string { return "rooms" }

// Allocation binds a student to a room. At most one row per student may be in
// state active; vacated rows stay behind as history.
type Allocation struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	StudentID snowflake.ID      `gorm:"not null;index" json:"student_id"`
	RoomID    snowflake.ID      `gorm:"not null;index" json:"room_id"`
	Status    AllocationStatus  `gorm:"type:text;not null" json:"status"`
	Terms     datatypes.JSONMap `json:"terms,omitempty"`
	VacatedAt *time.Time        `json:"vacated_at,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Allocation) TableName() string { return "hostel_allocations" }
