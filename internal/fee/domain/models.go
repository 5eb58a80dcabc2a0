package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type FeeStatus string

const (
	FeeStatusPending   FeeStatus = "pending"
	FeeStatusPartial   FeeStatus = "partial"
	FeeStatusCompleted FeeStatus = "completed"
)

// StatusFor derives the fee status from the paid amount. completed holds
// exactly when the balance reaches zero.
func StatusFor(total, totalPaid int64) FeeStatus {
	switch {
	case totalPaid == 0:
		return FeeStatusPending
	case totalPaid < total:
		return FeeStatusPartial
	default:
		return FeeStatusCompleted
	}
}

// FeeRecord carries the derived ledger totals. totalPaid and balance are
// only ever moved together with a version bump, inside the same transaction
// that appends the payment row.
type FeeRecord struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	StudentID snowflake.ID `gorm:"not null;uniqueIndex:ux_fee_records_term,priority:1" json:"student_id"`
	Year      int          `gorm:"not null;uniqueIndex:ux_fee_records_term,priority:2" json:"year"`
	Semester  int          `gorm:"not null;uniqueIndex:ux_fee_records_term,priority:3" json:"semester"`
	Total     int64        `gorm:"not null" json:"total"`
	TotalPaid int64        `gorm:"not null" json:"total_paid"`
	Balance   int64        `gorm:"not null" json:"balance"`
	Status    FeeStatus    `gorm:"type:text;not null" json:"status"`
	Version   int64        `gorm:"not null" json:"-"`
	DueDate   *time.Time   `json:"due_date,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (FeeRecord) TableName() string { return "fee_records" }

// Payment is an immutable ledger line. Rows are append-only; corrections are
// new payments, never edits.
type Payment struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	FeeID         snowflake.ID `gorm:"not null;index" json:"fee_id"`
	Amount        int64        `gorm:"not null" json:"amount"`
	Mode          string       `gorm:"type:text;not null" json:"mode"`
	ExternalRef   string       `gorm:"type:text" json:"external_ref,omitempty"`
	ReceiptNumber string       `gorm:"type:text;not null;uniqueIndex:ux_fee_payments_receipt" json:"receipt_number"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "fee_payments" }
