package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateFeeRecordRequest struct {
	StudentID snowflake.ID
	Year      int
	Semester  int
	Total     int64
	DueDate   *time.Time
}

type RecordPaymentRequest struct {
	Amount      int64
	Mode        string
	ExternalRef string
}

type Service interface {
	CreateFeeRecord(ctx context.Context, req CreateFeeRecordRequest) (FeeRecord, error)
	// RecordPayment appends a payment and recomputes the derived totals.
	// The balance check and the write are one atomic unit: concurrent
	// payments that would jointly overdraw cannot both succeed.
	RecordPayment(ctx context.Context, feeID snowflake.ID, req RecordPaymentRequest) (FeeRecord, error)
	// UpdateFeeStructure replaces the fee total; only allowed before any
	// payment has been recorded.
	UpdateFeeStructure(ctx context.Context, feeID snowflake.ID, newTotal int64) (FeeRecord, error)
	UpdateDueDate(ctx context.Context, feeID snowflake.ID, due time.Time) (FeeRecord, error)
	GetFeeRecord(ctx context.Context, feeID snowflake.ID) (FeeRecord, error)
	GetPaymentHistory(ctx context.Context, feeID snowflake.ID) ([]Payment, error)
}
