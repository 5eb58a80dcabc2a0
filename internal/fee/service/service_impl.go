package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/campus/internal/clock"
	feedomain "github.com/smallbiznis/campus/internal/fee/domain"
	obsmetrics "github.com/smallbiznis/campus/internal/observability/metrics"
	studentdomain "github.com/smallbiznis/campus/internal/student/domain"
	"github.com/smallbiznis/campus/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxAttempts bounds the internal read-check-write retry cycle. Exhaustion
// surfaces as ErrConflict; transient staleness never reaches the caller.
const maxAttempts = 3

var errStaleRecord = errors.New("stale fee record")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) feedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("fee.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateFeeRecord(ctx context.Context, req feedomain.CreateFeeRecordRequest) (feedomain.FeeRecord, error) {
	if req.Total <= 0 {
		return feedomain.FeeRecord{}, feedomain.ErrInvalidTotal
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&studentdomain.Student{}).
		Where("id = ?", req.StudentID).Count(&count).Error; err != nil {
		return feedomain.FeeRecord{}, err
	}
	if count == 0 {
		return feedomain.FeeRecord{}, feedomain.ErrStudentNotFound
	}

	record := feedomain.FeeRecord{
		ID:        s.genID.Generate(),
		StudentID: req.StudentID,
		Year:      req.Year,
		Semester:  req.Semester,
		Total:     req.Total,
		TotalPaid: 0,
		Balance:   req.Total,
		Status:    feedomain.FeeStatusPending,
		Version:   1,
		DueDate:   req.DueDate,
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return feedomain.FeeRecord{}, feedomain.ErrDuplicateRecord
		}
		return feedomain.FeeRecord{}, err
	}

	return record, nil
}

func (s *Service) RecordPayment(ctx context.Context, feeID snowflake.ID, req feedomain.RecordPaymentRequest) (feedomain.FeeRecord, error) {
	if req.Amount <= 0 {
		return feedomain.FeeRecord{}, feedomain.ErrInvalidAmount
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			s.obsMetrics.RecordConflictRetry(ctx, "fee.record_payment")
		}

		record, err := s.GetFeeRecord(ctx, feeID)
		if err != nil {
			return feedomain.FeeRecord{}, err
		}
		if req.Amount > record.Balance {
			return feedomain.FeeRecord{}, feedomain.ErrInsufficientBalance
		}

		newPaid := record.TotalPaid + req.Amount
		newBalance := record.Total - newPaid
		newStatus := feedomain.StatusFor(record.Total, newPaid)

		payment := feedomain.Payment{
			ID:            s.genID.Generate(),
			FeeID:         record.ID,
			Amount:        req.Amount,
			Mode:          strings.TrimSpace(req.Mode),
			ExternalRef:   strings.TrimSpace(req.ExternalRef),
			ReceiptNumber: "RCP-" + ulid.Make().String(),
		}

		// The version guard makes the read-check-write cycle atomic: if
		// another payment landed since the read above, zero rows match
		// and the whole transaction rolls back.
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.WithContext(ctx).Exec(
				`UPDATE fee_records
				SET total_paid = ?, balance = ?, status = ?, version = version + 1, updated_at = ?
				WHERE id = ? AND version = ?`,
				newPaid, newBalance, string(newStatus), s.clock.Now(),
				record.ID, record.Version,
			)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errStaleRecord
			}
			return tx.WithContext(ctx).Create(&payment).Error
		})
		if errors.Is(err, errStaleRecord) {
			continue
		}
		if err != nil {
			return feedomain.FeeRecord{}, err
		}

		s.obsMetrics.RecordPayment(ctx, payment.Mode)
		s.log.Info("payment recorded",
			zap.String("fee_id", record.ID.String()),
			zap.String("receipt_number", payment.ReceiptNumber),
			zap.Int64("amount", payment.Amount),
			zap.Int64("balance", newBalance),
		)

		record.TotalPaid = newPaid
		record.Balance = newBalance
		record.Status = newStatus
		record.Version++
		return record, nil
	}

	return feedomain.FeeRecord{}, feedomain.ErrConflict
}

func (s *Service) UpdateFeeStructure(ctx context.Context, feeID snowflake.ID, newTotal int64) (feedomain.FeeRecord, error) {
	if newTotal <= 0 {
		return feedomain.FeeRecord{}, feedomain.ErrInvalidTotal
	}

	// Structure changes are only legal before any payment. The total_paid
	// guard closes the race against a concurrent first payment.
	res := s.db.WithContext(ctx).Exec(
		`UPDATE fee_records
		SET total = ?, balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND total_paid = 0`,
		newTotal, newTotal, s.clock.Now(), feeID,
	)
	if res.Error != nil {
		return feedomain.FeeRecord{}, res.Error
	}
	if res.RowsAffected == 0 {
		record, err := s.GetFeeRecord(ctx, feeID)
		if err != nil {
			return feedomain.FeeRecord{}, err
		}
		if record.TotalPaid > 0 {
			return feedomain.FeeRecord{}, feedomain.ErrStructureLocked
		}
		return feedomain.FeeRecord{}, feedomain.ErrConflict
	}

	return s.GetFeeRecord(ctx, feeID)
}

func (s *Service) UpdateDueDate(ctx context.Context, feeID snowflake.ID, due time.Time) (feedomain.FeeRecord, error) {
	res := s.db.WithContext(ctx).Exec(
		`UPDATE fee_records SET due_date = ?, updated_at = ? WHERE id = ?`,
		due.UTC(), s.clock.Now(), feeID,
	)
	if res.Error != nil {
		return feedomain.FeeRecord{}, res.Error
	}
	if res.RowsAffected == 0 {
		return feedomain.FeeRecord{}, feedomain.ErrNotFound
	}
	return s.GetFeeRecord(ctx, feeID)
}

func (s *Service) GetFeeRecord(ctx context.Context, feeID snowflake.ID) (feedomain.FeeRecord, error) {
	var record feedomain.FeeRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", feeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return feedomain.FeeRecord{}, feedomain.ErrNotFound
		}
		return feedomain.FeeRecord{}, err
	}
	return record, nil
}

func (s *Service) GetPaymentHistory(ctx context.Context, feeID snowflake.ID) ([]feedomain.Payment, error) {
	if _, err := s.GetFeeRecord(ctx, feeID); err != nil {
		return nil, err
	}

	var payments []feedomain.Payment
	if err := s.db.WithContext(ctx).
		Where("fee_id = ?", feeID).
		Order("created_at ASC, id ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
