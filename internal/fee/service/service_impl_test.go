package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/campus/internal/clock"
	feedomain "github.com/smallbiznis/campus/internal/fee/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupFeeService(t *testing.T, node *snowflake.Node) (feedomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	prepareFeeSchema(t, db)

	clk := clock.NewFakeClock(time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC))
	service := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
	})

	return service, db, clk
}

func prepareFeeSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Exec(`CREATE TABLE students (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		branch TEXT NOT NULL,
		program TEXT NOT NULL,
		year BIGINT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE fee_records (
		id BIGINT PRIMARY KEY,
		student_id BIGINT NOT NULL,
		year BIGINT NOT NULL,
		semester BIGINT NOT NULL,
		total BIGINT NOT NULL,
		total_paid BIGINT NOT NULL DEFAULT 0,
		balance BIGINT NOT NULL,
		status TEXT NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		due_date DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX ux_fee_records_term
		ON fee_records (student_id, year, semester)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE fee_payments (
		id BIGINT PRIMARY KEY,
		fee_id BIGINT NOT NULL,
		amount BIGINT NOT NULL,
		mode TEXT NOT NULL,
		external_ref TEXT,
		receipt_number TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX ux_fee_payments_receipt
		ON fee_payments (receipt_number)`).Error)
}

func seedFeeStudent(t *testing.T, db *gorm.DB, id snowflake.ID) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO students (id, name, email, branch, program, year, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, "Asha Rao", fmt.Sprintf("s%d@campus.local", id), "CS", "BTech", 2,
		time.Now().UTC(), time.Now().UTC(),
	).Error)
}

func TestCreateFeeRecord(t *testing.T) {
	node := mustFeeNode(t)
	service, db, _ := setupFeeService(t, node)
	studentID := node.Generate()
	seedFeeStudent(t, db, studentID)

	record, err := service.CreateFeeRecord(context.Background(), feedomain.CreateFeeRecordRequest{
		StudentID: studentID,
		Year:      2024,
		Semester:  1,
		Total:     1000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1000), record.Total)
	require.Equal(t, int64(0), record.TotalPaid)
	require.Equal(t, int64(1000), record.Balance)
	require.Equal(t, feedomain.FeeStatusPending, record.Status)

	_, err = service.CreateFeeRecord(context.Background(), feedomain.CreateFeeRecordRequest{
		StudentID: studentID,
		Year:      2024,
		Semester:  1,
		Total:     500,
	})
	require.ErrorIs(t, err, feedomain.ErrDuplicateRecord)
}

func TestCreateFeeRecordUnknownStudent(t *testing.T) {
	node := mustFeeNode(t)
	service, _, _ := setupFeeService(t, node)

	_, err := service.CreateFeeRecord(context.Background(), feedomain.CreateFeeRecordRequest{
		StudentID: node.Generate(),
		Year:      2024,
		Semester:  1,
		Total:     1000,
	})
	require.ErrorIs(t, err, feedomain.ErrStudentNotFound)
}

func TestRecordPaymentStatusTransitions(t *testing.T) {
	node := mustFeeNode(t)
	service, db, _ := setupFeeService(t, node)
	studentID := node.Generate()
	seedFeeStudent(t, db, studentID)

	record, err := service.CreateFeeRecord(context.Background(), feedomain.CreateFeeRecordRequest{
		StudentID: studentID,
		Year:      2024,
		Semester:  1,
		Total:     1000,
	})
	require.NoError(t, err)

	record, err = service.RecordPayment(context.Background(), record.ID, feedomain.RecordPaymentRequest{
		Amount: 400,
		Mode:   "upi",
	})
	require.NoError(t, err)
	require.Equal(t, int64(400), record.TotalPaid)
	require.Equal(t, int64(600), record.Balance)
	require.Equal(t, feedomain.FeeStatusPartial, record.Status)

	record, err = service.RecordPayment(context.Background(), record.ID, feedomain.RecordPaymentRequest{
		Amount: 600,
		Mode:   "card",
	})
	require.NoError(t, err)
	require.Equal(t, int64(1000), record.TotalPaid)
	require.Equal(t, int64(0), record.Balance)
	require.Equal(t, feedomain.FeeStatusCompleted, record.Status)

	_, err = service.RecordPayment(context.Background(), record.ID, feedomain.RecordPaymentRequest{
		Amount: 1,
		Mode:   "upi",
	})
	require.ErrorIs(t, err, feedomain.ErrInsufficientBalance)

	history, err := service.GetPaymentHistory(context.Background(), record.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotEmpty(t, history[0].ReceiptNumber)
	require.NotEqual(t, history[0].ReceiptNumber, history[1].ReceiptNumber)
}

func TestRecordPaymentInvalidAmount(t *testing.T) {
	node := mustFeeNode(t)
	service, db, _ := setupFeeService(t, node)
	studentID := node.Generate()
	seedFeeStudent(t, db, studentID)

	record, err := service.CreateFeeRecord(context.Background(), feedomain.CreateFeeRecordRequest{
		StudentID: studentID,
		Year:      2024,
		Semester:  1,
		Total:     1000,
	})
	require.NoError(t, err)

	_, err = service.RecordPayment(context.Background(), record.ID, feedomain.RecordPaymentRequest{Amount: 0})
	require.ErrorIs(t, err, feedomain.ErrInvalidAmount)
	_, err = service.RecordPayment(context.Background(), record.ID, feedomain.RecordPaymentRequest{Amount: -5})
	require.ErrorIs(t, err, feedomain.ErrInvalidAmount)
}

func TestRecordPaymentConcurrentOverdraw(t *testing.T) {
	node := mustFeeNode(t)
	service, db, _ := setupFeeService(t, node)
	studentID := node.Generate()
	seedFeeStudent(t, db, studentID)

	record, err := service.CreateFeeRecord(context.Background(), feedomain.CreateFeeRecordRequest{
		StudentID: studentID,
		Year:      2024,
		Semester:  1,
		Total:     1000,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = service.RecordPayment(context.Background(), record.ID, feedomain.RecordPaymentRequest{
				Amount: 700,
				Mode:   "upi",
			})
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, feedomain.ErrInsufficientBalance):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, rejected)

	final, err := service.GetFeeRecord(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, int64(300), final.Balance)
	require.Equal(t, int64(700), final.TotalPaid)
	require.Equal(t, feedomain.FeeStatusPartial, final.Status)
}

func TestUpdateFeeStructureLockedAfterPayment(t *testing.T) {
	node := mustFeeNode(t)
	service, db, _ := setupFeeService(t, node)
	studentID := node.Generate()
	seedFeeStudent(t, db, studentID)

	record, err := service.CreateFeeRecord(context.Background(), feedomain.CreateFeeRecordRequest{
		StudentID: studentID,
		Year:      2024,
		Semester:  1,
		Total:     1000,
	})
	require.NoError(t, err)

	record, err = service.UpdateFeeStructure(context.Background(), record.ID, 1200)
	require.NoError(t, err)
	require.Equal(t, int64(1200), record.Total)
	require.Equal(t, int64(1200), record.Balance)

	_, err = service.RecordPayment(context.Background(), record.ID, feedomain.RecordPaymentRequest{
		Amount: 100,
		Mode:   "upi",
	})
	require.NoError(t, err)

	_, err = service.UpdateFeeStructure(context.Background(), record.ID, 1500)
	require.ErrorIs(t, err, feedomain.ErrStructureLocked)
}

func TestUpdateDueDate(t *testing.T) {
	node := mustFeeNode(t)
	service, db, _ := setupFeeService(t, node)
	studentID := node.Generate()
	seedFeeStudent(t, db, studentID)

	record, err := service.CreateFeeRecord(context.Background(), feedomain.CreateFeeRecordRequest{
		StudentID: studentID,
		Year:      2024,
		Semester:  1,
		Total:     1000,
	})
	require.NoError(t, err)

	due := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	record, err = service.UpdateDueDate(context.Background(), record.ID, due)
	require.NoError(t, err)
	require.NotNil(t, record.DueDate)
	require.True(t, record.DueDate.Equal(due))

	_, err = service.UpdateDueDate(context.Background(), node.Generate(), due)
	require.ErrorIs(t, err, feedomain.ErrNotFound)
}

func TestRecordPaymentStampsInjectedClock(t *testing.T) {
	node := mustFeeNode(t)
	service, db, clk := setupFeeService(t, node)
	studentID := node.Generate()
	seedFeeStudent(t, db, studentID)

	record, err := service.CreateFeeRecord(context.Background(), feedomain.CreateFeeRecordRequest{
		StudentID: studentID,
		Year:      2024,
		Semester:  1,
		Total:     1000,
	})
	require.NoError(t, err)

	clk.Advance(48 * time.Hour)
	_, err = service.RecordPayment(context.Background(), record.ID, feedomain.RecordPaymentRequest{
		Amount: 400,
		Mode:   "upi",
	})
	require.NoError(t, err)

	final, err := service.GetFeeRecord(context.Background(), record.ID)
	require.NoError(t, err)
	require.True(t, final.UpdatedAt.Equal(clk.Now()),
		"expected updated_at %s, got %s", clk.Now(), final.UpdatedAt)
}

func mustFeeNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}
