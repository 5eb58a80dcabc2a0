package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	admissiondomain "github.com/smallbiznis/campus/internal/admission/domain"
	"github.com/smallbiznis/campus/internal/config"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAdmissionService(t *testing.T, node *snowflake.Node) (admissiondomain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	prepareAdmissionSchema(t, db)

	service := NewService(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Policy: config.StaticPolicyHolder(config.DefaultCampusPolicy()),
	})

	return service, db
}

func prepareAdmissionSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Exec(`CREATE TABLE application_sequences (
		prefix TEXT NOT NULL,
		year BIGINT NOT NULL,
		last_value BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (prefix, year)
	)`).Error; err != nil {
		t.Fatalf("create application_sequences: %v", err)
	}
	if err := db.Exec(`CREATE TABLE admission_applications (
		id BIGINT PRIMARY KEY,
		application_number TEXT NOT NULL,
		applicant_name TEXT NOT NULL,
		email TEXT NOT NULL,
		program TEXT NOT NULL,
		year BIGINT NOT NULL,
		status TEXT NOT NULL,
		payload JSON,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create admission_applications: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_admission_applications_number
		ON admission_applications (application_number)`).Error; err != nil {
		t.Fatalf("create application number index: %v", err)
	}
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func TestNextApplicationNumberSequential(t *testing.T) {
	service, _ := setupAdmissionService(t, mustNode(t))
	ctx := context.Background()
	scope := admissiondomain.Scope{Prefix: "APP", Year: 2024}

	for i := 1; i <= 5; i++ {
		number, err := service.NextApplicationNumber(ctx, scope)
		if err != nil {
			t.Fatalf("next number %d: %v", i, err)
		}
		want := fmt.Sprintf("APP2024%04d", i)
		if number != want {
			t.Fatalf("expected %s, got %s", want, number)
		}
	}
}

func TestNextApplicationNumberScopesIndependent(t *testing.T) {
	service, _ := setupAdmissionService(t, mustNode(t))
	ctx := context.Background()

	first, err := service.NextApplicationNumber(ctx, admissiondomain.Scope{Prefix: "APP", Year: 2024})
	if err != nil {
		t.Fatalf("next number 2024: %v", err)
	}
	second, err := service.NextApplicationNumber(ctx, admissiondomain.Scope{Prefix: "APP", Year: 2025})
	if err != nil {
		t.Fatalf("next number 2025: %v", err)
	}

	if first != "APP20240001" {
		t.Fatalf("expected APP20240001, got %s", first)
	}
	if second != "APP20250001" {
		t.Fatalf("expected APP20250001, got %s", second)
	}
}

func TestNextApplicationNumberInvalidScope(t *testing.T) {
	service, _ := setupAdmissionService(t, mustNode(t))

	if _, err := service.NextApplicationNumber(context.Background(), admissiondomain.Scope{Prefix: "", Year: 2024}); err != admissiondomain.ErrInvalidScope {
		t.Fatalf("expected ErrInvalidScope, got %v", err)
	}
	if _, err := service.NextApplicationNumber(context.Background(), admissiondomain.Scope{Prefix: "APP", Year: 0}); err != admissiondomain.ErrInvalidScope {
		t.Fatalf("expected ErrInvalidScope, got %v", err)
	}
}

func TestNextApplicationNumberConcurrentUnique(t *testing.T) {
	service, _ := setupAdmissionService(t, mustNode(t))
	scope := admissiondomain.Scope{Prefix: "APP", Year: 2024}

	const workers = 10
	var wg sync.WaitGroup
	results := make([]string, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = service.NextApplicationNumber(context.Background(), scope)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if seen[results[i]] {
			t.Fatalf("duplicate application number %s", results[i])
		}
		seen[results[i]] = true
	}

	// All issued numbers form a gap-free run.
	for i := 1; i <= workers; i++ {
		want := fmt.Sprintf("APP2024%04d", i)
		if !seen[want] {
			t.Fatalf("missing application number %s", want)
		}
	}
}

func TestSubmitApplicationAssignsNumbers(t *testing.T) {
	service, db := setupAdmissionService(t, mustNode(t))
	ctx := context.Background()

	first, err := service.SubmitApplication(ctx, admissiondomain.SubmitApplicationRequest{
		ApplicantName: "Asha Rao",
		Email:         "asha@campus.local",
		Program:       "BTech",
		Year:          2024,
	})
	if err != nil {
		t.Fatalf("submit first: %v", err)
	}
	second, err := service.SubmitApplication(ctx, admissiondomain.SubmitApplicationRequest{
		ApplicantName: "Rafi Pratama",
		Email:         "rafi@campus.local",
		Program:       "BTech",
		Year:          2024,
	})
	if err != nil {
		t.Fatalf("submit second: %v", err)
	}

	if first.ApplicationNumber != "APP20240001" || second.ApplicationNumber != "APP20240002" {
		t.Fatalf("expected consecutive numbers, got %s and %s",
			first.ApplicationNumber, second.ApplicationNumber)
	}
	if first.Status != admissiondomain.ApplicationStatusSubmitted {
		t.Fatalf("expected submitted status, got %s", first.Status)
	}

	var count int
	if err := db.Raw(`SELECT COUNT(1) FROM admission_applications`).Scan(&count).Error; err != nil {
		t.Fatalf("count applications: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 applications, got %d", count)
	}
}

func TestSubmitApplicationInvalidApplicant(t *testing.T) {
	service, _ := setupAdmissionService(t, mustNode(t))

	_, err := service.SubmitApplication(context.Background(), admissiondomain.SubmitApplicationRequest{
		ApplicantName: "",
		Email:         "someone@campus.local",
		Program:       "BTech",
		Year:          2024,
	})
	if err != admissiondomain.ErrInvalidApplicant {
		t.Fatalf("expected ErrInvalidApplicant, got %v", err)
	}
}

func TestGetApplicationNotFound(t *testing.T) {
	service, _ := setupAdmissionService(t, mustNode(t))

	if _, err := service.GetApplication(context.Background(), snowflake.ID(12345)); err != admissiondomain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
