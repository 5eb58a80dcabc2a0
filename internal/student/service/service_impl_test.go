package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	studentdomain "github.com/smallbiznis/campus/internal/student/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStudentService(t *testing.T) studentdomain.Service {
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
	if err := db.Exec(`CREATE TABLE students (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		branch TEXT NOT NULL,
		program TEXT NOT NULL,
		year BIGINT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create students: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_students_email ON students (email)`).Error; err != nil {
		t.Fatalf("create email index: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
}

func TestCreateStudent(t *testing.T) {
	service := setupStudentService(t)

	student, err := service.Create(context.Background(), studentdomain.CreateStudentRequest{
		Name:    "Asha Rao",
		Email:   "Asha.Rao@Campus.Local",
		Branch:  "cs",
		Program: "BTech",
		Year:    2,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if student.Email != "asha.rao@campus.local" {
		t.Fatalf("expected lowercased email, got %s", student.Email)
	}
	if student.Branch != "CS" {
		t.Fatalf("expected uppercased branch, got %s", student.Branch)
	}

	_, err = service.Create(context.Background(), studentdomain.CreateStudentRequest{
		Name:   "Other",
		Email:  "asha.rao@campus.local",
		Branch: "EE",
	})
	if !errors.Is(err, studentdomain.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestCreateStudentValidation(t *testing.T) {
	service := setupStudentService(t)

	cases := []struct {
		name string
		req  studentdomain.CreateStudentRequest
		want error
	}{
		{"empty name", studentdomain.CreateStudentRequest{Email: "a@b.c", Branch: "CS"}, studentdomain.ErrInvalidName},
		{"empty email", studentdomain.CreateStudentRequest{Name: "A", Branch: "CS"}, studentdomain.ErrInvalidEmail},
		{"bad email", studentdomain.CreateStudentRequest{Name: "A", Email: "nope", Branch: "CS"}, studentdomain.ErrInvalidEmail},
		{"empty branch", studentdomain.CreateStudentRequest{Name: "A", Email: "a@b.c"}, studentdomain.ErrInvalidBranch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.Create(context.Background(), tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestListStudentsFilters(t *testing.T) {
	service := setupStudentService(t)
	ctx := context.Background()

	for i, branch := range []string{"CS", "CS", "EE"} {
		if _, err := service.Create(ctx, studentdomain.CreateStudentRequest{
			Name:   fmt.Sprintf("Student %d", i),
			Email:  fmt.Sprintf("s%d@campus.local", i),
			Branch: branch,
			Year:   2,
		}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	students, err := service.List(ctx, studentdomain.ListStudentRequest{Branch: "cs"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(students) != 2 {
		t.Fatalf("expected 2 CS students, got %d", len(students))
	}

	students, err = service.List(ctx, studentdomain.ListStudentRequest{Year: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(students) != 0 {
		t.Fatalf("expected no year-3 students, got %d", len(students))
	}
}
