package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateExamRequest struct {
	Code              string
	Name              string
	EligibleBranches  []string
	Subjects          []string
	FeePerSubject     int64
	RegistrationStart time.Time
	RegistrationEnd   time.Time
}

type RegisterRequest struct {
	ExamID    snowflake.ID
	StudentID snowflake.ID
	Subjects  []string
}

type Service interface {
	CreateExam(ctx context.Context, req CreateExamRequest) (Exam, error)
	GetExam(ctx context.Context, id snowflake.ID) (Exam, error)
	// Register admits a student into the exam's subject list. The
	// uniqueness check and the insert are atomic: of two racing calls for
	// the same (exam, student) pair exactly one succeeds.
	Register(ctx context.Context, req RegisterRequest) (Registration, error)
	Cancel(ctx context.Context, registrationID snowflake.ID) (Registration, error)
	ListRegistrations(ctx context.Context, examID snowflake.ID) ([]Registration, error)
}
