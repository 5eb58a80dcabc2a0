package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/campus/internal/clock"
	examdomain "github.com/smallbiznis/campus/internal/exam/domain"
	obsmetrics "github.com/smallbiznis/campus/internal/observability/metrics"
	studentdomain "github.com/smallbiznis/campus/internal/student/domain"
	"github.com/smallbiznis/campus/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

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

func NewService(p Params) examdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("exam.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateExam(ctx context.Context, req examdomain.CreateExamRequest) (examdomain.Exam, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" || strings.TrimSpace(req.Name) == "" {
		return examdomain.Exam{}, examdomain.ErrInvalidExam
	}
	if len(req.EligibleBranches) == 0 || len(req.Subjects) == 0 {
		return examdomain.Exam{}, examdomain.ErrInvalidExam
	}
	if req.FeePerSubject < 0 {
		return examdomain.Exam{}, examdomain.ErrInvalidExam
	}
	if !req.RegistrationEnd.After(req.RegistrationStart) {
		return examdomain.Exam{}, examdomain.ErrInvalidExam
	}

	exam := examdomain.Exam{
		ID:                s.genID.Generate(),
		Code:              code,
		Name:              strings.TrimSpace(req.Name),
		EligibleBranches:  normalizeCodes(req.EligibleBranches),
		Subjects:          normalizeCodes(req.Subjects),
		FeePerSubject:     req.FeePerSubject,
		RegistrationStart: req.RegistrationStart.UTC(),
		RegistrationEnd:   req.RegistrationEnd.UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&exam).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return examdomain.Exam{}, fmt.Errorf("%w: code %s already exists", examdomain.ErrInvalidExam, code)
		}
		return examdomain.Exam{}, err
	}

	return exam, nil
}

func (s *Service) GetExam(ctx context.Context, id snowflake.ID) (examdomain.Exam, error) {
	var exam examdomain.Exam
	if err := s.db.WithContext(ctx).First(&exam, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return examdomain.Exam{}, examdomain.ErrExamNotFound
		}
		return examdomain.Exam{}, err
	}
	return exam, nil
}

// Register runs the eligibility checks in a fixed order, then inserts the
// registration. A partial unique index over (exam_id, student_id) rows in
// state registered arbitrates races: the losing insert affects zero rows.
func (s *Service) Register(ctx context.Context, req examdomain.RegisterRequest) (examdomain.Registration, error) {
	exam, err := s.GetExam(ctx, req.ExamID)
	if err != nil {
		return examdomain.Registration{}, err
	}

	now := s.clock.Now()
	if now.Before(exam.RegistrationStart) {
		return examdomain.Registration{}, fmt.Errorf("%w: opens at %s",
			examdomain.ErrRegistrationNotOpen, exam.RegistrationStart.Format(time.RFC3339))
	}
	if now.After(exam.RegistrationEnd) {
		return examdomain.Registration{}, fmt.Errorf("%w: closed at %s",
			examdomain.ErrRegistrationClosed, exam.RegistrationEnd.Format(time.RFC3339))
	}

	var student studentdomain.Student
	if err := s.db.WithContext(ctx).First(&student, "id = ?", req.StudentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return examdomain.Registration{}, examdomain.ErrStudentNotFound
		}
		return examdomain.Registration{}, err
	}
	if !exam.EligibleFor(student.Branch) {
		return examdomain.Registration{}, fmt.Errorf("%w: branch %s not in %v",
			examdomain.ErrNotEligible, student.Branch, []string(exam.EligibleBranches))
	}

	subjects := normalizeCodes(req.Subjects)
	if len(subjects) == 0 {
		return examdomain.Registration{}, fmt.Errorf("%w: no subjects selected", examdomain.ErrInvalidSubjects)
	}
	var unknown []string
	for _, code := range subjects {
		if !exam.HasSubject(code) {
			unknown = append(unknown, code)
		}
	}
	if len(unknown) > 0 {
		return examdomain.Registration{}, fmt.Errorf("%w: %s", examdomain.ErrInvalidSubjects, strings.Join(unknown, ", "))
	}

	registration := examdomain.Registration{
		ID:                 s.genID.Generate(),
		ExamID:             exam.ID,
		StudentID:          student.ID,
		RegisteredSubjects: datatypes.NewJSONSlice(subjects),
		TotalFee:           int64(len(subjects)) * exam.FeePerSubject,
		Status:             examdomain.RegistrationStatusRegistered,
		PaymentStatus:      examdomain.PaymentStatusPending,
		CreatedAt:          now.UTC(),
		UpdatedAt:          now.UTC(),
	}

	res := s.db.WithContext(ctx).Exec(
		`INSERT INTO exam_registrations
		(id, exam_id, student_id, registered_subjects, total_fee, status, payment_status, created_at, updated_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM exam_registrations
			WHERE exam_id = ? AND student_id = ? AND status = ?
		)`,
		registration.ID, registration.ExamID, registration.StudentID,
		registration.RegisteredSubjects, registration.TotalFee,
		string(registration.Status), string(registration.PaymentStatus),
		registration.CreatedAt, registration.UpdatedAt,
		exam.ID, student.ID, string(examdomain.RegistrationStatusRegistered),
	)
	if res.Error != nil {
		if db.IsDuplicateKeyErr(res.Error) {
			return examdomain.Registration{}, examdomain.ErrAlreadyRegistered
		}
		return examdomain.Registration{}, res.Error
	}
	if res.RowsAffected == 0 {
		return examdomain.Registration{}, examdomain.ErrAlreadyRegistered
	}

	s.obsMetrics.RecordRegistration(ctx, "registered")
	s.log.Info("exam registration created",
		zap.String("exam_id", exam.ID.String()),
		zap.String("student_id", student.ID.String()),
		zap.Int("subjects", len(subjects)),
		zap.Int64("total_fee", registration.TotalFee),
	)

	return registration, nil
}

func (s *Service) Cancel(ctx context.Context, registrationID snowflake.ID) (examdomain.Registration, error) {
	// The status guard makes cancellation idempotent-safe under races: of
	// two concurrent cancels only one flips the row.
	res := s.db.WithContext(ctx).Exec(
		`UPDATE exam_registrations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(examdomain.RegistrationStatusCancelled), s.clock.Now().UTC(),
		registrationID, string(examdomain.RegistrationStatusRegistered),
	)
	if res.Error != nil {
		return examdomain.Registration{}, res.Error
	}

	var registration examdomain.Registration
	if err := s.db.WithContext(ctx).First(&registration, "id = ?", registrationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return examdomain.Registration{}, examdomain.ErrRegistrationNotFound
		}
		return examdomain.Registration{}, err
	}
	if res.RowsAffected == 0 {
		return examdomain.Registration{}, examdomain.ErrAlreadyCancelled
	}

	s.log.Info("exam registration cancelled", zap.String("registration_id", registrationID.String()))
	return registration, nil
}

func (s *Service) ListRegistrations(ctx context.Context, examID snowflake.ID) ([]examdomain.Registration, error) {
	if _, err := s.GetExam(ctx, examID); err != nil {
		return nil, err
	}

	var registrations []examdomain.Registration
	if err := s.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("created_at ASC, id ASC").
		Find(&registrations).Error; err != nil {
		return nil, err
	}
	return registrations, nil
}

func normalizeCodes(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, code := range in {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
