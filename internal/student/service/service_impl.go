package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	studentdomain "github.com/smallbiznis/campus/internal/student/domain"
	"github.com/smallbiznis/campus/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) studentdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("student.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req studentdomain.CreateStudentRequest) (studentdomain.Student, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return studentdomain.Student{}, studentdomain.ErrInvalidName
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return studentdomain.Student{}, studentdomain.ErrInvalidEmail
	}
	branch := strings.ToUpper(strings.TrimSpace(req.Branch))
	if branch == "" {
		return studentdomain.Student{}, studentdomain.ErrInvalidBranch
	}

	student := studentdomain.Student{
		ID:      s.genID.Generate(),
		Name:    name,
		Email:   email,
		Branch:  branch,
		Program: strings.TrimSpace(req.Program),
		Year:    req.Year,
	}

	if err := s.db.WithContext(ctx).Create(&student).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return studentdomain.Student{}, studentdomain.ErrEmailExists
		}
		return studentdomain.Student{}, err
	}

	return student, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (studentdomain.Student, error) {
	var student studentdomain.Student
	if err := s.db.WithContext(ctx).First(&student, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return studentdomain.Student{}, studentdomain.ErrNotFound
		}
		return studentdomain.Student{}, err
	}
	return student, nil
}

func (s *Service) List(ctx context.Context, req studentdomain.ListStudentRequest) ([]studentdomain.Student, error) {
	query := s.db.WithContext(ctx).Model(&studentdomain.Student{})
	if branch := strings.ToUpper(strings.TrimSpace(req.Branch)); branch != "" {
		query = query.Where("branch = ?", branch)
	}
	if req.Year > 0 {
		query = query.Where("year = ?", req.Year)
	}

	var students []studentdomain.Student
	if err := query.Order("created_at DESC").Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}
