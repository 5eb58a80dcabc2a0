package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	admissiondomain "github.com/smallbiznis/campus/internal/admission/domain"
	"github.com/smallbiznis/campus/internal/config"
	obsmetrics "github.com/smallbiznis/campus/internal/observability/metrics"
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
	Policy     *config.PolicyHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	policy     *config.PolicyHolder
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) admissiondomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("admission.service"),
		genID:      p.GenID,
		policy:     p.Policy,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) NextApplicationNumber(ctx context.Context, scope admissiondomain.Scope) (string, error) {
	if err := validateScope(scope); err != nil {
		return "", err
	}

	var number string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := s.bumpSequence(ctx, tx, scope)
		if err != nil {
			return err
		}
		number = s.formatNumber(scope, seq)
		return nil
	})
	if err != nil {
		return "", err
	}

	s.obsMetrics.RecordApplicationIssued(ctx, scope.String())
	return number, nil
}

func (s *Service) SubmitApplication(ctx context.Context, req admissiondomain.SubmitApplicationRequest) (admissiondomain.Application, error) {
	name := strings.TrimSpace(req.ApplicantName)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return admissiondomain.Application{}, admissiondomain.ErrInvalidApplicant
	}

	scope := admissiondomain.Scope{
		Prefix: s.policy.Get().ApplicationPrefix,
		Year:   req.Year,
	}
	if err := validateScope(scope); err != nil {
		return admissiondomain.Application{}, err
	}

	application := admissiondomain.Application{
		ID:            s.genID.Generate(),
		ApplicantName: name,
		Email:         email,
		Program:       strings.TrimSpace(req.Program),
		Year:          req.Year,
		Status:        admissiondomain.ApplicationStatusSubmitted,
		Payload:       datatypes.JSONMap(req.Payload),
	}

	// Number issuance and the application insert commit together, so a
	// failed submission never burns a sequence value.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := s.bumpSequence(ctx, tx, scope)
		if err != nil {
			return err
		}
		application.ApplicationNumber = s.formatNumber(scope, seq)
		return tx.WithContext(ctx).Create(&application).Error
	})
	if err != nil {
		return admissiondomain.Application{}, err
	}

	s.obsMetrics.RecordApplicationIssued(ctx, scope.String())
	s.log.Info("application submitted",
		zap.String("application_number", application.ApplicationNumber),
		zap.String("application_id", application.ID.String()),
	)
	return application, nil
}

func (s *Service) GetApplication(ctx context.Context, id snowflake.ID) (admissiondomain.Application, error) {
	var application admissiondomain.Application
	if err := s.db.WithContext(ctx).First(&application, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return admissiondomain.Application{}, admissiondomain.ErrNotFound
		}
		return admissiondomain.Application{}, err
	}
	return application, nil
}

func (s *Service) ListApplications(ctx context.Context, req admissiondomain.ListApplicationRequest) ([]admissiondomain.Application, error) {
	query := s.db.WithContext(ctx).Model(&admissiondomain.Application{})
	if req.Year > 0 {
		query = query.Where("year = ?", req.Year)
	}

	var applications []admissiondomain.Application
	if err := query.Order("application_number ASC").Find(&applications).Error; err != nil {
		return nil, err
	}
	return applications, nil
}

// bumpSequence moves the scope counter forward by one and returns the new
// value. The increment is a guarded single statement, so concurrent callers
// serialize on the counter row and every committed transaction observes a
// distinct value.
func (s *Service) bumpSequence(ctx context.Context, tx *gorm.DB, scope admissiondomain.Scope) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE application_sequences SET last_value = last_value + 1 WHERE prefix = ? AND year = ?`,
		scope.Prefix, scope.Year,
	)
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected == 0 {
		ins := tx.WithContext(ctx).Exec(
			`INSERT INTO application_sequences (prefix, year, last_value) VALUES (?, ?, 1)
			ON CONFLICT (prefix, year) DO NOTHING`,
			scope.Prefix, scope.Year,
		)
		if ins.Error != nil {
			return 0, ins.Error
		}
		if ins.RowsAffected > 0 {
			return 1, nil
		}

		// Lost the insert race; the row exists now, bump it.
		s.obsMetrics.RecordConflictRetry(ctx, "admission.sequence")
		res = tx.WithContext(ctx).Exec(
			`UPDATE application_sequences SET last_value = last_value + 1 WHERE prefix = ? AND year = ?`,
			scope.Prefix, scope.Year,
		)
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 0 {
			return 0, admissiondomain.ErrConflict
		}
	}

	var seq int64
	if err := tx.WithContext(ctx).
		Raw(`SELECT last_value FROM application_sequences WHERE prefix = ? AND year = ?`, scope.Prefix, scope.Year).
		Scan(&seq).Error; err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *Service) formatNumber(scope admissiondomain.Scope, seq int64) string {
	pad := s.policy.Get().SequencePadWidth
	if pad <= 0 {
		pad = 4
	}
	return fmt.Sprintf("%s%d%0*d", scope.Prefix, scope.Year, pad, seq)
}

func validateScope(scope admissiondomain.Scope) error {
	if strings.TrimSpace(scope.Prefix) == "" || scope.Year <= 0 {
		return admissiondomain.ErrInvalidScope
	}
	return nil
}
