package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuscore/campus-api/internal/models"
	appErrors "github.com/campuscore/campus-api/pkg/errors"
)

type gradingRepository interface {
	SetScore(ctx context.Context, studentID int64, courseID string, score int, changedBy string) (*models.GradeAudit, error)
}

type auditReader interface {
	ListByCourse(ctx context.Context, courseID string, limit, offset int) ([]models.GradeAudit, int, error)
	ListByEnrollment(ctx context.Context, studentID int64, courseID string) ([]models.GradeAudit, error)
}

// GradeRequest carries a score mutation. The pointer keeps a legitimate
// zero score distinguishable from an absent field.
type GradeRequest struct {
	Score *int `json:"score" validate:"required,gte=0,lte=100"`
}

// GradingService owns instructor-initiated score mutations and the read
// side of their audit trail.
type GradingService struct {
	repo      gradingRepository
	audits    auditReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradingService constructs GradingService.
func NewGradingService(repo gradingRepository, audits auditReader, validate *validator.Validate, logger *zap.Logger) *GradingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingService{repo: repo, audits: audits, validator: validate, logger: logger}
}

// Grade records a new evaluation score for an approved enrollment. The
// score update and its audit row commit together or not at all.
func (s *GradingService) Grade(ctx context.Context, studentID int64, courseID string, req GradeRequest, actor string) (*models.GradeAudit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "score must be between 0 and 100")
	}

	audit, err := s.repo.SetScore(ctx, studentID, courseID, *req.Score, actor)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approved enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record grade")
	}

	s.logger.Info("grade recorded",
		zap.Int64("student_id", studentID),
		zap.String("course_id", courseID),
		zap.String("changed_by", actor))
	return audit, nil
}

// AuditTrail returns the grade change log for a course, newest first.
func (s *GradingService) AuditTrail(ctx context.Context, courseID string, limit, offset int) ([]models.GradeAudit, *models.Pagination, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	entries, total, err := s.audits.ListByCourse(ctx, courseID, limit, offset)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit log")
	}
	page := offset/limit + 1
	pagination := &models.Pagination{Page: page, PageSize: limit, TotalCount: total}
	return entries, pagination, nil
}

// ScoreHistory returns the chronological score chain for one enrollment.
func (s *GradingService) ScoreHistory(ctx context.Context, studentID int64, courseID string) ([]models.GradeAudit, error) {
	entries, err := s.audits.ListByEnrollment(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list score history")
	}
	return entries, nil
}
