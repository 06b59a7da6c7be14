package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuscore/campus-api/internal/models"
	"github.com/campuscore/campus-api/internal/repository"
	appErrors "github.com/campuscore/campus-api/pkg/errors"
)

type enrollmentRepository interface {
	Apply(ctx context.Context, studentID int64, courseID string) (*models.Enrollment, error)
	Transition(ctx context.Context, studentID int64, courseID string, next models.EnrollmentStatus) (*models.Enrollment, error)
	Delete(ctx context.Context, studentID int64, courseID string) error
	FindByID(ctx context.Context, studentID int64, courseID string) (*models.Enrollment, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error)
	Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error)
	Reconcile(ctx context.Context) ([]models.CounterDrift, error)
}

type outcomeRecorder interface {
	RecordEnrollmentOutcome(outcome string)
}

// Enrollment outcome labels reported to metrics.
const (
	outcomeAccepted         = "accepted"
	outcomeCapacityExceeded = "capacity_exceeded"
	outcomeDuplicate        = "duplicate"
)

// ApplyRequest describes a course application payload.
type ApplyRequest struct {
	StudentID int64  `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
}

// TransitionRequest describes an approval/rejection payload.
type TransitionRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required,oneof=APPROVED REJECTED"`
}

// EnrollmentService orchestrates the admission and review workflows.
type EnrollmentService struct {
	repo      enrollmentRepository
	metrics   outcomeRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, metrics outcomeRecorder, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, metrics: metrics, validator: validate, logger: logger}
}

// Apply admits a student into a course, reserving a seat at application
// time. Concurrent callers racing for the last seat serialize on the
// course row lock inside the repository; the loser gets CapacityExceeded.
func (s *EnrollmentService) Apply(ctx context.Context, req ApplyRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	enrollment, err := s.repo.Apply(ctx, req.StudentID, req.CourseID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCourseNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		case errors.Is(err, repository.ErrStudentNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		case errors.Is(err, repository.ErrCourseFull):
			s.recordOutcome(outcomeCapacityExceeded)
			return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "course is at capacity")
		case errors.Is(err, repository.ErrDuplicateEnrollment):
			s.recordOutcome(outcomeDuplicate)
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already applied to this course")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply for enrollment")
		}
	}

	s.recordOutcome(outcomeAccepted)
	s.logger.Info("enrollment created",
		zap.Int64("student_id", enrollment.StudentID),
		zap.String("course_id", enrollment.CourseID))
	return enrollment, nil
}

// Transition approves or rejects a pending application. Approval keeps
// the counter untouched; the seat was already reserved when the student
// applied. Rejection gives the seat back.
func (s *EnrollmentService) Transition(ctx context.Context, studentID int64, courseID string, req TransitionRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}

	enrollment, err := s.repo.Transition(ctx, studentID, courseID, req.Status)
	if err != nil {
		switch {
		case err == sql.ErrNoRows:
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		case errors.Is(err, repository.ErrStatusConflict):
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only pending enrollments can be reviewed")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition enrollment")
		}
	}

	s.logger.Info("enrollment reviewed",
		zap.Int64("student_id", studentID),
		zap.String("course_id", courseID),
		zap.String("status", string(req.Status)))
	return enrollment, nil
}

// Remove deletes an enrollment row, releasing its seat when one was held.
func (s *EnrollmentService) Remove(ctx context.Context, studentID int64, courseID string) error {
	if err := s.repo.Delete(ctx, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	return nil
}

// Get returns one enrollment.
func (s *EnrollmentService) Get(ctx context.Context, studentID int64, courseID string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, studentID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// ListForStudent returns a student's enrollments with course context.
func (s *EnrollmentService) ListForStudent(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// Roster returns a course roster with rank and percentile computed over
// the scored entries.
func (s *EnrollmentService) Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	entries, err := s.repo.Roster(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	scored := 0
	for _, e := range entries {
		if e.EvaluationScore != nil {
			scored++
		}
	}
	rank := 0
	for i := range entries {
		if entries[i].EvaluationScore == nil {
			continue
		}
		rank++
		entries[i].Rank = rank
		entries[i].Percentile = math.Round(float64(scored-rank)/float64(scored)*1000) / 10
	}
	return entries, nil
}

// Reconcile repairs counter drift across all courses and reports what it
// found. Maintenance tooling, exposed to admins only.
func (s *EnrollmentService) Reconcile(ctx context.Context) ([]models.CounterDrift, error) {
	drifts, err := s.repo.Reconcile(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reconcile enrollment counters")
	}
	if len(drifts) > 0 {
		s.logger.Warn("enrollment counter drift repaired", zap.Int("courses", len(drifts)))
	}
	return drifts, nil
}

func (s *EnrollmentService) recordOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordEnrollmentOutcome(outcome)
	}
}
