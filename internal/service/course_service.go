package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuscore/campus-api/internal/models"
	"github.com/campuscore/campus-api/internal/repository"
	"github.com/campuscore/campus-api/pkg/config"
	appErrors "github.com/campuscore/campus-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	UpdateCapacity(ctx context.Context, id string, maxCapacity int) (*models.Course, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateCourseRequest describes an admin catalog addition.
type CreateCourseRequest struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Credits     int    `json:"credits" validate:"required,gte=1"`
	Description string `json:"description"`
	MaxCapacity int    `json:"max_capacity" validate:"required,gte=1"`
}

// UpdateCapacityRequest describes an admin capacity edit.
type UpdateCapacityRequest struct {
	MaxCapacity int `json:"max_capacity" validate:"required,gte=1"`
}

type cachedCatalogPage struct {
	Courses []models.Course `json:"courses"`
	Total   int             `json:"total"`
}

// CourseService serves the catalog read side and admin catalog edits.
// Listings may be served from cache and show slightly stale seat counts;
// course detail always reads live.
type CourseService struct {
	repo      courseRepository
	cache     catalogCache
	cfg       config.CatalogConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, cache catalogCache, cfg config.CatalogConfig, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, cache: cache, cfg: cfg, validator: validate, logger: logger}
}

// List returns catalog entries with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	key := fmt.Sprintf("catalog:list:q=%s:p=%d:s=%d", filter.Query, page, size)
	if s.cacheEnabled() {
		var cached cachedCatalogPage
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached.Courses, &models.Pagination{Page: page, PageSize: size, TotalCount: cached.Total}, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, key, cachedCatalogPage{Courses: courses, Total: total}, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one course with its live seat availability.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create adds a catalog entry. Admin action.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		ID:          req.ID,
		Title:       req.Title,
		Credits:     req.Credits,
		Description: req.Description,
		MaxCapacity: req.MaxCapacity,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if errors.Is(err, repository.ErrDuplicateCourse) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course id already taken")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

// UpdateCapacity changes the seat ceiling. Admin action; shrinking below
// the seats already reserved is refused.
func (s *CourseService) UpdateCapacity(ctx context.Context, id string, req UpdateCapacityRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid capacity payload")
	}

	course, err := s.repo.UpdateCapacity(ctx, id, req.MaxCapacity)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCourseNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		case errors.Is(err, repository.ErrCapacityBelowEnrollment):
			return nil, appErrors.Clone(appErrors.ErrValidation, "max_capacity below current enrollment")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update capacity")
		}
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

func (s *CourseService) cacheEnabled() bool {
	return s.cache != nil && s.cfg.CacheEnabled
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "catalog:list:*"); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}
