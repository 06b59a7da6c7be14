package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuscore/campus-api/internal/models"
)

var (
	// ErrCapacityBelowEnrollment is returned when an admin tries to shrink
	// a course below the seats already reserved.
	ErrCapacityBelowEnrollment = errors.New("capacity below current enrollment")
	// ErrDuplicateCourse is returned when a course ID is already taken.
	ErrDuplicateCourse = errors.New("course already exists")
)

// CourseRepository handles catalog persistence.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns catalog entries matching the filter.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := `FROM courses`
	clause := ""
	var args []interface{}
	if filter.Query != "" {
		clause = " WHERE title ILIKE $1 OR id ILIKE $1"
		args = append(args, "%"+filter.Query+"%")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, title, credits, description, max_capacity, current_enrollment, created_at
        %s ORDER BY id ASC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, credits, description, max_capacity, current_enrollment, created_at
        FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create persists a new catalog entry.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO courses (id, title, credits, description, max_capacity, current_enrollment, created_at)
        VALUES (:id, :title, :credits, :description, :max_capacity, 0, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateCourse
		}
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// UpdateCapacity changes max_capacity under the course row lock. Shrinking
// below the seats already reserved is refused; the ceiling is enforced at
// admission and must stay above the live counter.
func (r *CourseRepository) UpdateCapacity(ctx context.Context, id string, maxCapacity int) (course *models.Course, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin capacity transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Course
	const lockQuery = `SELECT id, title, credits, description, max_capacity, current_enrollment, created_at
        FROM courses WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("lock course: %w", err)
	}
	if maxCapacity < current.CurrentEnrollment {
		return nil, ErrCapacityBelowEnrollment
	}

	const updateQuery = `UPDATE courses SET max_capacity = $2 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, id, maxCapacity); err != nil {
		return nil, fmt.Errorf("update capacity: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit capacity: %w", err)
	}
	current.MaxCapacity = maxCapacity
	return &current, nil
}
