package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campuscore/campus-api/internal/models"
)

// StudentRepository handles student profile persistence.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	const query = `SELECT id, full_name, email, program, active, created_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByEmail resolves the student profile linked to an authenticated user.
func (r *StudentRepository) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	const query = `SELECT id, full_name, email, program, active, created_at FROM students WHERE email = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, email); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create persists a student profile.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.CreatedAt.IsZero() {
		student.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO students (full_name, email, program, active, created_at)
        VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, student.FullName, student.Email, student.Program, student.Active, student.CreatedAt).Scan(&student.ID); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Delete removes a student and cascades over their enrollments, releasing
// every seat the rows still held. Enrollment rows are locked first so a
// concurrent transition cannot slip between the count and the delete.
func (r *StudentRepository) Delete(ctx context.Context, id int64) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var held []struct {
		CourseID string                  `db:"course_id"`
		Status   models.EnrollmentStatus `db:"status"`
	}
	const lockQuery = `SELECT course_id, status FROM enrollments WHERE student_id = $1 FOR UPDATE`
	if err = tx.SelectContext(ctx, &held, lockQuery, id); err != nil {
		return fmt.Errorf("lock student enrollments: %w", err)
	}

	const deleteEnrollments = `DELETE FROM enrollments WHERE student_id = $1`
	if _, err = tx.ExecContext(ctx, deleteEnrollments, id); err != nil {
		return fmt.Errorf("cascade enrollments: %w", err)
	}

	for _, row := range held {
		if !row.Status.HoldsSeat() {
			continue
		}
		if err = adjustSeatCount(ctx, tx, row.CourseID, -1); err != nil {
			return err
		}
	}

	const deleteStudent = `DELETE FROM students WHERE id = $1`
	var res sql.Result
	if res, err = tx.ExecContext(ctx, deleteStudent, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete student result: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit student delete: %w", err)
	}
	return nil
}
