package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuscore/campus-api/internal/models"
)

// Sentinel errors surfaced by the transactional enrollment operations.
// Services translate these into the typed API error taxonomy.
var (
	ErrCourseNotFound      = errors.New("course not found")
	ErrStudentNotFound     = errors.New("student not found")
	ErrCourseFull          = errors.New("course is at capacity")
	ErrDuplicateEnrollment = errors.New("enrollment already exists")
	ErrStatusConflict      = errors.New("enrollment is not pending")
)

const uniqueViolation = "23505"

// EnrollmentRepository owns the enrollment rows and the transactional
// protocol that keeps courses.current_enrollment consistent with them.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// adjustSeatCount is the single counter-maintenance path. Every mutation
// that creates or releases a seat reservation must go through it, inside
// the mutation's own transaction. Never duplicate this update inline.
func adjustSeatCount(ctx context.Context, tx *sqlx.Tx, courseID string, delta int) error {
	const query = `UPDATE courses SET current_enrollment = current_enrollment + $2 WHERE id = $1`
	res, err := tx.ExecContext(ctx, query, courseID, delta)
	if err != nil {
		return fmt.Errorf("adjust seat count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust seat count result: %w", err)
	}
	if affected != 1 {
		return fmt.Errorf("adjust seat count: course %s missing", courseID)
	}
	return nil
}

// appendGradeAudit writes one append-only audit row inside the caller's
// transaction so the trail can never diverge from the score history.
func appendGradeAudit(ctx context.Context, tx *sqlx.Tx, entry *models.GradeAudit) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	const query = `INSERT INTO grade_audit_log (id, student_id, course_id, old_score, new_score, changed_by, changed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, query, entry.ID, entry.StudentID, entry.CourseID, entry.OldScore, entry.NewScore, entry.ChangedBy, entry.ChangedAt); err != nil {
		return fmt.Errorf("append grade audit: %w", err)
	}
	return nil
}

// Apply admits a student into a course without ever exceeding capacity.
// The course row lock serializes concurrent admissions for the same
// course; the counter and capacity are re-read under the lock, never from
// a stale pre-lock read. On any failure the whole transaction rolls back.
func (r *EnrollmentRepository) Apply(ctx context.Context, studentID int64, courseID string) (enrollment *models.Enrollment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var course struct {
		MaxCapacity       int `db:"max_capacity"`
		CurrentEnrollment int `db:"current_enrollment"`
	}
	const lockQuery = `SELECT max_capacity, current_enrollment FROM courses WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &course, lockQuery, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("lock course: %w", err)
	}
	if course.CurrentEnrollment >= course.MaxCapacity {
		return nil, ErrCourseFull
	}

	// Duplicate check covers every status, including rejected rows; an
	// admin has to remove a rejected application before the student can
	// re-apply.
	var exists int
	const dupQuery = `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1`
	switch err = tx.GetContext(ctx, &exists, dupQuery, studentID, courseID); err {
	case nil:
		err = ErrDuplicateEnrollment
		return nil, err
	case sql.ErrNoRows:
		err = nil
	default:
		return nil, fmt.Errorf("check duplicate enrollment: %w", err)
	}

	const studentQuery = `SELECT 1 FROM students WHERE id = $1`
	if err = tx.GetContext(ctx, &exists, studentQuery, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("check student: %w", err)
	}

	row := &models.Enrollment{
		StudentID:  studentID,
		CourseID:   courseID,
		Status:     models.EnrollmentStatusPending,
		EnrollDate: time.Now().UTC(),
	}
	const insertQuery = `INSERT INTO enrollments (student_id, course_id, status, enroll_date)
        VALUES ($1, $2, $3, $4)`
	if _, err = tx.ExecContext(ctx, insertQuery, row.StudentID, row.CourseID, row.Status, row.EnrollDate); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			err = ErrDuplicateEnrollment
		} else {
			err = fmt.Errorf("insert enrollment: %w", err)
		}
		return nil, err
	}

	// Seat reservation happens at application time, not at approval.
	if err = adjustSeatCount(ctx, tx, courseID, +1); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment: %w", err)
	}
	return row, nil
}

// Transition moves a pending enrollment to approved or rejected. The
// status is re-checked under the enrollment row lock so concurrent
// instructor actions cannot half-apply. Rejection releases the reserved
// seat in the same transaction; approval leaves the counter alone since
// the seat was reserved at application time.
//
// Apply never locks an existing enrollment row, so taking the course row
// lock after the enrollment row here cannot form a cycle with it.
func (r *EnrollmentRepository) Transition(ctx context.Context, studentID int64, courseID string, next models.EnrollmentStatus) (enrollment *models.Enrollment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Enrollment
	const lockQuery = `SELECT student_id, course_id, status, enroll_date, evaluation_score
        FROM enrollments WHERE student_id = $1 AND course_id = $2 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, studentID, courseID); err != nil {
		return nil, err
	}
	if current.Status != models.EnrollmentStatusPending {
		return nil, ErrStatusConflict
	}

	const updateQuery = `UPDATE enrollments SET status = $3 WHERE student_id = $1 AND course_id = $2`
	if _, err = tx.ExecContext(ctx, updateQuery, studentID, courseID, next); err != nil {
		return nil, fmt.Errorf("update enrollment status: %w", err)
	}

	if next == models.EnrollmentStatusRejected {
		if err = adjustSeatCount(ctx, tx, courseID, -1); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	current.Status = next
	return &current, nil
}

// SetScore records a grade for an approved enrollment and appends exactly
// one audit row in the same transaction. A missing or non-approved row
// surfaces as sql.ErrNoRows.
func (r *EnrollmentRepository) SetScore(ctx context.Context, studentID int64, courseID string, score int, changedBy string) (audit *models.GradeAudit, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin grading transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Enrollment
	const lockQuery = `SELECT student_id, course_id, status, enroll_date, evaluation_score
        FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = $3 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, studentID, courseID, models.EnrollmentStatusApproved); err != nil {
		return nil, err
	}

	const updateQuery = `UPDATE enrollments SET evaluation_score = $3 WHERE student_id = $1 AND course_id = $2`
	if _, err = tx.ExecContext(ctx, updateQuery, studentID, courseID, score); err != nil {
		return nil, fmt.Errorf("update evaluation score: %w", err)
	}

	entry := &models.GradeAudit{
		StudentID: studentID,
		CourseID:  courseID,
		OldScore:  current.EvaluationScore,
		NewScore:  score,
		ChangedBy: changedBy,
	}
	if err = appendGradeAudit(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit grading: %w", err)
	}
	return entry, nil
}

// Delete removes an enrollment row. The seat is released only when the
// row still held one; rejected rows already gave theirs back at rejection
// time, so deleting them must not decrement the counter again.
func (r *EnrollmentRepository) Delete(ctx context.Context, studentID int64, courseID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status models.EnrollmentStatus
	const lockQuery = `SELECT status FROM enrollments WHERE student_id = $1 AND course_id = $2 FOR UPDATE`
	if err = tx.GetContext(ctx, &status, lockQuery, studentID, courseID); err != nil {
		return err
	}

	const deleteQuery = `DELETE FROM enrollments WHERE student_id = $1 AND course_id = $2`
	if _, err = tx.ExecContext(ctx, deleteQuery, studentID, courseID); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}

	if status.HoldsSeat() {
		if err = adjustSeatCount(ctx, tx, courseID, -1); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// FindByID returns one enrollment row.
func (r *EnrollmentRepository) FindByID(ctx context.Context, studentID int64, courseID string) (*models.Enrollment, error) {
	const query = `SELECT student_id, course_id, status, enroll_date, evaluation_score
        FROM enrollments WHERE student_id = $1 AND course_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByStudent returns a student's enrollments with course context.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.student_id, e.course_id, e.status, e.enroll_date, e.evaluation_score,
        s.full_name AS student_name, c.title AS course_title
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1
        ORDER BY e.enroll_date DESC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// Roster returns every enrollment for a course ordered by score.
func (r *EnrollmentRepository) Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.student_id, s.full_name AS student_name, e.status, e.evaluation_score
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        WHERE e.course_id = $1
        ORDER BY e.evaluation_score DESC NULLS LAST, s.full_name ASC`
	var entries []models.RosterEntry
	if err := r.db.SelectContext(ctx, &entries, query, courseID); err != nil {
		return nil, fmt.Errorf("list course roster: %w", err)
	}
	return entries, nil
}

// Reconcile recomputes current_enrollment from the non-rejected row count
// for every drifted course and repairs it. An out-of-band maintenance
// operation, never part of the admission path.
func (r *EnrollmentRepository) Reconcile(ctx context.Context) (drifts []models.CounterDrift, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reconcile transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const detectQuery = `SELECT c.id AS course_id, c.current_enrollment AS recorded, COALESCE(cnt.actual, 0) AS actual
        FROM courses c
        LEFT JOIN (
            SELECT course_id, COUNT(*) AS actual FROM enrollments WHERE status <> 'REJECTED' GROUP BY course_id
        ) cnt ON cnt.course_id = c.id
        WHERE c.current_enrollment <> COALESCE(cnt.actual, 0)
        FOR UPDATE OF c`
	if err = tx.SelectContext(ctx, &drifts, detectQuery); err != nil {
		return nil, fmt.Errorf("detect counter drift: %w", err)
	}

	const repairQuery = `UPDATE courses SET current_enrollment = $2 WHERE id = $1`
	for _, drift := range drifts {
		if _, err = tx.ExecContext(ctx, repairQuery, drift.CourseID, drift.Actual); err != nil {
			return nil, fmt.Errorf("repair counter drift: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reconcile: %w", err)
	}
	return drifts, nil
}
