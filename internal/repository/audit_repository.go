package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuscore/campus-api/internal/models"
)

// AuditRepository is the read side of the append-only grade audit log.
// Writes happen exclusively through the grading transaction.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// ListByCourse returns the audit trail for a course, newest first.
func (r *AuditRepository) ListByCourse(ctx context.Context, courseID string, limit, offset int) ([]models.GradeAudit, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT id, student_id, course_id, old_score, new_score, changed_by, changed_at
        FROM grade_audit_log WHERE course_id = $1
        ORDER BY changed_at DESC LIMIT %d OFFSET %d`, limit, offset)
	var entries []models.GradeAudit
	if err := r.db.SelectContext(ctx, &entries, query, courseID); err != nil {
		return nil, 0, fmt.Errorf("list audit log: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM grade_audit_log WHERE course_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, courseID); err != nil {
		return nil, 0, fmt.Errorf("count audit log: %w", err)
	}
	return entries, total, nil
}

// ListByEnrollment returns the score history for one enrollment in
// chronological order.
func (r *AuditRepository) ListByEnrollment(ctx context.Context, studentID int64, courseID string) ([]models.GradeAudit, error) {
	const query = `SELECT id, student_id, course_id, old_score, new_score, changed_by, changed_at
        FROM grade_audit_log WHERE student_id = $1 AND course_id = $2
        ORDER BY changed_at ASC`
	var entries []models.GradeAudit
	if err := r.db.SelectContext(ctx, &entries, query, studentID, courseID); err != nil {
		return nil, fmt.Errorf("list enrollment audit: %w", err)
	}
	return entries, nil
}
