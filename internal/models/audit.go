package models

import "time"

// GradeAudit is one append-only record of a grade change. Rows are written
// in the same transaction as the score update and are never modified or
// deleted by the application.
type GradeAudit struct {
	ID        string    `db:"id" json:"id"`
	StudentID int64     `db:"student_id" json:"student_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	OldScore  *int      `db:"old_score" json:"old_score"`
	NewScore  int       `db:"new_score" json:"new_score"`
	ChangedBy string    `db:"changed_by" json:"changed_by"`
	ChangedAt time.Time `db:"changed_at" json:"changed_at"`
}
