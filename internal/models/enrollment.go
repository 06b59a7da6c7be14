package models

import "time"

// EnrollmentStatus represents the lifecycle of an application.
type EnrollmentStatus string

// Status transitions: PENDING -> APPROVED, PENDING -> REJECTED. Approved
// and rejected are terminal; the only way out is row deletion.
const (
	EnrollmentStatusPending  EnrollmentStatus = "PENDING"
	EnrollmentStatusApproved EnrollmentStatus = "APPROVED"
	EnrollmentStatusRejected EnrollmentStatus = "REJECTED"
)

// Valid reports whether the status is one of the known states.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusPending, EnrollmentStatusApproved, EnrollmentStatusRejected:
		return true
	}
	return false
}

// HoldsSeat reports whether a row in this status counts against course
// capacity. Rejection released the seat, so rejected rows never do.
func (s EnrollmentStatus) HoldsSeat() bool {
	return s == EnrollmentStatusPending || s == EnrollmentStatusApproved
}

// Enrollment is one student's application to one course. The pair
// (StudentID, CourseID) is the identity; duplicates are rejected at
// admission time and backed by the table's primary key.
type Enrollment struct {
	StudentID       int64            `db:"student_id" json:"student_id"`
	CourseID        string           `db:"course_id" json:"course_id"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	EnrollDate      time.Time        `db:"enroll_date" json:"enroll_date"`
	EvaluationScore *int             `db:"evaluation_score" json:"evaluation_score,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseTitle string `db:"course_title" json:"course_title"`
}

// RosterEntry is a roster row ranked by evaluation score.
type RosterEntry struct {
	StudentID       int64            `db:"student_id" json:"student_id"`
	StudentName     string           `db:"student_name" json:"student_name"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	EvaluationScore *int             `db:"evaluation_score" json:"evaluation_score,omitempty"`
	Rank            int              `json:"rank,omitempty"`
	Percentile      float64          `json:"percentile,omitempty"`
}

// CounterDrift reports a course whose derived counter diverged from the
// true non-rejected row count.
type CounterDrift struct {
	CourseID string `db:"course_id" json:"course_id"`
	Recorded int    `db:"recorded" json:"recorded"`
	Actual   int    `db:"actual" json:"actual"`
}
