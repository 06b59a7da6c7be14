package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuscore/campus-api/internal/models"
)

func newStudentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func TestStudentRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "full_name", "email", "program", "active", "created_at"}).
		AddRow(int64(7), "Ana Silva", "ana@campus.edu", "CS", true, time.Now().UTC())

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE email = $1")).
		WithArgs("ana@campus.edu").
		WillReturnRows(rows)

	student, err := repo.FindByEmail(context.Background(), "ana@campus.edu")
	require.NoError(t, err)
	assert.Equal(t, int64(7), student.ID)
	assert.Equal(t, "Ana Silva", student.FullName)
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO students")).
		WithArgs("Ana Silva", "ana@campus.edu", "CS", true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	student := &models.Student{FullName: "Ana Silva", Email: "ana@campus.edu", Program: "CS", Active: true}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.Equal(t, int64(42), student.ID)
}

func TestStudentRepositoryDeleteCascades(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	held := sqlmock.NewRows([]string{"course_id", "status"}).
		AddRow("CS101", models.EnrollmentStatusApproved).
		AddRow("MA201", models.EnrollmentStatusPending).
		AddRow("FI301", models.EnrollmentStatusRejected)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT course_id, status FROM enrollments WHERE student_id = $1 FOR UPDATE")).
		WithArgs(int64(7)).
		WillReturnRows(held)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE student_id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	// Only the approved and pending rows still held seats.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET current_enrollment = current_enrollment + $2")).
		WithArgs("CS101", -1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET current_enrollment = current_enrollment + $2")).
		WithArgs("MA201", -1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT course_id, status FROM enrollments")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "status"}))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments")).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students")).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 99)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
