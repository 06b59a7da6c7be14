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

func newCourseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
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

func courseRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "credits", "description", "max_capacity", "current_enrollment", "created_at"}).
		AddRow("CS101", "Intro to Computing", 4, "Fundamentals", 30, 12, time.Now().UTC())
}

func TestCourseRepositoryListWithQuery(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE title ILIKE $1 OR id ILIKE $1 ORDER BY id ASC")).
		WithArgs("%intro%").
		WillReturnRows(courseRow())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses WHERE title ILIKE $1 OR id ILIKE $1")).
		WithArgs("%intro%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	courses, total, err := repo.List(context.Background(), models.CourseFilter{Query: "intro", Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "CS101", courses[0].ID)
}

func TestCourseRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1")).
		WithArgs("NOPE").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "NOPE")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCourseRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO courses")).
		WithArgs("CS101", "Intro to Computing", 4, "Fundamentals", 30, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	course := &models.Course{
		ID:          "CS101",
		Title:       "Intro to Computing",
		Credits:     4,
		Description: "Fundamentals",
		MaxCapacity: 30,
	}
	require.NoError(t, repo.Create(context.Background(), course))
	assert.False(t, course.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateCapacity(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1 FOR UPDATE")).
		WithArgs("CS101").
		WillReturnRows(courseRow())
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET max_capacity = $2 WHERE id = $1")).
		WithArgs("CS101", 40).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	course, err := repo.UpdateCapacity(context.Background(), "CS101", 40)
	require.NoError(t, err)
	assert.Equal(t, 40, course.MaxCapacity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateCapacityBelowEnrollment(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1 FOR UPDATE")).
		WithArgs("CS101").
		WillReturnRows(courseRow())
	mock.ExpectRollback()

	// 12 seats are reserved; shrinking the ceiling to 10 must be refused.
	_, err := repo.UpdateCapacity(context.Background(), "CS101", 10)
	require.ErrorIs(t, err, ErrCapacityBelowEnrollment)
	require.NoError(t, mock.ExpectationsWereMet())
}
