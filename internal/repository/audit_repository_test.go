package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuditRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
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

func TestAuditRepositoryListByCourse(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "old_score", "new_score", "changed_by", "changed_at"}).
		AddRow("audit-2", int64(7), "CS101", 60, 95, "instructor-3", time.Now().UTC()).
		AddRow("audit-1", int64(7), "CS101", nil, 60, "instructor-3", time.Now().UTC().Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("FROM grade_audit_log WHERE course_id = $1")).
		WithArgs("CS101").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM grade_audit_log WHERE course_id = $1")).
		WithArgs("CS101").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	entries, total, err := repo.ListByCourse(context.Background(), "CS101", 50, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, total)
	assert.Nil(t, entries[1].OldScore)
	require.NotNil(t, entries[0].OldScore)
	assert.Equal(t, 60, *entries[0].OldScore)
}

func TestAuditRepositoryListByEnrollment(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "old_score", "new_score", "changed_by", "changed_at"}).
		AddRow("audit-1", int64(7), "CS101", nil, 60, "instructor-3", time.Now().UTC().Add(-time.Hour)).
		AddRow("audit-2", int64(7), "CS101", 60, 95, "instructor-3", time.Now().UTC())

	mock.ExpectQuery(regexp.QuoteMeta("WHERE student_id = $1 AND course_id = $2")).
		WithArgs(int64(7), "CS101").
		WillReturnRows(rows)

	entries, err := repo.ListByEnrollment(context.Background(), 7, "CS101")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 60, entries[0].NewScore)
	assert.Equal(t, 95, entries[1].NewScore)
}
