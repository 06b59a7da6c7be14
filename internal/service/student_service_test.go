package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuscore/campus-api/internal/models"
	appErrors "github.com/campuscore/campus-api/pkg/errors"
)

type mockStudentRepo struct {
	student   *models.Student
	createErr error
	deleteErr error
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	if m.student == nil {
		return nil, sql.ErrNoRows
	}
	return m.student, nil
}

func (m *mockStudentRepo) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	if m.student == nil || m.student.Email != email {
		return nil, sql.ErrNoRows
	}
	return m.student, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.createErr != nil {
		return m.createErr
	}
	student.ID = 42
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id int64) error {
	return m.deleteErr
}

func TestStudentServiceGetMissing(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, nil, nil)

	_, err := svc.Get(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", appErrors.FromError(err).Code)
}

func TestStudentServiceResolve(t *testing.T) {
	repo := &mockStudentRepo{student: &models.Student{ID: 7, Email: "ana@campus.edu", FullName: "Ana Silva"}}
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Resolve(context.Background(), "ana@campus.edu")
	require.NoError(t, err)
	assert.Equal(t, int64(7), student.ID)
}

func TestStudentServiceCreate(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, nil, nil)

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		FullName: "Ana Silva",
		Email:    "ana@campus.edu",
		Program:  "CS",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), student.ID)
	assert.True(t, student.Active)
}

func TestStudentServiceCreateValidation(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{FullName: "Ana Silva", Email: "not-an-email"})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", appErrors.FromError(err).Code)
}

func TestStudentServiceDeleteMissing(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{deleteErr: sql.ErrNoRows}, nil, nil)

	err := svc.Delete(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", appErrors.FromError(err).Code)
}
