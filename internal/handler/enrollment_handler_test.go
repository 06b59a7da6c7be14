package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuscore/campus-api/internal/models"
	"github.com/campuscore/campus-api/internal/repository"
	"github.com/campuscore/campus-api/internal/service"
)

type enrollmentRepoStub struct {
	applyErr error
}

func (s *enrollmentRepoStub) Apply(ctx context.Context, studentID int64, courseID string) (*models.Enrollment, error) {
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	return &models.Enrollment{StudentID: studentID, CourseID: courseID, Status: models.EnrollmentStatusPending}, nil
}

func (s *enrollmentRepoStub) Transition(ctx context.Context, studentID int64, courseID string, next models.EnrollmentStatus) (*models.Enrollment, error) {
	return &models.Enrollment{StudentID: studentID, CourseID: courseID, Status: next}, nil
}

func (s *enrollmentRepoStub) Delete(ctx context.Context, studentID int64, courseID string) error {
	return nil
}

func (s *enrollmentRepoStub) FindByID(ctx context.Context, studentID int64, courseID string) (*models.Enrollment, error) {
	return nil, sql.ErrNoRows
}

func (s *enrollmentRepoStub) ListByStudent(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

func (s *enrollmentRepoStub) Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	return nil, nil
}

func (s *enrollmentRepoStub) Reconcile(ctx context.Context) ([]models.CounterDrift, error) {
	return nil, nil
}

func newEnrollmentHandlerTest(repo *enrollmentRepoStub) *EnrollmentHandler {
	return NewEnrollmentHandler(service.NewEnrollmentService(repo, nil, nil, nil))
}

func TestEnrollmentHandlerApply(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandlerTest(&enrollmentRepoStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := bytes.NewBufferString(`{"student_id": 7, "course_id": "CS101"}`)
	req, _ := http.NewRequest(http.MethodPost, "/enrollments", body)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Apply(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"PENDING"`)
}

func TestEnrollmentHandlerApplyCapacityExceeded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandlerTest(&enrollmentRepoStub{applyErr: repository.ErrCourseFull})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := bytes.NewBufferString(`{"student_id": 7, "course_id": "CS101"}`)
	req, _ := http.NewRequest(http.MethodPost, "/enrollments", body)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Apply(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CAPACITY_EXCEEDED")
}

func TestEnrollmentHandlerApplyBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandlerTest(&enrollmentRepoStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/enrollments", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Apply(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerGetInvalidStudentID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandlerTest(&enrollmentRepoStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments/abc/CS101", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "studentId", Value: "abc"}, {Key: "courseId", Value: "CS101"}}

	handler.Get(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerGetMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newEnrollmentHandlerTest(&enrollmentRepoStub{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments/7/CS101", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "studentId", Value: "7"}, {Key: "courseId", Value: "CS101"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
