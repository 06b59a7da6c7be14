package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campuscore/campus-api/internal/service"
	appErrors "github.com/campuscore/campus-api/pkg/errors"
	"github.com/campuscore/campus-api/pkg/response"
)

// EnrollmentHandler exposes the enrollment workflow endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

func enrollmentKey(c *gin.Context) (int64, string, error) {
	studentID, err := strconv.ParseInt(c.Param("studentId"), 10, 64)
	if err != nil {
		return 0, "", appErrors.Clone(appErrors.ErrValidation, "invalid student id")
	}
	return studentID, c.Param("courseId"), nil
}

// Apply godoc
// @Summary Apply for a course enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.ApplyRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Apply(c *gin.Context) {
	var req service.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Apply(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Transition godoc
// @Summary Approve or reject a pending application
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param studentId path int true "Student ID"
// @Param courseId path string true "Course ID"
// @Param payload body service.TransitionRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{studentId}/{courseId}/status [put]
func (h *EnrollmentHandler) Transition(c *gin.Context) {
	studentID, courseID, err := enrollmentKey(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Transition(c.Request.Context(), studentID, courseID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Get godoc
// @Summary Fetch one enrollment
// @Tags Enrollments
// @Produce json
// @Param studentId path int true "Student ID"
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{studentId}/{courseId} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	studentID, courseID, err := enrollmentKey(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	enrollment, err := h.enrollments.Get(c.Request.Context(), studentID, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Delete godoc
// @Summary Remove an enrollment
// @Tags Enrollments
// @Produce json
// @Param studentId path int true "Student ID"
// @Param courseId path string true "Course ID"
// @Success 204
// @Router /enrollments/{studentId}/{courseId} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	studentID, courseID, err := enrollmentKey(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.enrollments.Remove(c.Request.Context(), studentID, courseID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reconcile godoc
// @Summary Repair enrollment counter drift
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/reconcile-enrollments [post]
func (h *EnrollmentHandler) Reconcile(c *gin.Context) {
	drifts, err := h.enrollments.Reconcile(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, drifts, nil, map[string]interface{}{"repaired": len(drifts)})
}
