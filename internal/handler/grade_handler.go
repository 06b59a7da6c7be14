package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campuscore/campus-api/internal/service"
	appErrors "github.com/campuscore/campus-api/pkg/errors"
	"github.com/campuscore/campus-api/pkg/response"
)

// GradeHandler exposes the grading workflow and its audit trail.
type GradeHandler struct {
	grading *service.GradingService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grading *service.GradingService) *GradeHandler {
	return &GradeHandler{grading: grading}
}

// Grade godoc
// @Summary Record an evaluation score for an approved enrollment
// @Tags Grading
// @Accept json
// @Produce json
// @Param studentId path int true "Student ID"
// @Param courseId path string true "Course ID"
// @Param payload body service.GradeRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{studentId}/{courseId}/score [put]
func (h *GradeHandler) Grade(c *gin.Context) {
	studentID, courseID, err := enrollmentKey(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	audit, err := h.grading.Grade(c.Request.Context(), studentID, courseID, req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, audit, nil)
}

// AuditTrail godoc
// @Summary Grade change log for a course, newest first
// @Tags Grading
// @Produce json
// @Param id path string true "Course ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/audit-log [get]
func (h *GradeHandler) AuditTrail(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, pagination, err := h.grading.AuditTrail(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// ScoreHistory godoc
// @Summary Chronological score chain for one enrollment
// @Tags Grading
// @Produce json
// @Param studentId path int true "Student ID"
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{studentId}/{courseId}/score-history [get]
func (h *GradeHandler) ScoreHistory(c *gin.Context) {
	studentID, courseID, err := enrollmentKey(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	entries, err := h.grading.ScoreHistory(c.Request.Context(), studentID, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
