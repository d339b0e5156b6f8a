package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ucu-dw/ucu-analytics-api/internal/service"
	appErrors "github.com/ucu-dw/ucu-analytics-api/pkg/errors"
	"github.com/ucu-dw/ucu-analytics-api/pkg/response"
)

// DashboardHandler serves the scoped analytics views.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Stats godoc
// @Summary Headline statistics
// @Description Aggregate student, course, grade, and payment figures within the caller's scope
// @Tags Dashboards
// @Produce json
// @Param faculty_id query string false "Faculty filter"
// @Param department_id query string false "Department filter"
// @Param semester_id query string false "Semester filter"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /dashboards/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.service.Stats(c.Request.Context(), claims.Bundle, scopeFilters(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// StudentsByDepartment godoc
// @Summary Students per department
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboards/students-by-department [get]
func (h *DashboardHandler) StudentsByDepartment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.service.StudentsByDepartment(c.Request.Context(), claims.Bundle, scopeFilters(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// GradeDistribution godoc
// @Summary Grade distribution
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboards/grade-distribution [get]
func (h *DashboardHandler) GradeDistribution(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.service.GradeDistribution(c.Request.Context(), claims.Bundle, scopeFilters(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// GradesOverTime godoc
// @Summary Grade trend per semester
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboards/grades-over-time [get]
func (h *DashboardHandler) GradesOverTime(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.service.GradesOverTime(c.Request.Context(), claims.Bundle, scopeFilters(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// AttendanceByCourse godoc
// @Summary Attendance rates per course
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboards/attendance-by-course [get]
func (h *DashboardHandler) AttendanceByCourse(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.service.AttendanceByCourse(c.Request.Context(), claims.Bundle, scopeFilters(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// AttendanceTrend godoc
// @Summary Attendance trend per semester
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboards/attendance-trends [get]
func (h *DashboardHandler) AttendanceTrend(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.service.AttendanceTrend(c.Request.Context(), claims.Bundle, scopeFilters(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// PaymentStatus godoc
// @Summary Payment totals per status
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboards/payment-status [get]
func (h *DashboardHandler) PaymentStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.service.PaymentStatus(c.Request.Context(), claims.Bundle, scopeFilters(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// PaymentTrend godoc
// @Summary Payment trend per semester
// @Tags Dashboards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboards/payment-trends [get]
func (h *DashboardHandler) PaymentTrend(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.service.PaymentTrend(c.Request.Context(), claims.Bundle, scopeFilters(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// TopStudents godoc
// @Summary Grade leaderboard
// @Tags Dashboards
// @Produce json
// @Param limit query int false "Number of students" default(10)
// @Success 200 {object} response.Envelope
// @Router /dashboards/top-students [get]
func (h *DashboardHandler) TopStudents(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	res, err := h.service.TopStudents(c.Request.Context(), claims.Bundle, scopeFilters(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
