package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ucu-dw/ucu-analytics-api/internal/service"
	appErrors "github.com/ucu-dw/ucu-analytics-api/pkg/errors"
	"github.com/ucu-dw/ucu-analytics-api/pkg/response"
)

// ReportHandler serves report views and downloadable exports.
type ReportHandler struct {
	dashboards *service.DashboardService
	exports    *service.ExportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(dashboards *service.DashboardService, exports *service.ExportService) *ReportHandler {
	return &ReportHandler{dashboards: dashboards, exports: exports}
}

// EnrollmentSummary godoc
// @Summary Enrollment summary report
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/enrollment-summary [get]
func (h *ReportHandler) EnrollmentSummary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.dashboards.EnrollmentSummary(c.Request.Context(), claims.Bundle, scopeFilters(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// ExportEnrollmentSummary godoc
// @Summary Download the enrollment summary report
// @Tags Reports
// @Produce text/csv,application/pdf
// @Param format query string false "Export format (csv or pdf)" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /reports/enrollment-summary/export [get]
func (h *ReportHandler) ExportEnrollmentSummary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := c.DefaultQuery("format", "csv")

	result, err := h.exports.EnrollmentSummary(c.Request.Context(), claims.Bundle, scopeFilters(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
