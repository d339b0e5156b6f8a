package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ucu-dw/ucu-analytics-api/internal/repository"
	"github.com/ucu-dw/ucu-analytics-api/internal/service"
	"github.com/ucu-dw/ucu-analytics-api/pkg/errors"
	"github.com/ucu-dw/ucu-analytics-api/pkg/response"
)

// AdminHandler exposes the remaining sysadmin endpoints: dimension lookups
// for attachment pickers, audit log review, and system status.
type AdminHandler struct {
	warehouse *repository.WarehouseRepository
	audit     *service.AuditService
	status    *service.StatusService
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(warehouse *repository.WarehouseRepository, audit *service.AuditService, status *service.StatusService) *AdminHandler {
	return &AdminHandler{warehouse: warehouse, audit: audit, status: status}
}

// Faculties godoc
// @Summary List faculties
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/faculties [get]
func (h *AdminHandler) Faculties(c *gin.Context) {
	faculties, err := h.warehouse.ListFaculties(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, faculties, nil)
}

// Departments godoc
// @Summary List departments
// @Tags Admin
// @Produce json
// @Param faculty_id query int false "Restrict to a faculty"
// @Success 200 {object} response.Envelope
// @Router /admin/departments [get]
func (h *AdminHandler) Departments(c *gin.Context) {
	var facultyID *int64
	if raw := c.Query("faculty_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, errors.Clone(errors.ErrValidation, "faculty_id must be numeric"))
			return
		}
		facultyID = &id
	}
	departments, err := h.warehouse.ListDepartments(c.Request.Context(), facultyID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}

// AuditLogs godoc
// @Summary Review audit log entries
// @Tags Admin
// @Produce json
// @Param username query string false "Username filter"
// @Param action query string false "Action filter"
// @Param status query string false "Outcome filter"
// @Param limit query int false "Maximum entries" default(100)
// @Success 200 {object} response.Envelope
// @Router /admin/audit-logs [get]
func (h *AdminHandler) AuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	filter := repository.AuditFilter{
		Username: c.Query("username"),
		Action:   c.Query("action"),
		Outcome:  c.Query("status"),
		Limit:    limit,
	}

	events, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// SystemStatus godoc
// @Summary System status
// @Description Dependency health, warehouse volume, and runtime metrics
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/system-status [get]
func (h *AdminHandler) SystemStatus(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.status.Status(c.Request.Context()), nil)
}
