package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ucu-dw/ucu-analytics-api/internal/middleware"
	"github.com/ucu-dw/ucu-analytics-api/internal/models"
	"github.com/ucu-dw/ucu-analytics-api/internal/scope"
	"github.com/ucu-dw/ucu-analytics-api/internal/service"
)

type fakeWarehouseRepo struct {
	lastPred scope.Predicate
}

func (f *fakeWarehouseRepo) StatsSummary(ctx context.Context, pred scope.Predicate) (*models.StatsSummary, error) {
	f.lastPred = pred
	if pred.IsEmpty() {
		return &models.StatsSummary{}, nil
	}
	return &models.StatsSummary{TotalStudents: 250}, nil
}

func (f *fakeWarehouseRepo) StudentsByDepartment(ctx context.Context, pred scope.Predicate) ([]models.StudentsByDepartment, error) {
	f.lastPred = pred
	return []models.StudentsByDepartment{}, nil
}

func (f *fakeWarehouseRepo) GradeDistribution(ctx context.Context, pred scope.Predicate) ([]models.GradeDistributionBin, error) {
	return []models.GradeDistributionBin{}, nil
}

func (f *fakeWarehouseRepo) GradesOverTime(ctx context.Context, pred scope.Predicate) ([]models.GradeTrendPoint, error) {
	return []models.GradeTrendPoint{}, nil
}

func (f *fakeWarehouseRepo) AttendanceByCourse(ctx context.Context, pred scope.Predicate) ([]models.AttendanceByCourse, error) {
	return []models.AttendanceByCourse{}, nil
}

func (f *fakeWarehouseRepo) AttendanceTrend(ctx context.Context, pred scope.Predicate) ([]models.AttendanceTrendPoint, error) {
	f.lastPred = pred
	return []models.AttendanceTrendPoint{}, nil
}

func (f *fakeWarehouseRepo) PaymentStatus(ctx context.Context, pred scope.Predicate) ([]models.PaymentStatusSummary, error) {
	return []models.PaymentStatusSummary{}, nil
}

func (f *fakeWarehouseRepo) PaymentTrend(ctx context.Context, pred scope.Predicate) ([]models.PaymentTrendPoint, error) {
	f.lastPred = pred
	return []models.PaymentTrendPoint{}, nil
}

func (f *fakeWarehouseRepo) TopStudents(ctx context.Context, pred scope.Predicate, limit int) ([]models.TopStudent, error) {
	return []models.TopStudent{}, nil
}

func (f *fakeWarehouseRepo) EnrollmentSummary(ctx context.Context, pred scope.Predicate) ([]models.EnrollmentSummary, error) {
	f.lastPred = pred
	return []models.EnrollmentSummary{}, nil
}

func newTestDashboardHandler(repo *fakeWarehouseRepo) *DashboardHandler {
	svc := service.NewDashboardService(repo, nil, nil, zap.NewNop(), service.DashboardConfig{})
	return NewDashboardHandler(svc)
}

func dashboardRequest(t *testing.T, handler func(*gin.Context), target string, claims *models.TokenClaims) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	handler(c)
	return rec
}

func analystClaims() *models.TokenClaims {
	return &models.TokenClaims{
		Bundle:    models.ClaimsBundle{Role: models.RoleAnalyst, PrincipalID: "u-1"},
		TokenType: models.TokenTypeAccess,
	}
}

func TestStatsEndpoint(t *testing.T) {
	repo := &fakeWarehouseRepo{}
	handler := newTestDashboardHandler(repo)

	rec := dashboardRequest(t, handler.Stats, "/dashboards/stats", analystClaims())
	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data models.StatsSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 250, envelope.Data.TotalStudents)
	assert.True(t, repo.lastPred.IsUnscoped())
}

func TestStatsEndpointWithoutClaims(t *testing.T) {
	handler := newTestDashboardHandler(&fakeWarehouseRepo{})

	rec := dashboardRequest(t, handler.Stats, "/dashboards/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatsEndpointInvalidFilter(t *testing.T) {
	handler := newTestDashboardHandler(&fakeWarehouseRepo{})

	rec := dashboardRequest(t, handler.Stats, "/dashboards/stats?faculty_id=abc", analystClaims())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "INVALID_FILTER", envelope.Error.Code)
}

func TestStatsEndpointAllSentinelIgnored(t *testing.T) {
	repo := &fakeWarehouseRepo{}
	handler := newTestDashboardHandler(repo)

	rec := dashboardRequest(t, handler.Stats, "/dashboards/stats?faculty_id=all", analystClaims())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, repo.lastPred.IsUnscoped())
}

func TestStatsEndpointScopedByFilter(t *testing.T) {
	repo := &fakeWarehouseRepo{}
	handler := newTestDashboardHandler(repo)

	rec := dashboardRequest(t, handler.Stats, "/dashboards/stats?faculty_id=4", analystClaims())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, repo.lastPred.IsUnscoped())
	assert.False(t, repo.lastPred.IsEmpty())
}

func TestAttendanceTrendEndpointScopedByFilter(t *testing.T) {
	repo := &fakeWarehouseRepo{}
	handler := newTestDashboardHandler(repo)

	rec := dashboardRequest(t, handler.AttendanceTrend, "/dashboards/attendance-trends?department_id=7", analystClaims())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, repo.lastPred.IsUnscoped())
	assert.False(t, repo.lastPred.IsEmpty())
}

func TestPaymentTrendEndpoint(t *testing.T) {
	repo := &fakeWarehouseRepo{}
	handler := newTestDashboardHandler(repo)

	rec := dashboardRequest(t, handler.PaymentTrend, "/dashboards/payment-trends", analystClaims())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, repo.lastPred.IsUnscoped())

	rec = dashboardRequest(t, handler.PaymentTrend, "/dashboards/payment-trends", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
