package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ucu-dw/ucu-analytics-api/internal/models"
	"github.com/ucu-dw/ucu-analytics-api/internal/scope"
	appErrors "github.com/ucu-dw/ucu-analytics-api/pkg/errors"
)

type mockWarehouseRepo struct {
	statsCalls       int
	departmentsCalls int
	topCalls         int
	departments      []models.StudentsByDepartment
}

func (m *mockWarehouseRepo) StatsSummary(ctx context.Context, pred scope.Predicate) (*models.StatsSummary, error) {
	m.statsCalls++
	if pred.IsEmpty() {
		return &models.StatsSummary{}, nil
	}
	return &models.StatsSummary{TotalStudents: 100}, nil
}

func (m *mockWarehouseRepo) StudentsByDepartment(ctx context.Context, pred scope.Predicate) ([]models.StudentsByDepartment, error) {
	m.departmentsCalls++
	if pred.IsEmpty() {
		return []models.StudentsByDepartment{}, nil
	}
	return m.departments, nil
}

func (m *mockWarehouseRepo) GradeDistribution(ctx context.Context, pred scope.Predicate) ([]models.GradeDistributionBin, error) {
	return []models.GradeDistributionBin{}, nil
}

func (m *mockWarehouseRepo) GradesOverTime(ctx context.Context, pred scope.Predicate) ([]models.GradeTrendPoint, error) {
	return []models.GradeTrendPoint{}, nil
}

func (m *mockWarehouseRepo) AttendanceByCourse(ctx context.Context, pred scope.Predicate) ([]models.AttendanceByCourse, error) {
	return []models.AttendanceByCourse{}, nil
}

func (m *mockWarehouseRepo) AttendanceTrend(ctx context.Context, pred scope.Predicate) ([]models.AttendanceTrendPoint, error) {
	if pred.IsEmpty() {
		return []models.AttendanceTrendPoint{}, nil
	}
	return []models.AttendanceTrendPoint{{SemesterID: 1, SemesterName: "2024 S1", SessionCount: 20, AttendanceRate: 87.5}}, nil
}

func (m *mockWarehouseRepo) PaymentStatus(ctx context.Context, pred scope.Predicate) ([]models.PaymentStatusSummary, error) {
	return []models.PaymentStatusSummary{}, nil
}

func (m *mockWarehouseRepo) PaymentTrend(ctx context.Context, pred scope.Predicate) ([]models.PaymentTrendPoint, error) {
	if pred.IsEmpty() {
		return []models.PaymentTrendPoint{}, nil
	}
	return []models.PaymentTrendPoint{{SemesterID: 1, SemesterName: "2024 S1", CompletedAmount: 1500, CompletedCount: 3, PendingCount: 1}}, nil
}

func (m *mockWarehouseRepo) TopStudents(ctx context.Context, pred scope.Predicate, limit int) ([]models.TopStudent, error) {
	m.topCalls++
	return []models.TopStudent{}, nil
}

func (m *mockWarehouseRepo) EnrollmentSummary(ctx context.Context, pred scope.Predicate) ([]models.EnrollmentSummary, error) {
	return []models.EnrollmentSummary{{CourseCode: "CSC101", CourseName: "Intro", EnrollmentCount: 42}}, nil
}

type mockDashboardCache struct {
	store map[string][]byte
	sets  int
	gets  int
}

func newMockDashboardCache() *mockDashboardCache {
	return &mockDashboardCache{store: make(map[string][]byte)}
}

func (m *mockDashboardCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets++
	raw, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockDashboardCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets++
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = raw
	return nil
}

func newTestDashboardService(repo *mockWarehouseRepo, cache *mockDashboardCache) *DashboardService {
	var cacheSvc dashboardCache
	if cache != nil {
		cacheSvc = cache
	}
	return NewDashboardService(repo, cacheSvc, nil, zap.NewNop(), DashboardConfig{
		CacheEnabled: cache != nil,
		CacheTTL:     time.Minute,
	})
}

func analystBundle() models.ClaimsBundle {
	return models.ClaimsBundle{Role: models.RoleAnalyst, PrincipalID: "u-1"}
}

func TestStatsCachesByFingerprint(t *testing.T) {
	repo := &mockWarehouseRepo{}
	cache := newMockDashboardCache()
	svc := newTestDashboardService(repo, cache)

	first, err := svc.Stats(context.Background(), analystBundle(), nil)
	require.NoError(t, err)
	assert.Equal(t, 100, first.TotalStudents)
	assert.Equal(t, 1, repo.statsCalls)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.Stats(context.Background(), analystBundle(), nil)
	require.NoError(t, err)
	assert.Equal(t, 100, second.TotalStudents)
	// Second call is served from cache.
	assert.Equal(t, 1, repo.statsCalls)
}

func TestStatsDifferentScopesDifferentKeys(t *testing.T) {
	repo := &mockWarehouseRepo{}
	cache := newMockDashboardCache()
	svc := newTestDashboardService(repo, cache)

	_, err := svc.Stats(context.Background(), analystBundle(), nil)
	require.NoError(t, err)

	facultyID := int64(4)
	dean := models.ClaimsBundle{Role: models.RoleDean, PrincipalID: "u-2", FacultyID: &facultyID}
	_, err = svc.Stats(context.Background(), dean, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, repo.statsCalls)
	assert.Len(t, cache.store, 2)
}

func TestEmptyScopeBypassesCacheAndWarehouse(t *testing.T) {
	repo := &mockWarehouseRepo{}
	cache := newMockDashboardCache()
	svc := newTestDashboardService(repo, cache)

	// A dean with no faculty attachment resolves to an empty scope.
	dean := models.ClaimsBundle{Role: models.RoleDean, PrincipalID: "u-3"}
	rows, err := svc.StudentsByDepartment(context.Background(), dean, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, cache.gets)
	assert.Zero(t, cache.sets)
}

func TestDashboardInvalidFilterSurfaces(t *testing.T) {
	svc := newTestDashboardService(&mockWarehouseRepo{}, nil)

	_, err := svc.Stats(context.Background(), analystBundle(), map[string]string{"faculty_id": "1; DROP TABLE dim_student"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidFilter.Code, appErr.Code)
}

func TestAttendanceTrendScoped(t *testing.T) {
	repo := &mockWarehouseRepo{}
	cache := newMockDashboardCache()
	svc := newTestDashboardService(repo, cache)

	points, err := svc.AttendanceTrend(context.Background(), analystBundle(), nil)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "2024 S1", points[0].SemesterName)
	assert.Equal(t, 87.5, points[0].AttendanceRate)

	// A student with no identity resolves to an empty scope and an empty trend.
	empty, err := svc.AttendanceTrend(context.Background(), models.ClaimsBundle{Role: models.RoleStudent}, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPaymentTrendCached(t *testing.T) {
	repo := &mockWarehouseRepo{}
	cache := newMockDashboardCache()
	svc := newTestDashboardService(repo, cache)

	first, err := svc.PaymentTrend(context.Background(), analystBundle(), nil)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1500.0, first[0].CompletedAmount)

	second, err := svc.PaymentTrend(context.Background(), analystBundle(), nil)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 3, second[0].CompletedCount)
	assert.Equal(t, 1, cache.sets)
}

func TestTopStudentsLimitNormalizedInCacheKey(t *testing.T) {
	repo := &mockWarehouseRepo{}
	cache := newMockDashboardCache()
	svc := newTestDashboardService(repo, cache)

	// Zero, negative, and oversized limits all normalize to the default, so
	// they must share one cache entry and one warehouse fetch.
	for _, limit := range []int{0, -5, 10, 500} {
		_, err := svc.TopStudents(context.Background(), analystBundle(), nil, limit)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, repo.topCalls)
	assert.Len(t, cache.store, 1)

	_, err := svc.TopStudents(context.Background(), analystBundle(), nil, 25)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.topCalls)
	assert.Len(t, cache.store, 2)
}

func TestStudentsByDepartmentListCaching(t *testing.T) {
	repo := &mockWarehouseRepo{departments: []models.StudentsByDepartment{
		{DepartmentID: 7, DepartmentName: "Computing", FacultyName: "Science", StudentCount: 120},
	}}
	cache := newMockDashboardCache()
	svc := newTestDashboardService(repo, cache)

	first, err := svc.StudentsByDepartment(context.Background(), analystBundle(), nil)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.StudentsByDepartment(context.Background(), analystBundle(), nil)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "Computing", second[0].DepartmentName)
	assert.Equal(t, 1, repo.departmentsCalls)
}
