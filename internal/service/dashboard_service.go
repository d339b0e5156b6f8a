package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ucu-dw/ucu-analytics-api/internal/models"
	"github.com/ucu-dw/ucu-analytics-api/internal/scope"
	appErrors "github.com/ucu-dw/ucu-analytics-api/pkg/errors"
)

type dashboardWarehouseRepository interface {
	StatsSummary(ctx context.Context, pred scope.Predicate) (*models.StatsSummary, error)
	StudentsByDepartment(ctx context.Context, pred scope.Predicate) ([]models.StudentsByDepartment, error)
	GradeDistribution(ctx context.Context, pred scope.Predicate) ([]models.GradeDistributionBin, error)
	GradesOverTime(ctx context.Context, pred scope.Predicate) ([]models.GradeTrendPoint, error)
	AttendanceByCourse(ctx context.Context, pred scope.Predicate) ([]models.AttendanceByCourse, error)
	AttendanceTrend(ctx context.Context, pred scope.Predicate) ([]models.AttendanceTrendPoint, error)
	PaymentStatus(ctx context.Context, pred scope.Predicate) ([]models.PaymentStatusSummary, error)
	PaymentTrend(ctx context.Context, pred scope.Predicate) ([]models.PaymentTrendPoint, error)
	TopStudents(ctx context.Context, pred scope.Predicate, limit int) ([]models.TopStudent, error)
	EnrollmentSummary(ctx context.Context, pred scope.Predicate) ([]models.EnrollmentSummary, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type cacheMetricsRecorder interface {
	RecordCacheOperation(hit bool)
	RecordScopeDecision(role, outcome string)
}

// DashboardConfig tunes dashboard caching.
type DashboardConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// DashboardService serves scoped analytics views. Every entry point derives
// the caller's predicate from the claims bundle and the request filters; the
// warehouse is only reached when the predicate is satisfiable.
type DashboardService struct {
	repo    dashboardWarehouseRepository
	cache   dashboardCache
	metrics cacheMetricsRecorder
	logger  *zap.Logger
	config  DashboardConfig
}

// NewDashboardService constructs a DashboardService instance.
func NewDashboardService(repo dashboardWarehouseRepository, cache dashboardCache, metrics cacheMetricsRecorder, logger *zap.Logger, config DashboardConfig) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	return &DashboardService{repo: repo, cache: cache, metrics: metrics, logger: logger, config: config}
}

// scopeFor computes the caller's predicate once per request.
func (s *DashboardService) scopeFor(bundle models.ClaimsBundle, filters map[string]string) (scope.Predicate, error) {
	pred, err := scope.Compute(bundle, filters)
	if err != nil {
		return scope.Predicate{}, err
	}
	if s.metrics != nil {
		outcome := "scoped"
		switch {
		case pred.IsEmpty():
			outcome = "empty"
		case pred.IsUnscoped():
			outcome = "unscoped"
		}
		s.metrics.RecordScopeDecision(string(bundle.Role), outcome)
	}
	return pred, nil
}

// cached runs fetch behind the dashboard cache. Empty predicates bypass the
// cache entirely: the result is constant and the fetch is free.
func (s *DashboardService) cached(ctx context.Context, template string, pred scope.Predicate, dest interface{}, fetch func() (interface{}, error)) (interface{}, error) {
	if !s.config.CacheEnabled || s.cache == nil || pred.IsEmpty() {
		return fetch()
	}

	key := fmt.Sprintf("dash:%s:%s", template, pred.Fingerprint())
	if err := s.cache.Get(ctx, key, dest); err == nil {
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(true)
		}
		return dest, nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(false)
	}

	result, err := fetch()
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, result, s.config.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
	return result, nil
}

// Stats returns headline aggregates for the caller's scope.
func (s *DashboardService) Stats(ctx context.Context, bundle models.ClaimsBundle, filters map[string]string) (*models.StatsSummary, error) {
	pred, err := s.scopeFor(bundle, filters)
	if err != nil {
		return nil, err
	}
	var cachedValue models.StatsSummary
	result, err := s.cached(ctx, "stats", pred, &cachedValue, func() (interface{}, error) {
		return s.repo.StatsSummary(ctx, pred)
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return result.(*models.StatsSummary), nil
}

// StudentsByDepartment returns per-department student counts in scope.
func (s *DashboardService) StudentsByDepartment(ctx context.Context, bundle models.ClaimsBundle, filters map[string]string) ([]models.StudentsByDepartment, error) {
	pred, err := s.scopeFor(bundle, filters)
	if err != nil {
		return nil, err
	}
	var cachedValue []models.StudentsByDepartment
	result, err := s.cached(ctx, "students_by_department", pred, &cachedValue, func() (interface{}, error) {
		rows, err := s.repo.StudentsByDepartment(ctx, pred)
		if err != nil {
			return nil, err
		}
		return &rows, nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return *result.(*[]models.StudentsByDepartment), nil
}

// GradeDistribution returns letter-band grade counts in scope.
func (s *DashboardService) GradeDistribution(ctx context.Context, bundle models.ClaimsBundle, filters map[string]string) ([]models.GradeDistributionBin, error) {
	pred, err := s.scopeFor(bundle, filters)
	if err != nil {
		return nil, err
	}
	var cachedValue []models.GradeDistributionBin
	result, err := s.cached(ctx, "grade_distribution", pred, &cachedValue, func() (interface{}, error) {
		rows, err := s.repo.GradeDistribution(ctx, pred)
		if err != nil {
			return nil, err
		}
		return &rows, nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return *result.(*[]models.GradeDistributionBin), nil
}

// GradesOverTime returns the per-semester grade trend in scope.
func (s *DashboardService) GradesOverTime(ctx context.Context, bundle models.ClaimsBundle, filters map[string]string) ([]models.GradeTrendPoint, error) {
	pred, err := s.scopeFor(bundle, filters)
	if err != nil {
		return nil, err
	}
	var cachedValue []models.GradeTrendPoint
	result, err := s.cached(ctx, "grades_over_time", pred, &cachedValue, func() (interface{}, error) {
		rows, err := s.repo.GradesOverTime(ctx, pred)
		if err != nil {
			return nil, err
		}
		return &rows, nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return *result.(*[]models.GradeTrendPoint), nil
}

// AttendanceByCourse returns per-course attendance rates in scope.
func (s *DashboardService) AttendanceByCourse(ctx context.Context, bundle models.ClaimsBundle, filters map[string]string) ([]models.AttendanceByCourse, error) {
	pred, err := s.scopeFor(bundle, filters)
	if err != nil {
		return nil, err
	}
	var cachedValue []models.AttendanceByCourse
	result, err := s.cached(ctx, "attendance_by_course", pred, &cachedValue, func() (interface{}, error) {
		rows, err := s.repo.AttendanceByCourse(ctx, pred)
		if err != nil {
			return nil, err
		}
		return &rows, nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return *result.(*[]models.AttendanceByCourse), nil
}

// AttendanceTrend returns the per-semester attendance trend in scope.
func (s *DashboardService) AttendanceTrend(ctx context.Context, bundle models.ClaimsBundle, filters map[string]string) ([]models.AttendanceTrendPoint, error) {
	pred, err := s.scopeFor(bundle, filters)
	if err != nil {
		return nil, err
	}
	var cachedValue []models.AttendanceTrendPoint
	result, err := s.cached(ctx, "attendance_trend", pred, &cachedValue, func() (interface{}, error) {
		rows, err := s.repo.AttendanceTrend(ctx, pred)
		if err != nil {
			return nil, err
		}
		return &rows, nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return *result.(*[]models.AttendanceTrendPoint), nil
}

// PaymentStatus returns payment aggregates per status in scope.
func (s *DashboardService) PaymentStatus(ctx context.Context, bundle models.ClaimsBundle, filters map[string]string) ([]models.PaymentStatusSummary, error) {
	pred, err := s.scopeFor(bundle, filters)
	if err != nil {
		return nil, err
	}
	var cachedValue []models.PaymentStatusSummary
	result, err := s.cached(ctx, "payment_status", pred, &cachedValue, func() (interface{}, error) {
		rows, err := s.repo.PaymentStatus(ctx, pred)
		if err != nil {
			return nil, err
		}
		return &rows, nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return *result.(*[]models.PaymentStatusSummary), nil
}

// PaymentTrend returns per-semester payment totals in scope.
func (s *DashboardService) PaymentTrend(ctx context.Context, bundle models.ClaimsBundle, filters map[string]string) ([]models.PaymentTrendPoint, error) {
	pred, err := s.scopeFor(bundle, filters)
	if err != nil {
		return nil, err
	}
	var cachedValue []models.PaymentTrendPoint
	result, err := s.cached(ctx, "payment_trend", pred, &cachedValue, func() (interface{}, error) {
		rows, err := s.repo.PaymentTrend(ctx, pred)
		if err != nil {
			return nil, err
		}
		return &rows, nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return *result.(*[]models.PaymentTrendPoint), nil
}

const (
	defaultTopStudentsLimit = 10
	maxTopStudentsLimit     = 100
)

// clampTopStudentsLimit normalizes the leaderboard size before it reaches the
// cache key, so equivalent requests share one entry.
func clampTopStudentsLimit(limit int) int {
	if limit <= 0 || limit > maxTopStudentsLimit {
		return defaultTopStudentsLimit
	}
	return limit
}

// TopStudents returns the leaderboard in scope.
func (s *DashboardService) TopStudents(ctx context.Context, bundle models.ClaimsBundle, filters map[string]string, limit int) ([]models.TopStudent, error) {
	pred, err := s.scopeFor(bundle, filters)
	if err != nil {
		return nil, err
	}
	limit = clampTopStudentsLimit(limit)
	var cachedValue []models.TopStudent
	result, err := s.cached(ctx, fmt.Sprintf("top_students:%d", limit), pred, &cachedValue, func() (interface{}, error) {
		rows, err := s.repo.TopStudents(ctx, pred, limit)
		if err != nil {
			return nil, err
		}
		return &rows, nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return *result.(*[]models.TopStudent), nil
}

// EnrollmentSummary returns per-course enrollment counts in scope.
func (s *DashboardService) EnrollmentSummary(ctx context.Context, bundle models.ClaimsBundle, filters map[string]string) ([]models.EnrollmentSummary, error) {
	pred, err := s.scopeFor(bundle, filters)
	if err != nil {
		return nil, err
	}
	var cachedValue []models.EnrollmentSummary
	result, err := s.cached(ctx, "enrollment_summary", pred, &cachedValue, func() (interface{}, error) {
		rows, err := s.repo.EnrollmentSummary(ctx, pred)
		if err != nil {
			return nil, err
		}
		return &rows, nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return *result.(*[]models.EnrollmentSummary), nil
}
