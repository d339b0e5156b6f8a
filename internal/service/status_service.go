package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ucu-dw/ucu-analytics-api/internal/models"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type tableCounter interface {
	TableCounts(ctx context.Context) ([]models.TableCount, error)
}

// StatusService reports dependency health and warehouse volume for the
// sysadmin status view.
type StatusService struct {
	rbac      pinger
	warehouse pinger
	redis     *redis.Client
	counts    tableCounter
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewStatusService constructs a StatusService instance.
func NewStatusService(rbac, warehouse pinger, redisClient *redis.Client, counts tableCounter, metrics *MetricsService, logger *zap.Logger) *StatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusService{rbac: rbac, warehouse: warehouse, redis: redisClient, counts: counts, metrics: metrics, logger: logger}
}

// Status gathers the full system snapshot. Dependency failures degrade the
// report instead of failing it.
func (s *StatusService) Status(ctx context.Context) models.SystemStatus {
	status := models.SystemStatus{
		RBACDatabase:      s.pingState(ctx, s.rbac),
		WarehouseDatabase: s.pingState(ctx, s.warehouse),
		Cache:             s.cacheState(ctx),
		Metrics:           s.metrics.Snapshot(),
	}

	tables, err := s.counts.TableCounts(ctx)
	if err != nil {
		s.logger.Warn("failed to count warehouse tables", zap.Error(err))
		tables = []models.TableCount{}
	}
	status.Tables = tables

	return status
}

// Ready reports whether both databases answer a ping.
func (s *StatusService) Ready(ctx context.Context) bool {
	return s.pingState(ctx, s.rbac) == "up" && s.pingState(ctx, s.warehouse) == "up"
}

func (s *StatusService) pingState(ctx context.Context, db pinger) string {
	if db == nil {
		return "unconfigured"
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return "down"
	}
	return "up"
}

func (s *StatusService) cacheState(ctx context.Context) string {
	if s.redis == nil {
		return "unconfigured"
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.redis.Ping(pingCtx).Err(); err != nil {
		return "down"
	}
	return "up"
}
