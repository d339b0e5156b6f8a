package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ucu-dw/ucu-analytics-api/internal/models"
	"github.com/ucu-dw/ucu-analytics-api/internal/repository"
)

type auditEventRepository interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
	List(ctx context.Context, filter repository.AuditFilter) ([]models.AuditEvent, error)
}

// AuditService is the audit sink. Emit never blocks the caller and never
// fails the request: writes happen on a background goroutine with a single
// retry, and persistent failures are logged and dropped.
type AuditService struct {
	repo    auditEventRepository
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAuditService constructs an AuditService instance.
func NewAuditService(repo auditEventRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger, timeout: 3 * time.Second}
}

// Emit records an audit event asynchronously. The event's Reason must
// already be scrubbed; secrets never reach this sink.
func (s *AuditService) Emit(event models.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := s.insertOnce(&event); err == nil {
			return
		}

		// The retry gets a fresh timeout so a slow first attempt does not
		// exhaust its budget.
		if retryErr := s.insertOnce(&event); retryErr != nil {
			s.logger.Warn("dropping audit event after retry",
				zap.String("action", event.Action),
				zap.String("username", event.Username),
				zap.Error(retryErr))
		}
	}()
}

func (s *AuditService) insertOnce(event *models.AuditEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.repo.Insert(ctx, event)
}

// Flush waits for in-flight audit writes. Called during shutdown.
func (s *AuditService) Flush() {
	s.wg.Wait()
}

// List returns audit entries for the admin audit log view.
func (s *AuditService) List(ctx context.Context, filter repository.AuditFilter) ([]models.AuditEvent, error) {
	return s.repo.List(ctx, filter)
}
