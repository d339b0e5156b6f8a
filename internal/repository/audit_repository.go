package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ucu-dw/ucu-analytics-api/internal/models"
)

// AuditRepository persists and reads audit log entries in the RBAC database.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new instance of AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends one audit entry.
func (r *AuditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, username, role_name, action, resource, resource_id, status, error_message, ip_address, created_at) VALUES (:id, :username, :role_name, :action, :resource, :resource_id, :status, :error_message, :ip_address, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// AuditFilter narrows audit log listings.
type AuditFilter struct {
	Username string
	Action   string
	Outcome  string
	Limit    int
}

// List returns audit entries newest first. The limit is clamped to 500.
func (r *AuditRepository) List(ctx context.Context, filter AuditFilter) ([]models.AuditEvent, error) {
	base := `SELECT id, username, role_name, action, resource, resource_id, status, error_message, ip_address, created_at FROM audit_logs WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Username != "" {
		conditions = append(conditions, fmt.Sprintf("username = $%d", len(args)+1))
		args = append(args, filter.Username)
	}
	if filter.Action != "" {
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)+1))
		args = append(args, filter.Action)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Outcome)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	query := base
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	events := []models.AuditEvent{}
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}
