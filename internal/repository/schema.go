package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements create the RBAC tables. Everything is idempotent so the
// migration runs unconditionally at process start; per-request ensure-table
// calls are deliberately absent. The partial unique indexes are what make
// the one-dean-per-faculty and one-hod-per-department invariants atomic:
// concurrent conflicting writes race on the index, and the loser surfaces a
// unique violation.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS app_users (
		id UUID PRIMARY KEY,
		username TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		faculty_id BIGINT,
		department_id BIGINT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_app_users_username ON app_users (LOWER(username))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_app_users_dean_faculty ON app_users (faculty_id) WHERE role = 'dean' AND active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_app_users_hod_department ON app_users (department_id) WHERE role = 'hod' AND active`,
	`CREATE TABLE IF NOT EXISTS app_user_courses (
		user_id UUID NOT NULL REFERENCES app_users(id) ON DELETE CASCADE,
		course_code TEXT NOT NULL,
		PRIMARY KEY (user_id, course_code)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		role_name TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		resource TEXT NOT NULL,
		resource_id TEXT,
		status TEXT NOT NULL,
		error_message TEXT,
		ip_address TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_role ON audit_logs (role_name)`,
}

// EnsureSchema applies the RBAC schema. Run once at startup.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply rbac schema: %w", err)
		}
	}
	return nil
}
