package models

import "time"

// Audit action and outcome constants.
const (
	AuditActionLogin         = "login"
	AuditActionTokenRefresh  = "token_refresh"
	AuditActionLogout        = "logout"
	AuditActionAccountCreate = "account_create"
	AuditActionAccountUpdate = "account_update"
	AuditActionAccountDelete = "account_delete"
	AuditActionDataExport    = "data_export"

	AuditOutcomeSuccess = "success"
	AuditOutcomeFailure = "failure"
)

// AuditEvent is a fire-and-forget record handed to the audit sink. Reason
// must never contain a secret.
type AuditEvent struct {
	ID         string    `db:"id" json:"id"`
	Username   string    `db:"username" json:"username"`
	RoleName   string    `db:"role_name" json:"role_name"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Outcome    string    `db:"status" json:"status"`
	Reason     string    `db:"error_message" json:"error_message,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
