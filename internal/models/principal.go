package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Role enumerates the user classes known to the RBAC system.
type Role string

const (
	RoleSysadmin Role = "sysadmin"
	RoleAnalyst  Role = "analyst"
	RoleSenate   Role = "senate"
	RoleStaff    Role = "staff"
	RoleDean     Role = "dean"
	RoleHOD      Role = "hod"
	RoleHR       Role = "hr"
	RoleFinance  Role = "finance"
	RoleStudent  Role = "student"
)

// AdminRoles are the roles assignable to administrative accounts. Student is
// excluded: students authenticate through access numbers, never app_users.
var AdminRoles = []Role{RoleSysadmin, RoleAnalyst, RoleSenate, RoleStaff, RoleDean, RoleHOD, RoleHR, RoleFinance}

// ParseRole maps a stored role string onto a known Role. An unrecognized
// value is an error, never a silent downgrade to a default role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleSysadmin, RoleAnalyst, RoleSenate, RoleStaff, RoleDean, RoleHOD, RoleHR, RoleFinance, RoleStudent:
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

var accessNumberPattern = regexp.MustCompile(`^[AB]\d{5}$`)

// IsAccessNumber reports whether the identifier matches the institutional
// access-number scheme after case normalisation.
func IsAccessNumber(identifier string) bool {
	return accessNumberPattern.MatchString(strings.ToUpper(strings.TrimSpace(identifier)))
}

// NormalizeAccessNumber upper-cases and trims an access number.
func NormalizeAccessNumber(identifier string) string {
	return strings.ToUpper(strings.TrimSpace(identifier))
}

// Student is a warehouse dimension record used for access-number login.
type Student struct {
	StudentID    string `db:"student_id" json:"student_id"`
	AccessNumber string `db:"access_number" json:"access_number"`
	RegNo        string `db:"reg_no" json:"reg_no"`
	FirstName    string `db:"first_name" json:"first_name"`
	LastName     string `db:"last_name" json:"last_name"`
	ProgramID    *int64 `db:"program_id" json:"program_id,omitempty"`
}

// DisplayName joins the student name fields for token display purposes.
func (s Student) DisplayName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// AdminAccount represents a credentialed administrative user in app_users.
type AdminAccount struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         Role      `db:"role" json:"role"`
	FacultyID    *int64    `db:"faculty_id" json:"faculty_id,omitempty"`
	DepartmentID *int64    `db:"department_id" json:"department_id,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AccountFilter captures filtering criteria for listing admin accounts.
type AccountFilter struct {
	Role     *Role
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination derives pagination metadata from a page, size, and total.
func NewPagination(page, pageSize, total int) Pagination {
	pages := 0
	if pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	return Pagination{Page: page, PageSize: pageSize, TotalCount: total, TotalPages: pages}
}
