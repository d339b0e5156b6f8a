package models

// CreateAccountRequest is the payload for provisioning an admin account.
type CreateAccountRequest struct {
	Username     string   `json:"username" validate:"required,min=3,max=64"`
	Password     string   `json:"password" validate:"required,min=8"`
	FullName     string   `json:"full_name" validate:"required"`
	Role         string   `json:"role" validate:"required"`
	FacultyID    *int64   `json:"faculty_id,omitempty"`
	DepartmentID *int64   `json:"department_id,omitempty"`
	Courses      []string `json:"courses,omitempty"`
}

// UpdateAccountRequest is the payload for mutating an admin account. Nil
// fields are left unchanged; a nil Courses keeps the assignment set.
type UpdateAccountRequest struct {
	Password     *string  `json:"password,omitempty" validate:"omitempty,min=8"`
	FullName     *string  `json:"full_name,omitempty"`
	Role         *string  `json:"role,omitempty"`
	FacultyID    *int64   `json:"faculty_id,omitempty"`
	DepartmentID *int64   `json:"department_id,omitempty"`
	Active       *bool    `json:"active,omitempty"`
	Courses      []string `json:"courses,omitempty"`
}

// AccountResponse is the sanitised account view; the password hash never
// leaves the service layer.
type AccountResponse struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	FullName     string   `json:"full_name"`
	Role         Role     `json:"role"`
	FacultyID    *int64   `json:"faculty_id,omitempty"`
	DepartmentID *int64   `json:"department_id,omitempty"`
	Active       bool     `json:"active"`
	Courses      []string `json:"courses,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// NewAccountResponse maps a stored account to its response view.
func NewAccountResponse(account AdminAccount, courses []string) AccountResponse {
	return AccountResponse{
		ID:           account.ID,
		Username:     account.Username,
		FullName:     account.FullName,
		Role:         account.Role,
		FacultyID:    account.FacultyID,
		DepartmentID: account.DepartmentID,
		Active:       account.Active,
		Courses:      courses,
		CreatedAt:    account.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    account.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
